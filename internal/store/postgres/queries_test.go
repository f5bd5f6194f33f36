package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/configsync/configsync/internal/model"
	"github.com/configsync/configsync/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

// configRowColumns is the column list for scanConfig results.
var configRowColumns = []string{"id", "name", "payload", "owner_id", "updated_at"}

// versionRowColumns is the column list for scanVersion results.
var versionRowColumns = []string{"id", "service_name", "version", "payload", "owner_id", "created_at"}

func TestQueryCreateUser(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("alice", "alice@example.com", "user", "hash").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), now))

	u := &model.User{Username: "alice", Email: "alice@example.com", Role: model.RoleUser, HashedPassword: "hash"}
	if err := queryCreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("queryCreateUser: %v", err)
	}
	if u.ID != 7 {
		t.Errorf("ID = %d, want 7", u.ID)
	}
}

func TestQueryCreateUserDuplicate(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("alice", "alice@example.com", "user", "hash").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_username_key"})

	u := &model.User{Username: "alice", Email: "alice@example.com", Role: model.RoleUser, HashedPassword: "hash"}
	err := queryCreateUser(context.Background(), db, u)
	if !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("err = %v, want store.ErrDuplicate", err)
	}
}

func TestQueryGetConfigScoped(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, name, payload, owner_id, updated_at FROM service_configs WHERE name = \$1 AND owner_id = \$2 ORDER BY owner_id, id LIMIT 1`).
		WithArgs("payments", int64(7)).
		WillReturnRows(sqlmock.NewRows(configRowColumns).
			AddRow(int64(1), "payments", []byte(`{"v":1}`), int64(7), now))

	owner := int64(7)
	cfg, err := queryGetConfig(context.Background(), db, "payments", &owner, false)
	if err != nil {
		t.Fatalf("queryGetConfig: %v", err)
	}
	if cfg.Name != "payments" || cfg.OwnerID != 7 || string(cfg.Payload) != `{"v":1}` {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestQueryGetConfigUnscoped(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()

	// No owner filter; single positional arg.
	mock.ExpectQuery(`SELECT id, name, payload, owner_id, updated_at FROM service_configs WHERE name = \$1 ORDER BY owner_id, id LIMIT 1`).
		WithArgs("payments").
		WillReturnRows(sqlmock.NewRows(configRowColumns).
			AddRow(int64(1), "payments", []byte(`{}`), int64(3), now))

	cfg, err := queryGetConfig(context.Background(), db, "payments", nil, false)
	if err != nil {
		t.Fatalf("queryGetConfig: %v", err)
	}
	if cfg.OwnerID != 3 {
		t.Errorf("owner = %d", cfg.OwnerID)
	}
}

func TestQueryGetConfigForUpdateLocks(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM service_configs WHERE name = \$1 AND owner_id = \$2 ORDER BY owner_id, id LIMIT 1 FOR UPDATE`).
		WithArgs("payments", int64(7)).
		WillReturnRows(sqlmock.NewRows(configRowColumns).
			AddRow(int64(1), "payments", []byte(`{}`), int64(7), now))

	owner := int64(7)
	if _, err := queryGetConfig(context.Background(), db, "payments", &owner, true); err != nil {
		t.Fatalf("queryGetConfig forUpdate: %v", err)
	}
}

func TestQueryGetConfigNotFound(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT .+ FROM service_configs`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(configRowColumns))

	_, err := queryGetConfig(context.Background(), db, "missing", nil, false)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestQueryCreateConfigDuplicate(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("INSERT INTO service_configs").
		WithArgs("payments", []byte(`{}`), int64(7)).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "service_configs_name_owner_id_key"})

	cfg := &model.ServiceConfig{Name: "payments", Payload: json.RawMessage(`{}`), OwnerID: 7}
	err := queryCreateConfig(context.Background(), db, cfg)
	if !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("err = %v, want store.ErrDuplicate", err)
	}
}

func TestQueryDeleteConfig(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(`DELETE FROM service_configs WHERE name = \$1 AND owner_id = \$2`).
		WithArgs("payments", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	owner := int64(7)
	if err := queryDeleteConfig(context.Background(), db, "payments", &owner); err != nil {
		t.Fatalf("queryDeleteConfig: %v", err)
	}
}

func TestQueryDeleteConfigUnscopedTargetsSingleRow(t *testing.T) {
	db, mock := newMockDB(t)

	// The unscoped delete resolves the same first-match row an unscoped
	// get picks, instead of matching every owner's row by name.
	mock.ExpectExec(`DELETE FROM service_configs WHERE id = \( SELECT id FROM service_configs WHERE name = \$1 ORDER BY owner_id, id LIMIT 1\)`).
		WithArgs("payments").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryDeleteConfig(context.Background(), db, "payments", nil); err != nil {
		t.Fatalf("queryDeleteConfig: %v", err)
	}
}

func TestQueryDeleteConfigNoRows(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(`DELETE FROM service_configs WHERE id = \( SELECT id FROM service_configs WHERE name = \$1`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := queryDeleteConfig(context.Background(), db, "missing", nil)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestQueryListConfigs(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM service_configs ORDER BY name, owner_id`).
		WillReturnRows(sqlmock.NewRows(configRowColumns).
			AddRow(int64(1), "auth", []byte(`{}`), int64(1), now).
			AddRow(int64(2), "payments", []byte(`{}`), int64(2), now))

	configs, err := queryListConfigs(context.Background(), db, nil)
	if err != nil {
		t.Fatalf("queryListConfigs: %v", err)
	}
	if len(configs) != 2 || configs[0].Name != "auth" {
		t.Errorf("configs = %+v", configs)
	}
}

func TestQueryMaxVersion(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT COALESCE\(MAX\(version\), 0\)`).
		WithArgs("payments", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(4))

	max, err := queryMaxVersion(context.Background(), db, "payments", 7)
	if err != nil {
		t.Fatalf("queryMaxVersion: %v", err)
	}
	if max != 4 {
		t.Errorf("max = %d, want 4", max)
	}
}

func TestQueryAddVersionDuplicate(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("INSERT INTO config_versions").
		WithArgs("payments", 5, []byte(`{}`), int64(7)).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "config_versions_service_name_owner_id_version_key"})

	v := &model.ConfigVersion{ServiceName: "payments", Version: 5, Payload: json.RawMessage(`{}`), OwnerID: 7}
	err := queryAddVersion(context.Background(), db, v)
	if !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("err = %v, want store.ErrDuplicate", err)
	}
}

func TestQueryListVersions(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM config_versions WHERE service_name = \$1 AND owner_id = \$2 ORDER BY version DESC`).
		WithArgs("payments", int64(7)).
		WillReturnRows(sqlmock.NewRows(versionRowColumns).
			AddRow(int64(12), "payments", 2, []byte(`{"v":2}`), int64(7), now).
			AddRow(int64(11), "payments", 1, []byte(`{"v":1}`), int64(7), now))

	owner := int64(7)
	versions, err := queryListVersions(context.Background(), db, "payments", &owner)
	if err != nil {
		t.Fatalf("queryListVersions: %v", err)
	}
	if len(versions) != 2 || versions[0].Version != 2 {
		t.Errorf("versions = %+v", versions)
	}
}

func TestQueryGetVersionByIDScoped(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM config_versions WHERE id = \$1 AND service_name = \$2 AND owner_id = \$3`).
		WithArgs(int64(11), "payments", int64(7)).
		WillReturnRows(sqlmock.NewRows(versionRowColumns).
			AddRow(int64(11), "payments", 1, []byte(`{"v":1}`), int64(7), now))

	owner := int64(7)
	v, err := queryGetVersionByID(context.Background(), db, 11, "payments", &owner)
	if err != nil {
		t.Fatalf("queryGetVersionByID: %v", err)
	}
	if v.ID != 11 || v.Version != 1 {
		t.Errorf("version = %+v", v)
	}
}

func TestQueryRevokeTokenIdempotent(t *testing.T) {
	db, mock := newMockDB(t)

	// ON CONFLICT DO NOTHING returns no rows on the second revoke.
	mock.ExpectQuery("INSERT INTO revoked_tokens").
		WithArgs("cs-abc", sqlmock.AnyArg(), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"revoked_at"}))

	tok := &model.RevokedToken{JTI: "cs-abc", UserID: 7}
	if err := queryRevokeToken(context.Background(), db, tok); err != nil {
		t.Fatalf("queryRevokeToken: %v", err)
	}
}

func TestQueryIsTokenRevoked(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("cs-abc").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	revoked, err := queryIsTokenRevoked(context.Background(), db, "cs-abc")
	if err != nil {
		t.Fatalf("queryIsTokenRevoked: %v", err)
	}
	if !revoked {
		t.Error("revoked = false, want true")
	}
}

func TestRunInTransactionCommitsAndRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	st := &PostgresStore{db: db}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(version\), 0\)`).
		WithArgs("payments", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
	mock.ExpectCommit()

	err := st.RunInTransaction(context.Background(), func(tx store.Store) error {
		_, err := tx.MaxVersion(context.Background(), "payments", 7)
		return err
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectRollback()

	wantErr := errors.New("boom")
	err = st.RunInTransaction(context.Background(), func(tx store.Store) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want boom", err)
	}
}
