package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/configsync/configsync/internal/model"
	"github.com/configsync/configsync/internal/store"
)

// configColumns is the column list used for SELECT statements on the
// service_configs table.
const configColumns = `id, name, payload, owner_id, updated_at`

// versionColumns is the column list for the config_versions table.
const versionColumns = `id, service_name, version, payload, owner_id, created_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// mapUnique translates a Postgres unique_violation into store.ErrDuplicate
// so callers can branch without importing lib/pq.
func mapUnique(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", store.ErrDuplicate, pqErr.Constraint)
	}
	return err
}

func queryCreateUser(ctx context.Context, db executor, u *model.User) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, role, hashed_password)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		u.Username, u.Email, string(u.Role), u.HashedPassword,
	).Scan(&u.ID, &u.CreatedAt)
	return mapUnique(err)
}

func queryGetUserByUsername(ctx context.Context, db executor, username string) (*model.User, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, username, email, role, hashed_password, created_at
		FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func queryGetUserByID(ctx context.Context, db executor, id int64) (*model.User, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, username, email, role, hashed_password, created_at
		FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// queryGetConfig fetches a single current-state row. With owner == nil the
// match across owners is arbitrary; ORDER BY owner_id, id keeps the pick
// stable between calls but no ordering is promised to callers.
func queryGetConfig(ctx context.Context, db executor, name string, owner *int64, forUpdate bool) (*model.ServiceConfig, error) {
	q := `SELECT ` + configColumns + ` FROM service_configs WHERE name = $1`
	args := []any{name}
	if owner != nil {
		q += ` AND owner_id = $2`
		args = append(args, *owner)
	}
	q += ` ORDER BY owner_id, id LIMIT 1`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	return scanConfig(db.QueryRowContext(ctx, q, args...))
}

func queryCreateConfig(ctx context.Context, db executor, c *model.ServiceConfig) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO service_configs (name, payload, owner_id)
		VALUES ($1, $2, $3)
		RETURNING id, updated_at`,
		c.Name, []byte(c.Payload), c.OwnerID,
	).Scan(&c.ID, &c.UpdatedAt)
	return mapUnique(err)
}

func queryUpdateConfigPayload(ctx context.Context, db executor, c *model.ServiceConfig) error {
	return db.QueryRowContext(ctx, `
		UPDATE service_configs
		SET payload = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		c.ID, []byte(c.Payload),
	).Scan(&c.UpdatedAt)
}

// queryDeleteConfig removes a single current-state row. Unscoped deletes
// target the same row an unscoped queryGetConfig would pick, never every
// owner's row with the name.
func queryDeleteConfig(ctx context.Context, db executor, name string, owner *int64) error {
	q := `DELETE FROM service_configs WHERE name = $1 AND owner_id = $2`
	args := []any{name}
	if owner != nil {
		args = append(args, *owner)
	} else {
		q = `
			DELETE FROM service_configs
			WHERE id = (
				SELECT id FROM service_configs
				WHERE name = $1
				ORDER BY owner_id, id LIMIT 1)`
	}
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryListConfigs(ctx context.Context, db executor, owner *int64) ([]*model.ServiceConfig, error) {
	q := `SELECT ` + configColumns + ` FROM service_configs`
	var args []any
	if owner != nil {
		q += ` WHERE owner_id = $1`
		args = append(args, *owner)
	}
	q += ` ORDER BY name, owner_id`
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}
	defer rows.Close()
	return scanConfigs(rows)
}

func queryMaxVersion(ctx context.Context, db executor, serviceName string, ownerID int64) (int, error) {
	var max int
	err := db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM config_versions
		WHERE service_name = $1 AND owner_id = $2`,
		serviceName, ownerID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max version: %w", err)
	}
	return max, nil
}

func queryAddVersion(ctx context.Context, db executor, v *model.ConfigVersion) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO config_versions (service_name, version, payload, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		v.ServiceName, v.Version, []byte(v.Payload), v.OwnerID,
	).Scan(&v.ID, &v.CreatedAt)
	return mapUnique(err)
}

func queryListVersions(ctx context.Context, db executor, serviceName string, owner *int64) ([]*model.ConfigVersion, error) {
	q := `SELECT ` + versionColumns + ` FROM config_versions WHERE service_name = $1`
	args := []any{serviceName}
	if owner != nil {
		q += ` AND owner_id = $2`
		args = append(args, *owner)
	}
	q += ` ORDER BY version DESC`
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()
	return scanVersions(rows)
}

func queryGetVersionByID(ctx context.Context, db executor, id int64, serviceName string, owner *int64) (*model.ConfigVersion, error) {
	q := `SELECT ` + versionColumns + ` FROM config_versions WHERE id = $1 AND service_name = $2`
	args := []any{id, serviceName}
	if owner != nil {
		q += ` AND owner_id = $3`
		args = append(args, *owner)
	}
	return scanVersion(db.QueryRowContext(ctx, q, args...))
}

func queryRevokeToken(ctx context.Context, db executor, t *model.RevokedToken) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO revoked_tokens (jti, expires_at, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (jti) DO NOTHING
		RETURNING revoked_at`,
		t.JTI, nullTimePtr(t.ExpiresAt), t.UserID,
	).Scan(&t.RevokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Already revoked; logout is idempotent.
		return nil
	}
	return err
}

func queryIsTokenRevoked(ctx context.Context, db executor, jti string) (bool, error) {
	var revoked bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)`,
		jti,
	).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("token revoked check: %w", err)
	}
	return revoked, nil
}
