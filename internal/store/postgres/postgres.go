// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/configsync/configsync/internal/model"
	"github.com/configsync/configsync/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Ping reports whether the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *model.User) error {
	return queryCreateUser(ctx, s.db, user)
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return queryGetUserByUsername(ctx, s.db, username)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return queryGetUserByID(ctx, s.db, id)
}

func (s *PostgresStore) GetConfig(ctx context.Context, name string, owner *int64) (*model.ServiceConfig, error) {
	return queryGetConfig(ctx, s.db, name, owner, false)
}

func (s *PostgresStore) GetConfigForUpdate(ctx context.Context, name string, owner *int64) (*model.ServiceConfig, error) {
	return queryGetConfig(ctx, s.db, name, owner, true)
}

func (s *PostgresStore) CreateConfig(ctx context.Context, cfg *model.ServiceConfig) error {
	return queryCreateConfig(ctx, s.db, cfg)
}

func (s *PostgresStore) UpdateConfigPayload(ctx context.Context, cfg *model.ServiceConfig) error {
	return queryUpdateConfigPayload(ctx, s.db, cfg)
}

func (s *PostgresStore) DeleteConfig(ctx context.Context, name string, owner *int64) error {
	return queryDeleteConfig(ctx, s.db, name, owner)
}

func (s *PostgresStore) ListConfigs(ctx context.Context, owner *int64) ([]*model.ServiceConfig, error) {
	return queryListConfigs(ctx, s.db, owner)
}

func (s *PostgresStore) MaxVersion(ctx context.Context, serviceName string, ownerID int64) (int, error) {
	return queryMaxVersion(ctx, s.db, serviceName, ownerID)
}

func (s *PostgresStore) AddVersion(ctx context.Context, v *model.ConfigVersion) error {
	return queryAddVersion(ctx, s.db, v)
}

func (s *PostgresStore) ListVersions(ctx context.Context, serviceName string, owner *int64) ([]*model.ConfigVersion, error) {
	return queryListVersions(ctx, s.db, serviceName, owner)
}

func (s *PostgresStore) GetVersionByID(ctx context.Context, id int64, serviceName string, owner *int64) (*model.ConfigVersion, error) {
	return queryGetVersionByID(ctx, s.db, id, serviceName, owner)
}

func (s *PostgresStore) RevokeToken(ctx context.Context, t *model.RevokedToken) error {
	return queryRevokeToken(ctx, s.db, t)
}

func (s *PostgresStore) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return queryIsTokenRevoked(ctx, s.db, jti)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateUser(ctx context.Context, user *model.User) error {
	return queryCreateUser(ctx, s.tx, user)
}

func (s *txStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return queryGetUserByUsername(ctx, s.tx, username)
}

func (s *txStore) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return queryGetUserByID(ctx, s.tx, id)
}

func (s *txStore) GetConfig(ctx context.Context, name string, owner *int64) (*model.ServiceConfig, error) {
	return queryGetConfig(ctx, s.tx, name, owner, false)
}

func (s *txStore) GetConfigForUpdate(ctx context.Context, name string, owner *int64) (*model.ServiceConfig, error) {
	return queryGetConfig(ctx, s.tx, name, owner, true)
}

func (s *txStore) CreateConfig(ctx context.Context, cfg *model.ServiceConfig) error {
	return queryCreateConfig(ctx, s.tx, cfg)
}

func (s *txStore) UpdateConfigPayload(ctx context.Context, cfg *model.ServiceConfig) error {
	return queryUpdateConfigPayload(ctx, s.tx, cfg)
}

func (s *txStore) DeleteConfig(ctx context.Context, name string, owner *int64) error {
	return queryDeleteConfig(ctx, s.tx, name, owner)
}

func (s *txStore) ListConfigs(ctx context.Context, owner *int64) ([]*model.ServiceConfig, error) {
	return queryListConfigs(ctx, s.tx, owner)
}

func (s *txStore) MaxVersion(ctx context.Context, serviceName string, ownerID int64) (int, error) {
	return queryMaxVersion(ctx, s.tx, serviceName, ownerID)
}

func (s *txStore) AddVersion(ctx context.Context, v *model.ConfigVersion) error {
	return queryAddVersion(ctx, s.tx, v)
}

func (s *txStore) ListVersions(ctx context.Context, serviceName string, owner *int64) ([]*model.ConfigVersion, error) {
	return queryListVersions(ctx, s.tx, serviceName, owner)
}

func (s *txStore) GetVersionByID(ctx context.Context, id int64, serviceName string, owner *int64) (*model.ConfigVersion, error) {
	return queryGetVersionByID(ctx, s.tx, id, serviceName, owner)
}

func (s *txStore) RevokeToken(ctx context.Context, t *model.RevokedToken) error {
	return queryRevokeToken(ctx, s.tx, t)
}

func (s *txStore) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return queryIsTokenRevoked(ctx, s.tx, jti)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
