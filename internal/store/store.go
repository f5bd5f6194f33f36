package store

import (
	"context"
	"errors"

	"github.com/configsync/configsync/internal/model"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint
// (username/email on users, (name, owner_id) on service_configs, or the
// version backstop on config_versions).
var ErrDuplicate = errors.New("store: duplicate row")

// Store defines the persistence interface for the configuration store.
//
// Methods that take an owner *int64 treat nil as "unscoped": no owner
// filter is applied. Callers are expected to have resolved access scope
// before reaching the store; the store itself enforces nothing.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)

	// Service configs (current state)
	GetConfig(ctx context.Context, name string, owner *int64) (*model.ServiceConfig, error)
	// GetConfigForUpdate is GetConfig with a row lock; only meaningful
	// inside RunInTransaction.
	GetConfigForUpdate(ctx context.Context, name string, owner *int64) (*model.ServiceConfig, error)
	CreateConfig(ctx context.Context, cfg *model.ServiceConfig) error
	UpdateConfigPayload(ctx context.Context, cfg *model.ServiceConfig) error
	DeleteConfig(ctx context.Context, name string, owner *int64) error
	ListConfigs(ctx context.Context, owner *int64) ([]*model.ServiceConfig, error)

	// Version ledger (append-only)
	MaxVersion(ctx context.Context, serviceName string, ownerID int64) (int, error)
	AddVersion(ctx context.Context, v *model.ConfigVersion) error
	ListVersions(ctx context.Context, serviceName string, owner *int64) ([]*model.ConfigVersion, error)
	GetVersionByID(ctx context.Context, id int64, serviceName string, owner *int64) (*model.ConfigVersion, error)

	// Revoked tokens
	RevokeToken(ctx context.Context, t *model.RevokedToken) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
