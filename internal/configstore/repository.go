package configstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/configsync/configsync/internal/diff"
	"github.com/configsync/configsync/internal/model"
	"github.com/configsync/configsync/internal/store"
)

// Repository applies scoped configuration operations on top of a store.
type Repository struct {
	store store.Store
}

// New creates a repository backed by the given store.
func New(s store.Store) *Repository {
	return &Repository{store: s}
}

// DiffResult is the outcome of comparing two stored versions of a service.
type DiffResult struct {
	Service  string       `json:"service"`
	VersionA int64        `json:"version_a"`
	VersionB int64        `json:"version_b"`
	Diff     *diff.Report `json:"diff"`
}

// Get returns the current configuration of a service visible under scope.
func (r *Repository) Get(ctx context.Context, scope Scope, service string) (*model.ServiceConfig, error) {
	cfg, err := r.store.GetConfig(ctx, service, scope.Filter())
	if err != nil {
		return nil, translate(err, service)
	}
	return cfg, nil
}

// Upsert creates or replaces the current configuration of a service and
// appends the payload to the service's version history, atomically.
//
// When scope matches an existing row its owner is preserved; an admin
// editing a user's config does not steal it. When no row matches, the new
// row belongs to the scope's target owner, or to the caller if unscoped.
func (r *Repository) Upsert(ctx context.Context, scope Scope, service string, payload json.RawMessage) (*model.ServiceConfig, error) {
	var out *model.ServiceConfig
	err := r.store.RunInTransaction(ctx, func(tx store.Store) error {
		cfg, err := tx.GetConfigForUpdate(ctx, service, scope.Filter())
		switch {
		case err == nil:
			cfg.Payload = payload
			if err := tx.UpdateConfigPayload(ctx, cfg); err != nil {
				return fmt.Errorf("update config %q: %w", service, err)
			}
		case errors.Is(err, sql.ErrNoRows):
			cfg = &model.ServiceConfig{
				Name:    service,
				Payload: payload,
				OwnerID: scope.CreateOwner(),
			}
			if err := tx.CreateConfig(ctx, cfg); err != nil {
				return translate(err, service)
			}
		default:
			return fmt.Errorf("lock config %q: %w", service, err)
		}

		if err := appendVersion(ctx, tx, service, cfg.OwnerID, payload); err != nil {
			return err
		}
		out = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns all current configurations visible under scope.
func (r *Repository) List(ctx context.Context, scope Scope) ([]*model.ServiceConfig, error) {
	return r.store.ListConfigs(ctx, scope.Filter())
}

// Delete removes the current configuration of a service. Version history is
// retained. It reports whether a row was deleted; deleting a service that
// is absent (or invisible under scope) is not an error.
func (r *Repository) Delete(ctx context.Context, scope Scope, service string) (bool, error) {
	err := r.store.DeleteConfig(ctx, service, scope.Filter())
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete config %q: %w", service, err)
	}
	return true, nil
}

// ListVersions returns the version history of a service visible under
// scope, newest first. A service with no history yields an empty slice.
func (r *Repository) ListVersions(ctx context.Context, scope Scope, service string) ([]*model.ConfigVersion, error) {
	return r.store.ListVersions(ctx, service, scope.Filter())
}

// Rollback restores a service's current configuration to the payload of a
// historical version, recorded as a new version at the top of the sequence
// rather than by rewinding. The target version must be visible under scope
// and the service must still have a current row for that version's owner.
func (r *Repository) Rollback(ctx context.Context, scope Scope, service string, versionID int64) (*model.ServiceConfig, error) {
	var out *model.ServiceConfig
	err := r.store.RunInTransaction(ctx, func(tx store.Store) error {
		target, err := tx.GetVersionByID(ctx, versionID, service, scope.Filter())
		if err != nil {
			return translate(err, service)
		}

		// The version row decides the effective owner. Under an
		// unscoped admin the current row is looked up for that owner,
		// not across all owners.
		owner := target.OwnerID
		cfg, err := tx.GetConfigForUpdate(ctx, service, &owner)
		if err != nil {
			return translate(err, service)
		}
		cfg.Payload = target.Payload
		if err := tx.UpdateConfigPayload(ctx, cfg); err != nil {
			return fmt.Errorf("update config %q: %w", service, err)
		}

		if err := appendVersion(ctx, tx, service, owner, target.Payload); err != nil {
			return err
		}
		out = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Diff compares two stored versions of a service. Both versions must be
// visible under scope; otherwise the result is ErrNotFound, the same as for
// a version that does not exist.
func (r *Repository) Diff(ctx context.Context, scope Scope, service string, fromID, toID int64) (*DiffResult, error) {
	from, err := r.store.GetVersionByID(ctx, fromID, service, scope.Filter())
	if err != nil {
		return nil, translate(err, service)
	}
	to, err := r.store.GetVersionByID(ctx, toID, service, scope.Filter())
	if err != nil {
		return nil, translate(err, service)
	}

	report, err := diff.Compare(from.Payload, to.Payload)
	if err != nil {
		return nil, fmt.Errorf("diff %q versions %d..%d: %w", service, fromID, toID, err)
	}
	return &DiffResult{
		Service:  service,
		VersionA: fromID,
		VersionB: toID,
		Diff:     report,
	}, nil
}

// appendVersion writes the next version in the gap-free per-(service, owner)
// sequence. Callers must hold the current row's lock; the unique index on
// (service_name, owner_id, version) backstops writers that raced anyway.
func appendVersion(ctx context.Context, tx store.Store, service string, ownerID int64, payload json.RawMessage) error {
	max, err := tx.MaxVersion(ctx, service, ownerID)
	if err != nil {
		return fmt.Errorf("max version of %q: %w", service, err)
	}
	v := &model.ConfigVersion{
		ServiceName: service,
		Version:     max + 1,
		Payload:     payload,
		OwnerID:     ownerID,
	}
	if err := tx.AddVersion(ctx, v); err != nil {
		return translate(err, service)
	}
	return nil
}

// translate maps store-level errors to the package's sentinels.
func translate(err error, service string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: %s", ErrNotFound, service)
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("%w: %s", ErrConflict, service)
	default:
		return err
	}
}
