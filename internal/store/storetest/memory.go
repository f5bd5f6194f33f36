// Package storetest provides an in-memory store.Store for tests that
// exercise repository, server, and backup behavior without Postgres.
package storetest

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/configsync/configsync/internal/model"
	"github.com/configsync/configsync/internal/store"
)

// MemoryStore is a mutex-guarded store.Store backed by maps. Rows returned
// are copies; mutating them does not affect stored state.
//
// RunInTransaction runs fn against the same store while holding a
// transaction lock, which serializes writers the way row locks do in
// Postgres but does not roll partial writes back on error. Tests asserting
// atomicity should make the failing step the first write.
type MemoryStore struct {
	mu sync.Mutex
	tx sync.Mutex

	nextID   int64
	users    map[int64]*model.User
	configs  map[int64]*model.ServiceConfig
	versions map[int64]*model.ConfigVersion
	revoked  map[string]*model.RevokedToken
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:   1,
		users:    make(map[int64]*model.User),
		configs:  make(map[int64]*model.ServiceConfig),
		versions: make(map[int64]*model.ConfigVersion),
		revoked:  make(map[string]*model.RevokedToken),
	}
}

func (m *MemoryStore) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return fmt.Errorf("%w: users", store.ErrDuplicate)
		}
	}
	u.ID = m.id()
	u.CreatedAt = time.Now().UTC()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *MemoryStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *MemoryStore) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) GetConfig(_ context.Context, name string, owner *int64) (*model.ServiceConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getConfigLocked(name, owner)
}

func (m *MemoryStore) GetConfigForUpdate(ctx context.Context, name string, owner *int64) (*model.ServiceConfig, error) {
	return m.GetConfig(ctx, name, owner)
}

// getConfigLocked mirrors the SQL pick order: lowest owner_id, then id.
func (m *MemoryStore) getConfigLocked(name string, owner *int64) (*model.ServiceConfig, error) {
	var match *model.ServiceConfig
	for _, c := range m.configs {
		if c.Name != name {
			continue
		}
		if owner != nil && c.OwnerID != *owner {
			continue
		}
		if match == nil || c.OwnerID < match.OwnerID ||
			(c.OwnerID == match.OwnerID && c.ID < match.ID) {
			match = c
		}
	}
	if match == nil {
		return nil, sql.ErrNoRows
	}
	cp := *match
	return &cp, nil
}

func (m *MemoryStore) CreateConfig(_ context.Context, cfg *model.ServiceConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.configs {
		if c.Name == cfg.Name && c.OwnerID == cfg.OwnerID {
			return fmt.Errorf("%w: service_configs", store.ErrDuplicate)
		}
	}
	cfg.ID = m.id()
	cfg.UpdatedAt = time.Now().UTC()
	cp := *cfg
	m.configs[cfg.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateConfigPayload(_ context.Context, cfg *model.ServiceConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.configs[cfg.ID]
	if !ok {
		return sql.ErrNoRows
	}
	existing.Payload = append([]byte(nil), cfg.Payload...)
	existing.UpdatedAt = time.Now().UTC()
	cfg.UpdatedAt = existing.UpdatedAt
	return nil
}

// DeleteConfig removes the single row getConfigLocked would pick, matching
// the SQL store's unscoped single-row delete.
func (m *MemoryStore) DeleteConfig(_ context.Context, name string, owner *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, err := m.getConfigLocked(name, owner)
	if err != nil {
		return err
	}
	delete(m.configs, match.ID)
	return nil
}

func (m *MemoryStore) ListConfigs(_ context.Context, owner *int64) ([]*model.ServiceConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ServiceConfig
	for _, c := range m.configs {
		if owner != nil && c.OwnerID != *owner {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return strings.Compare(out[i].Name, out[j].Name) < 0
		}
		return out[i].OwnerID < out[j].OwnerID
	})
	return out, nil
}

func (m *MemoryStore) MaxVersion(_ context.Context, serviceName string, ownerID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := 0
	for _, v := range m.versions {
		if v.ServiceName == serviceName && v.OwnerID == ownerID && v.Version > max {
			max = v.Version
		}
	}
	return max, nil
}

func (m *MemoryStore) AddVersion(_ context.Context, v *model.ConfigVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.versions {
		if existing.ServiceName == v.ServiceName &&
			existing.OwnerID == v.OwnerID &&
			existing.Version == v.Version {
			return fmt.Errorf("%w: config_versions", store.ErrDuplicate)
		}
	}
	v.ID = m.id()
	v.CreatedAt = time.Now().UTC()
	cp := *v
	m.versions[v.ID] = &cp
	return nil
}

func (m *MemoryStore) ListVersions(_ context.Context, serviceName string, owner *int64) ([]*model.ConfigVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ConfigVersion
	for _, v := range m.versions {
		if v.ServiceName != serviceName {
			continue
		}
		if owner != nil && v.OwnerID != *owner {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (m *MemoryStore) GetVersionByID(_ context.Context, id int64, serviceName string, owner *int64) (*model.ConfigVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[id]
	if !ok || v.ServiceName != serviceName {
		return nil, sql.ErrNoRows
	}
	if owner != nil && v.OwnerID != *owner {
		return nil, sql.ErrNoRows
	}
	cp := *v
	return &cp, nil
}

func (m *MemoryStore) RevokeToken(_ context.Context, t *model.RevokedToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.revoked[t.JTI]; ok {
		t.RevokedAt = existing.RevokedAt
		return nil
	}
	t.RevokedAt = time.Now().UTC()
	cp := *t
	m.revoked[t.JTI] = &cp
	return nil
}

func (m *MemoryStore) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[jti]
	return ok, nil
}

func (m *MemoryStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	m.tx.Lock()
	defer m.tx.Unlock()
	return fn(m)
}

func (m *MemoryStore) Close() error { return nil }
