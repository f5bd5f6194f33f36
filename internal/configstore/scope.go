// Package configstore implements the versioned, access-scoped configuration
// repository: upsert-with-history, listing, deletion, version lookup,
// rollback, and structural diff.
//
// Every operation takes a Scope resolved once from the caller's identity.
// The store layer below applies the scope mechanically and enforces nothing
// itself; permission decisions live here.
package configstore

import (
	"errors"

	"github.com/configsync/configsync/internal/model"
)

var (
	// ErrNotFound is returned when no row is visible under the caller's
	// scope. A row that exists but belongs to someone else is reported
	// identically, so callers cannot probe for other tenants' services.
	ErrNotFound = errors.New("configstore: not found")

	// ErrInvalidScope is returned when an access scope cannot be resolved
	// from the caller's identity.
	ErrInvalidScope = errors.New("configstore: cannot resolve owner scope")

	// ErrConflict is returned when a concurrent writer won the race for a
	// version slot or a current-state row.
	ErrConflict = errors.New("configstore: conflicting concurrent write")
)

// Scope is the resolved access scope of one operation: which owner's rows
// the caller may see, and which owner newly created rows belong to.
type Scope struct {
	caller int64
	owner  *int64 // nil means unscoped (admin acting across all owners)
}

// OwnedBy returns a scope confined to a single owner's rows.
func OwnedBy(id int64) Scope {
	return Scope{caller: id, owner: &id}
}

// Unscoped returns an admin scope with no owner filter.
func Unscoped(callerID int64) Scope {
	return Scope{caller: callerID}
}

// Resolve derives the scope for a caller. Non-admins always operate on
// their own rows; a target owner they name is ignored rather than
// rejected, so cross-tenant probes surface as not-found downstream.
// Admins default to unscoped and may narrow to an explicit target owner.
func Resolve(callerID int64, role model.Role, targetOwner *int64) (Scope, error) {
	if callerID <= 0 {
		return Scope{}, ErrInvalidScope
	}
	switch role {
	case model.RoleAdmin:
		if targetOwner != nil {
			return Scope{caller: callerID, owner: targetOwner}, nil
		}
		return Unscoped(callerID), nil
	case model.RoleUser:
		return OwnedBy(callerID), nil
	default:
		return Scope{}, ErrInvalidScope
	}
}

// Filter returns the owner filter to pass to the store; nil means no filter.
func (s Scope) Filter() *int64 {
	return s.owner
}

// CreateOwner returns the owner newly created rows are attributed to: the
// scope's explicit owner when set, otherwise the caller.
func (s Scope) CreateOwner() int64 {
	if s.owner != nil {
		return *s.owner
	}
	return s.caller
}

// Caller returns the identity the scope was resolved for.
func (s Scope) Caller() int64 {
	return s.caller
}
