// Package model defines the data records persisted by the configuration store.
package model

import (
	"encoding/json"
	"time"
)

// Role is the permission level attached to a user account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is a registered account. The password is stored only as a bcrypt hash.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// Public returns the externally visible view of a user.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
}

// PublicUser is the response shape for user records.
type PublicUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// ServiceConfig is the current configuration payload for a service.
// Name is unique only per owner; two users may each own a "payments" config.
type ServiceConfig struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload"`
	OwnerID   int64           `json:"owner_id"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ConfigVersion is an immutable historical snapshot of a service config.
// Version numbers are a gap-free 1..N sequence per (service_name, owner_id)
// and survive deletion of the current-state row.
type ConfigVersion struct {
	ID          int64           `json:"id"`
	ServiceName string          `json:"service_name"`
	Version     int             `json:"version"`
	Payload     json.RawMessage `json:"payload"`
	OwnerID     int64           `json:"owner_id"`
	CreatedAt   time.Time       `json:"created_at"`
}

// RevokedToken records a JWT that was invalidated by logout before its
// natural expiry. ExpiresAt is nil when the token carried no exp claim.
type RevokedToken struct {
	JTI       string     `json:"jti"`
	RevokedAt time.Time  `json:"revoked_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	UserID    int64      `json:"user_id"`
}
