package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"

	"github.com/configsync/configsync/internal/audit"
	"github.com/configsync/configsync/internal/auth"
	"github.com/configsync/configsync/internal/model"
	"github.com/configsync/configsync/internal/store"
)

// registerRequest is the JSON body for POST /v1/auth/register.
type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// handleRegister handles POST /v1/auth/register.
func (s *ConfigServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	role := model.Role(req.Role)
	if req.Role == "" {
		role = model.RoleUser
	}
	if !role.Valid() {
		writeError(w, http.StatusBadRequest, "role must be 'user' or 'admin'")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	user := &model.User{
		Username:       req.Username,
		Email:          req.Email,
		Role:           role,
		HashedPassword: hash,
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "username or email already registered")
			return
		}
		s.writeDomainError(w, err)
		return
	}

	s.trail.Record(r.Context(), audit.UserRegistered(user.Email, string(user.Role)))
	writeJSON(w, http.StatusCreated, user.Public())
}

// loginRequest is the JSON body for POST /v1/auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the token payload returned on successful login.
type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// handleLogin handles POST /v1/auth/login.
func (s *ConfigServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil || !auth.CheckPassword(user.HashedPassword, req.Password) {
		// Same answer for unknown user and wrong password.
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, _, err := s.issuer.Issue(user)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.trail.Record(r.Context(), audit.UserLoggedIn(user.Email))
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: token, TokenType: "bearer"})
}

// handleLogout handles POST /v1/auth/logout. The presented token's jti is
// revoked; the user's other sessions stay valid.
func (s *ConfigServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing session")
		return
	}

	revoked := &model.RevokedToken{
		JTI:    sess.claims.ID,
		UserID: sess.identity.UserID,
	}
	if sess.claims.ExpiresAt != nil {
		t := sess.claims.ExpiresAt.Time
		revoked.ExpiresAt = &t
	}
	if err := s.store.RevokeToken(r.Context(), revoked); err != nil {
		s.writeDomainError(w, err)
		return
	}

	email := s.emailFor(r, sess.identity)
	s.trail.Record(r.Context(), audit.UserLoggedOut(email))
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// emailFor resolves the caller's email for audit lines, falling back to the
// username when the account row is gone.
func (s *ConfigServer) emailFor(r *http.Request, id auth.Identity) string {
	user, err := s.store.GetUserByID(r.Context(), id.UserID)
	if err != nil {
		return id.Username
	}
	return user.Email
}
