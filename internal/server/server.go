// Package server exposes the configuration store over HTTP.
package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/configsync/configsync/internal/audit"
	"github.com/configsync/configsync/internal/auth"
	"github.com/configsync/configsync/internal/configstore"
	"github.com/configsync/configsync/internal/store"
)

// ConfigServer holds the dependencies shared by all HTTP handlers.
type ConfigServer struct {
	store  store.Store
	repo   *configstore.Repository
	issuer *auth.TokenIssuer
	trail  *audit.Trail
	logger *slog.Logger
}

// NewConfigServer returns a server backed by the given store.
func NewConfigServer(s store.Store, issuer *auth.TokenIssuer, trail *audit.Trail, logger *slog.Logger) *ConfigServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigServer{
		store:  s,
		repo:   configstore.New(s),
		issuer: issuer,
		trail:  trail,
		logger: logger,
	}
}

// inputError indicates invalid user input. The transport maps it to 400.
type inputError string

func (e inputError) Error() string { return string(e) }

// writeDomainError maps repository errors onto HTTP statuses. Scope
// violations surface as 404 just like missing rows, so a caller cannot
// distinguish "not yours" from "not there".
func (s *ConfigServer) writeDomainError(w http.ResponseWriter, err error) {
	var input inputError
	switch {
	case errors.Is(err, configstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "config not found")
	case errors.Is(err, configstore.ErrInvalidScope):
		writeError(w, http.StatusBadRequest, "cannot resolve owner scope")
	case errors.Is(err, configstore.ErrConflict):
		writeError(w, http.StatusConflict, "conflicting concurrent write, retry")
	case errors.As(err, &input):
		writeError(w, http.StatusBadRequest, input.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
