package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/configsync/configsync/internal/audit"
	"github.com/configsync/configsync/internal/configstore"
	"github.com/configsync/configsync/internal/model"
)

// scopeFrom resolves the caller's access scope for one request. Admins may
// narrow to a single tenant with ?owner=<id>; non-admins may not name
// anyone but themselves.
func scopeFrom(r *http.Request) (configstore.Scope, error) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		return configstore.Scope{}, configstore.ErrInvalidScope
	}

	var target *int64
	if raw := r.URL.Query().Get("owner"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return configstore.Scope{}, inputError("owner must be a positive integer")
		}
		target = &id
	}
	return configstore.Resolve(sess.identity.UserID, sess.identity.Role, target)
}

// audit emits a trail entry attributed to the calling user.
func (s *ConfigServer) audit(r *http.Request, build func(email string) audit.Entry) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		return
	}
	s.trail.Record(r.Context(), build(s.emailFor(r, sess.identity)))
}

// handleGetConfig handles GET /v1/configs/{service}.
func (s *ConfigServer) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")
	scope, err := scopeFrom(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	cfg, err := s.repo.Get(r.Context(), scope, service)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.audit(r, func(email string) audit.Entry {
		return audit.ConfigRetrieved(email, service)
	})
	writeJSON(w, http.StatusOK, cfg)
}

// setConfigRequest is the JSON body for PUT /v1/configs/{service}.
type setConfigRequest struct {
	Payload json.RawMessage `json:"payload"`
}

// handleSetConfig handles PUT /v1/configs/{service}.
func (s *ConfigServer) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")
	scope, err := scopeFrom(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	var req setConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Payload) == 0 || !json.Valid(req.Payload) {
		writeError(w, http.StatusBadRequest, "payload must be a JSON document")
		return
	}

	cfg, err := s.repo.Upsert(r.Context(), scope, service, req.Payload)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.audit(r, func(email string) audit.Entry {
		return audit.ConfigUpdated(email, service)
	})
	writeJSON(w, http.StatusOK, cfg)
}

// handleDeleteConfig handles DELETE /v1/configs/{service}. The version
// history survives the current row.
func (s *ConfigServer) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")
	scope, err := scopeFrom(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	deleted, err := s.repo.Delete(r.Context(), scope, service)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "config not found")
		return
	}

	s.audit(r, func(email string) audit.Entry {
		return audit.ConfigDeleted(email, service)
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleListConfigs handles GET /v1/configs.
func (s *ConfigServer) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	configs, err := s.repo.List(r.Context(), scope)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if configs == nil {
		configs = []*model.ServiceConfig{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"configs": configs})
}

// handleListVersions handles GET /v1/configs/{service}/versions.
func (s *ConfigServer) handleListVersions(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")
	scope, err := scopeFrom(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	versions, err := s.repo.ListVersions(r.Context(), scope, service)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if versions == nil {
		versions = []*model.ConfigVersion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

// rollbackRequest is the JSON body for POST /v1/configs/{service}/rollback.
type rollbackRequest struct {
	VersionID int64 `json:"version_id"`
}

// handleRollback handles POST /v1/configs/{service}/rollback.
func (s *ConfigServer) handleRollback(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")
	scope, err := scopeFrom(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	var req rollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.VersionID <= 0 {
		writeError(w, http.StatusBadRequest, "version_id is required")
		return
	}

	cfg, err := s.repo.Rollback(r.Context(), scope, service, req.VersionID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.audit(r, func(email string) audit.Entry {
		return audit.ConfigRolledBack(email, service, req.VersionID)
	})
	writeJSON(w, http.StatusOK, cfg)
}

// handleDiff handles GET /v1/configs/{service}/diff?from=<id>&to=<id>.
func (s *ConfigServer) handleDiff(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")
	scope, err := scopeFrom(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	from, err := versionParam(r, "from")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	to, err := versionParam(r, "to")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	result, err := s.repo.Diff(r.Context(), scope, service, from, to)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.audit(r, func(email string) audit.Entry {
		return audit.ConfigCompared(email, service, from, to)
	})
	writeJSON(w, http.StatusOK, result)
}

func versionParam(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, inputError(name + " query parameter is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, inputError(name + " must be a positive integer")
	}
	return id, nil
}
