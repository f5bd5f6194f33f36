package server

import (
	"encoding/json"
	"net/http"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// Everything except health, register, and login requires a valid bearer
// token issued by the server's TokenIssuer.
func (s *ConfigServer) NewHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/register", s.handleRegister)
	mux.HandleFunc("POST /v1/auth/login", s.handleLogin)
	mux.HandleFunc("POST /v1/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /v1/configs", s.handleListConfigs)
	mux.HandleFunc("GET /v1/configs/{service}", s.handleGetConfig)
	mux.HandleFunc("PUT /v1/configs/{service}", s.handleSetConfig)
	mux.HandleFunc("DELETE /v1/configs/{service}", s.handleDeleteConfig)
	mux.HandleFunc("GET /v1/configs/{service}/versions", s.handleListVersions)
	mux.HandleFunc("POST /v1/configs/{service}/rollback", s.handleRollback)
	mux.HandleFunc("GET /v1/configs/{service}/diff", s.handleDiff)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return s.logMiddleware(s.authMiddleware(mux))
}

// handleHealth handles GET /v1/health. The revocation lookup doubles as a
// cheap database probe.
func (s *ConfigServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	database := "ok"
	status := http.StatusOK
	if _, err := s.store.IsTokenRevoked(r.Context(), "health-probe"); err != nil {
		database = "unreachable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"status": "ok", "database": database})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
