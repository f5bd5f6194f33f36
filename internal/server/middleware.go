package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/configsync/configsync/internal/auth"
)

type contextKey string

const sessionKey contextKey = "session"

// session is the authenticated request state carried in the context.
type session struct {
	identity auth.Identity
	claims   *auth.Claims
}

// sessionFrom returns the session attached by authMiddleware.
func sessionFrom(ctx context.Context) (*session, bool) {
	s, ok := ctx.Value(sessionKey).(*session)
	return s, ok
}

// exemptPaths are reachable without a token.
var exemptPaths = map[string]bool{
	"/v1/health":        true,
	"/v1/auth/register": true,
	"/v1/auth/login":    true,
}

// authMiddleware verifies the bearer token, rejects revoked sessions, and
// attaches the caller identity to the request context.
func (s *ConfigServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exemptPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid authorization scheme")
			return
		}

		claims, err := s.issuer.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		identity, err := claims.Identity()
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		revoked, err := s.store.IsTokenRevoked(r.Context(), claims.ID)
		if err != nil {
			s.logger.Error("revocation check failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if revoked {
			writeError(w, http.StatusUnauthorized, "token revoked")
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, &session{
			identity: identity,
			claims:   claims,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// logMiddleware logs one line per request and recovers from handler panics.
func (s *ConfigServer) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if v := recover(); v != nil {
				s.logger.Error("handler panic", "method", r.Method, "path", r.URL.Path, "panic", v)
				writeError(rec, http.StatusInternalServerError, "internal error")
			}
			s.logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start))
		}()

		next.ServeHTTP(rec, r)
	})
}
