// Package auth guards the HTTP API with a single service key, verified
// against a bcrypt hash from the environment.
package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// Service verifies bearer keys against the configured hash.
type Service struct {
	keyHash []byte // bcrypt hash of the service key; empty disables auth
}

// NewService builds the auth service. An empty hash disables authentication
// entirely, which is logged once at startup.
func NewService(keyHash string) *Service {
	if keyHash == "" {
		log.Warn().Msg("SERVICE_API_KEY_HASH not set; API authentication is disabled")
	}
	return &Service{keyHash: []byte(keyHash)}
}

// Enabled reports whether requests must carry a bearer key.
func (s *Service) Enabled() bool { return len(s.keyHash) > 0 }

// Middleware rejects requests without a valid bearer key. With auth
// disabled, requests pass through untouched.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			writeJSONError(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		key := parts[1]
		if key == "" {
			writeJSONError(w, http.StatusUnauthorized, "empty api key")
			return
		}

		if err := bcrypt.CompareHashAndPassword(s.keyHash, []byte(key)); err != nil {
			log.Debug().Str("path", r.URL.Path).Msg("bearer key rejected")
			writeJSONError(w, http.StatusUnauthorized, "invalid api key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
