package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type Config struct {
	APIKey string
}

type contextKey string

const userIDKey contextKey = "user_id"

// UserID returns the authenticated user id, or "" when absent.
func UserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// WithUserID is used by tests and internal callers to seed an identity.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Middleware validates the service API key and extracts the caller identity
// from X-User-ID. Authentication itself happens upstream; this service only
// trusts the identity the gateway forwards.
func Middleware(config *Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.APIKey != "" && !keyMatches(r, config.APIKey) {
				writeUnauthorized(w, "Invalid or missing API key",
					"Provide API key via Authorization: Bearer <key> or X-API-Key: <key>")
				return
			}

			userID := r.Header.Get("X-User-ID")
			if userID == "" {
				writeUnauthorized(w, "Missing X-User-ID header", "")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func keyMatches(r *http.Request, apiKey string) bool {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		if strings.TrimPrefix(authHeader, "Bearer ") == apiKey {
			return true
		}
	}
	return r.Header.Get("X-API-Key") == apiKey
}

func writeUnauthorized(w http.ResponseWriter, message, hint string) {
	resp := map[string]string{
		"code":    "unauthorized",
		"message": message,
	}
	if hint != "" {
		resp["hint"] = hint
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(resp)
}
