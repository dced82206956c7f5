package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"shortener/internal/models"
)

const bearerPrefix = "Bearer "

// Middleware resolves the request's identity and stores it in the request
// context. The decision table:
//
//   - no Authorization header: default identity, request continues without
//     quota (the current deployment phase allows anonymous API access);
//   - malformed header or unmatched secret: 401, downstream never runs;
//   - storage unreachable: 503 — infrastructure failures are not masked as
//     authentication failures;
//   - matched secret: verified identity attached to the context.
func Middleware(validator *Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				ctx := WithIdentity(r.Context(), DefaultIdentity())
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if !strings.HasPrefix(authHeader, bearerPrefix) {
				writeAuthError(w, http.StatusUnauthorized, "Invalid authorization format", models.ErrorCodeUnauthorized)
				return
			}

			secret := authHeader[len(bearerPrefix):]
			key, ok, err := validator.Validate(r.Context(), secret)
			if err != nil {
				slog.Error("credential lookup failed", "error", err, "path", r.URL.Path)
				writeAuthError(w, http.StatusServiceUnavailable, "Credential store unavailable", models.ErrorCodeServiceUnavailable)
				return
			}
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "Invalid API key", models.ErrorCodeUnauthorized)
				return
			}

			ctx := WithIdentity(r.Context(), Verified(key))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireVerified returns middleware that rejects requests carrying the
// default identity. Used for endpoints like key management where anonymous
// access is never acceptable.
func RequireVerified() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IdentityFrom(r.Context()).IsVerified() {
				writeAuthError(w, http.StatusUnauthorized, "Authorization required", models.ErrorCodeUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.NewErrorResponse(message, code))
}
