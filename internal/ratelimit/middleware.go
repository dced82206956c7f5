package ratelimit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"

	"shortener/internal/auth"
	"shortener/internal/models"
)

// Middleware returns HTTP middleware that enforces the fixed-window quota
// on verified identities. Requests carrying the default identity bypass
// quota entirely; that is the documented behavior of the current
// deployment phase, not an oversight — unauthenticated traffic is limited
// upstream if at all.
//
// Every rate-checked response (allowed or denied) carries
// X-RateLimit-Limit, X-RateLimit-Remaining, and X-RateLimit-Reset headers.
// Denied requests get a 429 with a Retry-After header (ceiling-rounded
// seconds) and a machine-readable retry hint in the body; the downstream
// handler never runs and no quota is consumed.
func Middleware(limiter Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := auth.IdentityFrom(r.Context())
			if !identity.IsVerified() {
				next.ServeHTTP(w, r)
				return
			}

			decision, err := limiter.Allow(r.Context(), identity.Key().ID)
			if err != nil {
				slog.Error("rate limit check failed", "error", err, "key_id", identity.Key().ID)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(models.NewErrorResponse(
					"Rate limit store unavailable", models.ErrorCodeServiceUnavailable))
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", decision.ResetAt.Unix()))

			if !decision.Allowed {
				retryAfterSecs := int(math.Ceil(decision.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				errorResp := models.NewErrorResponse("Rate limit exceeded", models.ErrorCodeRateLimited)
				errorResp.Details = map[string]string{
					"retry_after_seconds": fmt.Sprintf("%d", retryAfterSecs),
				}
				json.NewEncoder(w).Encode(errorResp)

				slog.Warn("rate limit exceeded",
					"key_id", identity.Key().ID,
					"limit", decision.Limit,
					"retry_after", retryAfterSecs,
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
