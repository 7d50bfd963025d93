package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/bloxkit/experience-notify/internal/fingerprint"
	"github.com/bloxkit/experience-notify/internal/ratelimiter"
)

// RateLimitByFingerprint rejects requests whose client fingerprint has
// exhausted its per-minute budget. Limiting is keyed on the header
// fingerprint rather than the source IP, so clients behind a shared NAT
// do not starve each other. onReject fires once per rejected request.
func RateLimitByFingerprint(
	gen *fingerprint.Generator,
	limiters *ratelimiter.KeyLimiters,
	onReject func(),
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := gen.Fingerprint(r.Header)
			if !limiters.Allow(key) {
				if onReject != nil {
					onReject()
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"message": "too many requests for this client",
					"status":  http.StatusTooManyRequests,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
