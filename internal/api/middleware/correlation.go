package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ctxKey int

const correlationKey ctxKey = iota

const correlationHeader = "X-Correlation-ID"

// maxCorrelationIDLen caps caller-supplied ids so a hostile client
// cannot inflate every log line the id is attached to.
const maxCorrelationIDLen = 64

// CorrelationID tags each request with an id that follows it into the
// job logs. A caller-supplied id is kept, so a game server can trace
// its own submission end to end; absent or oversized ids are replaced
// with a fresh UUID. The id is echoed in the response header either way.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(correlationHeader)
		if id == "" || len(id) > maxCorrelationIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(correlationHeader, id)
		ctx := context.WithValue(r.Context(), correlationKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetCorrelationID returns the request's correlation id, or "" when the
// middleware is not in the chain.
func GetCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey).(string)
	return id
}
