package handler

import (
	"net/http"

	"github.com/bloxkit/experience-notify/internal/queue"
	"github.com/bloxkit/experience-notify/internal/ratelimiter"
)

// MetricsHandler serves a human-readable JSON queue snapshot.
// Raw Prometheus metrics (counters, histograms) are available at /metrics
// via promhttp.Handler and are separate from this endpoint.
type MetricsHandler struct {
	q        *queue.NotificationQueue
	limiters *ratelimiter.KeyLimiters
}

func NewMetricsHandler(q *queue.NotificationQueue, limiters *ratelimiter.KeyLimiters) *MetricsHandler {
	return &MetricsHandler{q: q, limiters: limiters}
}

// GetMetrics handles GET /api/metrics
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	counts, err := h.q.Counts(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"jobs":            counts,
		"tracked_clients": h.limiters.Len(),
		"pending_total":   counts.Queued + counts.Processing,
		"terminal_total":  counts.Completed + counts.Failed,
	})
}
