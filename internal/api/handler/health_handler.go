package handler

import (
	"net/http"

	"github.com/bloxkit/experience-notify/internal/queue"
)

// failedJobsWarnThreshold is the failed-job count past which the health
// payload starts carrying a warning. Failed jobs stay on record for the
// full retention window, so a climbing count means deliveries are going
// wrong faster than records expire.
const failedJobsWarnThreshold = 100

// HealthHandler serves the open root endpoint with a queue snapshot.
type HealthHandler struct {
	q *queue.NotificationQueue
}

func NewHealthHandler(q *queue.NotificationQueue) *HealthHandler {
	return &HealthHandler{q: q}
}

// Health handles GET /
//
// Always open, no auth. Doubles as a liveness probe and a quick
// operator view of queue depth.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"message": "experience notification service",
		"status":  http.StatusOK,
		"queue":   queue.Name,
		"routes": []string{
			"POST /api/send-experience-notification",
			"GET /api/get-experience-notification-status",
			"POST /api/cancel-experience-notification",
		},
	}

	counts, err := h.q.Counts(r.Context())
	if err == nil {
		body["jobs"] = counts
		if counts.Failed > failedJobsWarnThreshold {
			body["warning"] = "a lot of failed jobs, check provider credentials and logs"
		}
	}

	respondJSON(w, http.StatusOK, body)
}
