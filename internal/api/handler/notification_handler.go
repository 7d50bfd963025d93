package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	apimw "github.com/bloxkit/experience-notify/internal/api/middleware"
	"github.com/bloxkit/experience-notify/internal/crypto"
	"github.com/bloxkit/experience-notify/internal/domain"
	"github.com/bloxkit/experience-notify/internal/queue"
)

// credentialHeader carries the caller's Open Cloud API key. It travels as
// a header, never in the JSON body, so request bodies can be logged or
// replayed without exposing the key.
const credentialHeader = "x-cloud-api-key"

// NotificationHandler handles the submit / status / cancel endpoints.
// The credential is encrypted here, at the boundary, so everything past
// this handler only ever sees ciphertext.
type NotificationHandler struct {
	q      *queue.NotificationQueue
	cipher *crypto.Cipher
	logger *zap.Logger

	// onSubmitted fires once per accepted submission. Nil means no metrics.
	onSubmitted func()
}

func NewNotificationHandler(q *queue.NotificationQueue, cipher *crypto.Cipher, logger *zap.Logger, onSubmitted func()) *NotificationHandler {
	return &NotificationHandler{q: q, cipher: cipher, logger: logger, onSubmitted: onSubmitted}
}

// Send handles POST /api/send-experience-notification
//
// Accepts the notification payload in the body and the Open Cloud key in
// the x-cloud-api-key header, encrypts the key, and enqueues a job. The
// jobId in the response is the caller's handle for status and cancel.
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req domain.SendNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	apiKey := r.Header.Get(credentialHeader)
	if apiKey == "" {
		mapError(w, domain.ErrMissingCredential)
		return
	}

	if err := req.Validate(); err != nil {
		mapError(w, err)
		return
	}

	userID, err := req.UserIDInt()
	if err != nil {
		mapError(w, err)
		return
	}

	var delay *time.Duration
	if d, ok, derr := req.Delay(time.Now()); derr != nil {
		mapError(w, derr)
		return
	} else if ok {
		delay = &d
	}

	encrypted, err := h.cipher.Encrypt(apiKey)
	if err != nil {
		h.logger.Error("credential encryption failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	msg := domain.Message{
		Type: domain.MessageTypeExperienceNotification,
		Body: domain.MessageBody{
			UserID:     userID,
			APIKey:     encrypted,
			UniverseID: req.UniverseID,
			AssetID:    req.AssetID,
		},
	}

	jobID, err := h.q.Submit(r.Context(), msg, delay)
	if err != nil {
		h.logger.Warn("submit failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	if h.onSubmitted != nil {
		h.onSubmitted()
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message": "notification queued",
		"jobId":   jobID,
		"status":  http.StatusOK,
	})
}

// Status handles GET /api/get-experience-notification-status?jobId=
//
// The response never includes the stored credential, even in its
// encrypted form.
func (h *NotificationHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("jobId")
	if jobID == "" {
		mapError(w, domain.ErrMissingJobID)
		return
	}

	job, err := h.q.Status(r.Context(), jobID)
	if err != nil {
		mapError(w, err)
		return
	}

	data := map[string]any{
		"jobId":      job.ID,
		"userId":     job.Message.Body.UserID,
		"universeId": job.Message.Body.UniverseID,
		"assetId":    job.Message.Body.AssetID,
		"status":     job.Status,
		"readyAt":    job.ReadyAt,
		"createdAt":  job.CreatedAt,
		"updatedAt":  job.UpdatedAt,
	}
	if job.LastError != "" {
		data["lastError"] = job.LastError
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message": "notification status",
		"status":  http.StatusOK,
		"data":    data,
	})
}

// Cancel handles POST /api/cancel-experience-notification
//
// Cancellation is idempotent: an unknown, already-claimed, or finished
// jobId still yields success, since that job will not run again either way.
func (h *NotificationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req domain.CancelNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		mapError(w, err)
		return
	}

	removed, err := h.q.Cancel(r.Context(), req.JobID)
	if err != nil {
		h.logger.Warn("cancel failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	msg := "notification cancelled"
	if !removed {
		msg = "no queued notification to cancel"
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": msg,
		"status":  http.StatusOK,
	})
}
