package domain

import (
	"strconv"
	"time"
)

// Status tracks the lifecycle of a notification job.
// Transitions are one-directional: queued -> processing -> completed|failed.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further transitions occur from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// MessageTypeExperienceNotification is the only message kind currently
// dispatched. The Type discriminator exists so further kinds can be added
// without changing the job envelope.
const MessageTypeExperienceNotification = "experienceNotification"

// MessageBody is the payload of an experience notification.
// APIKey always holds ciphertext produced by the credential cipher;
// the plaintext key exists only inside the executor while sending.
type MessageBody struct {
	UserID     int64  `json:"userId"`
	APIKey     string `json:"apiKey"`
	UniverseID string `json:"universeId"`
	AssetID    string `json:"assetId"`
}

// Message wraps a typed payload.
type Message struct {
	Type string      `json:"type"`
	Body MessageBody `json:"body"`
}

// Job is the core domain entity: one outbound notification tracked
// through its status lifecycle.
type Job struct {
	ID        string    `json:"jobId"`
	Message   Message   `json:"message"`
	Status    Status    `json:"status"`
	ReadyAt   time.Time `json:"readyAt"`   // earliest time a worker may claim the job
	ExpiresAt time.Time `json:"expiresAt"` // retention cutoff; the janitor purges past this
	LastError string    `json:"lastError,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SendNotificationRequest is the inbound payload for a submission.
// The raw credential travels separately in the x-cloud-api-key header
// and is never part of the JSON body.
type SendNotificationRequest struct {
	UserID         string `json:"userId"`
	UniverseID     string `json:"universeId"`
	AssetID        string `json:"assetId"`
	DelayTimestamp string `json:"delayTimestamp,omitempty"`
}

func (r *SendNotificationRequest) Validate() error {
	if _, err := parseUserID(r.UserID); err != nil {
		return err
	}
	if r.UniverseID == "" {
		return ErrMissingUniverseID
	}
	if r.AssetID == "" {
		return ErrMissingAssetID
	}
	return nil
}

// UserIDInt returns the numeric user ID the request carries as a string.
func (r *SendNotificationRequest) UserIDInt() (int64, error) {
	return parseUserID(r.UserID)
}

func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidUserID
	}
	return id, nil
}

// Delay converts the optional delayTimestamp into a delay relative to now.
// The timestamp is an absolute point in time, given either as epoch
// milliseconds or RFC 3339. ok=false means no timestamp was supplied and
// the caller should fall back to the default delay.
func (r *SendNotificationRequest) Delay(now time.Time) (delay time.Duration, ok bool, err error) {
	if r.DelayTimestamp == "" {
		return 0, false, nil
	}

	var at time.Time
	if ms, perr := strconv.ParseInt(r.DelayTimestamp, 10, 64); perr == nil {
		at = time.UnixMilli(ms)
	} else if t, perr := time.Parse(time.RFC3339, r.DelayTimestamp); perr == nil {
		at = t
	} else {
		return 0, false, ErrInvalidDelayTimestamp
	}

	d := at.Sub(now)
	if d < 0 {
		return 0, false, ErrDelayInPast
	}
	return d, true, nil
}

// CancelNotificationRequest identifies the job to cancel.
type CancelNotificationRequest struct {
	JobID string `json:"jobId"`
}

func (r *CancelNotificationRequest) Validate() error {
	if r.JobID == "" {
		return ErrMissingJobID
	}
	return nil
}

// StatusCounts is the per-state queue snapshot served by health and
// metrics endpoints.
type StatusCounts struct {
	Queued     int64 `json:"queued"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}
