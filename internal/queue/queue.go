package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bloxkit/experience-notify/internal/domain"
	"github.com/bloxkit/experience-notify/internal/store"
)

// Name identifies the single active notification queue in the backing
// store and in monitoring output.
const Name = "experience-notifications"

// NotificationQueue owns the submission side of the job lifecycle:
// id generation, scheduling, cancellation, and status queries. It
// accepts message bodies whose credential is already encrypted; the
// cipher is a boundary concern, not a queue concern.
type NotificationQueue struct {
	store        store.JobStore
	defaultDelay time.Duration
	retention    time.Duration
	logger       *zap.Logger
}

func New(
	s store.JobStore,
	defaultDelay time.Duration,
	retention time.Duration,
	logger *zap.Logger,
) *NotificationQueue {
	return &NotificationQueue{
		store:        s,
		defaultDelay: defaultDelay,
		retention:    retention,
		logger:       logger,
	}
}

// Submit persists a new job and returns its id immediately; execution
// happens out-of-band once the delay elapses. A nil delay falls back to
// the configured default. Negative delays are a caller error rejected
// before any store write.
func (q *NotificationQueue) Submit(ctx context.Context, msg domain.Message, delay *time.Duration) (string, error) {
	d := q.defaultDelay
	if delay != nil {
		d = *delay
	}
	if d < 0 {
		return "", domain.ErrDelayInPast
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:        uuid.New().String(),
		Message:   msg,
		Status:    domain.StatusQueued,
		ReadyAt:   now.Add(d),
		ExpiresAt: now.Add(q.retention),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := q.store.Put(ctx, job); err != nil {
		return "", fmt.Errorf("persist job: %w", err)
	}

	q.logger.Info("job queued",
		zap.String("job_id", job.ID),
		zap.Time("ready_at", job.ReadyAt),
	)
	return job.ID, nil
}

// Cancel removes the job if it has not been claimed yet and reports
// whether a queued record was actually deleted. It is idempotent:
// cancelling an unknown, in-flight, or terminal job returns false with
// no error, because the desired end state (this id will not be
// processed again) already holds.
func (q *NotificationQueue) Cancel(ctx context.Context, id string) (bool, error) {
	removed, err := q.store.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	if removed {
		q.logger.Info("job cancelled", zap.String("job_id", id))
	}
	return removed, nil
}

// Status returns the job record or domain.ErrNotFound.
func (q *NotificationQueue) Status(ctx context.Context, id string) (*domain.Job, error) {
	return q.store.Get(ctx, id)
}

// Counts returns the per-state job counts for health and monitoring.
func (q *NotificationQueue) Counts(ctx context.Context) (domain.StatusCounts, error) {
	return q.store.CountByStatus(ctx)
}
