package store

import (
	"context"
	"time"

	"github.com/bloxkit/experience-notify/internal/domain"
)

// JobStore defines all persistence operations for notification jobs.
// The redis implementation is in redis_store.go, the postgres one in
// pg_store.go. Tests use the in-memory implementation (memory_store.go).
//
// ClaimDue is the single cross-worker coordination point: it must
// atomically transition each returned job from queued to processing so
// two workers can never both claim the same job.
type JobStore interface {
	// Put stores a new job record.
	Put(ctx context.Context, job *domain.Job) error

	// Get returns the job or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Job, error)

	// Delete removes the job only while it is still queued. It reports
	// whether a record was removed; an unknown id or a job past the
	// queued state is not an error.
	Delete(ctx context.Context, id string) (bool, error)

	// ClaimDue atomically claims up to limit jobs whose ReadyAt has
	// elapsed, transitioning them to processing, oldest ready time first.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*domain.Job, error)

	// MarkCompleted finalizes a claimed job as completed.
	MarkCompleted(ctx context.Context, id string) error

	// MarkFailed finalizes a claimed job as failed with a diagnostic
	// message. The message must never contain credential material.
	MarkFailed(ctx context.Context, id string, errMsg string) error

	// CountByStatus returns the per-state job counts.
	CountByStatus(ctx context.Context) (domain.StatusCounts, error)

	// PurgeExpired deletes records whose retention window has elapsed
	// and reports how many were removed.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
