package executor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bloxkit/experience-notify/internal/crypto"
	"github.com/bloxkit/experience-notify/internal/domain"
	"github.com/bloxkit/experience-notify/internal/provider"
	"github.com/bloxkit/experience-notify/internal/store"
)

// Executor runs one claimed job to its terminal state. The job arrives
// already transitioned to processing by the store's claim; the executor
// decrypts the credential, performs the outbound call, and persists
// completed or failed before returning. No job it has touched is left
// in processing.
//
// Failures are terminal: retry is an explicit resubmission by the
// caller, never an implicit re-queue here.
type Executor struct {
	cipher *crypto.Cipher
	prov   provider.Provider
	store  store.JobStore
	logger *zap.Logger
}

func New(
	cipher *crypto.Cipher,
	prov provider.Provider,
	s store.JobStore,
	logger *zap.Logger,
) *Executor {
	return &Executor{cipher: cipher, prov: prov, store: s, logger: logger}
}

// Execute drives one job to completed or failed. The returned error is
// diagnostic only; the terminal status has already been persisted.
func (e *Executor) Execute(ctx context.Context, job *domain.Job) error {
	log := e.logger.With(zap.String("job_id", job.ID))

	// Terminal writes run on a context detached from cancellation. A
	// shutdown that aborts the outbound call must still be able to
	// persist failed/completed, or the job is stranded in processing
	// with no reaper to recover it.
	persistCtx := context.WithoutCancel(ctx)

	// The plaintext credential stays local to this call and is never
	// attached to the job, the logs, or the error message.
	apiKey, err := e.cipher.Decrypt(job.Message.Body.APIKey)
	if err != nil {
		log.Warn("credential unusable, aborting without outbound call")
		if markErr := e.store.MarkFailed(persistCtx, job.ID, "credential decryption failed"); markErr != nil {
			log.Error("failed to mark job as failed", zap.Error(markErr))
		}
		return err
	}

	err = e.prov.Send(ctx, provider.Notification{
		UserID:     job.Message.Body.UserID,
		UniverseID: job.Message.Body.UniverseID,
		AssetID:    job.Message.Body.AssetID,
	}, apiKey)
	if err != nil {
		log.Warn("notification delivery failed", zap.Error(err))
		if markErr := e.store.MarkFailed(persistCtx, job.ID, err.Error()); markErr != nil {
			log.Error("failed to mark job as failed", zap.Error(markErr))
		}
		return fmt.Errorf("deliver notification: %w", err)
	}

	if err := e.store.MarkCompleted(persistCtx, job.ID); err != nil {
		log.Error("failed to mark job as completed", zap.Error(err))
		return fmt.Errorf("finalize job: %w", err)
	}

	log.Info("notification delivered")
	return nil
}
