package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bloxkit/experience-notify/internal/store"
)

// Worker is a single execution slot: it polls the store for one ready
// job at a time, hands it to the executor, and reports the outcome to
// the metric hooks. The claim itself performs the queued→processing
// transition, so a job returned here is exclusively ours.
type Worker struct {
	id       int
	store    store.JobStore
	exec     JobExecutor
	interval time.Duration
	logger   *zap.Logger

	// Metric hooks injected by the pool so the worker stays metrics-agnostic.
	onCompleted func(latency time.Duration)
	onFailed    func()
}

// NewWorker constructs a worker. onCompleted and onFailed are optional (nil = no-op).
func NewWorker(
	id int,
	s store.JobStore,
	exec JobExecutor,
	interval time.Duration,
	logger *zap.Logger,
	onCompleted func(time.Duration),
	onFailed func(),
) *Worker {
	if onCompleted == nil {
		onCompleted = func(time.Duration) {}
	}
	if onFailed == nil {
		onFailed = func() {}
	}
	return &Worker{
		id: id, store: s, exec: exec,
		interval: interval, logger: logger,
		onCompleted: onCompleted, onFailed: onFailed,
	}
}

// Run blocks until ctx is cancelled, claiming and executing one job per
// iteration. An empty claim sleeps for the poll interval instead of
// spinning.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return
		default:
		}

		claimed, err := w.store.ClaimDue(ctx, time.Now().UTC(), 1)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("worker stopping")
				return
			}
			w.logger.Error("claim failed", zap.Error(err))
			w.sleep(ctx)
			continue
		}
		if len(claimed) == 0 {
			w.sleep(ctx)
			continue
		}

		start := time.Now()
		if err := w.exec.Execute(ctx, claimed[0]); err != nil {
			w.onFailed()
			continue
		}
		w.onCompleted(time.Since(start))
	}
}

func (w *Worker) sleep(ctx context.Context) {
	timer := time.NewTimer(w.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
