package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bloxkit/experience-notify/internal/domain"
	"github.com/bloxkit/experience-notify/internal/store"
)

// JobExecutor runs one claimed job to its terminal state.
// Satisfied by executor.Executor; stubbed in tests.
type JobExecutor interface {
	Execute(ctx context.Context, job *domain.Job) error
}

// MetricHooks carries the metric callback functions injected by main.
// Using a struct keeps the pool constructor signature clean.
type MetricHooks struct {
	OnCompleted func(latency time.Duration)
	OnFailed    func()
}

// Pool manages a fixed number of concurrent execution slots. Each slot
// claims at most one job at a time and runs it to completion before
// claiming again, so the concurrency limit bounds in-flight deliveries.
// All cross-slot coordination happens through the store's atomic claim.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

// NewPool creates concurrency identical workers sharing the store and executor.
func NewPool(
	concurrency int,
	s store.JobStore,
	exec JobExecutor,
	pollInterval time.Duration,
	logger *zap.Logger,
	hooks MetricHooks,
) *Pool {
	workers := make([]*Worker, concurrency)
	for i := range workers {
		workers[i] = NewWorker(
			i, s, exec, pollInterval,
			logger.With(zap.Int("worker_id", i)),
			hooks.OnCompleted,
			hooks.OnFailed,
		)
	}
	return &Pool{workers: workers}
}

// Start launches all workers as goroutines.
// The provided ctx is forwarded to every worker; cancelling it
// triggers a graceful shutdown of the entire pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
// Call this after cancelling the context so in-flight jobs finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}
