package worker_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bloxkit/experience-notify/internal/domain"
	"github.com/bloxkit/experience-notify/internal/store"
	"github.com/bloxkit/experience-notify/internal/worker"
)

// countingExecutor marks jobs completed and tracks which ids it saw.
type countingExecutor struct {
	mu    sync.Mutex
	seen  map[string]int
	store store.JobStore
	delay time.Duration
}

func (e *countingExecutor) Execute(ctx context.Context, job *domain.Job) error {
	e.mu.Lock()
	e.seen[job.ID]++
	e.mu.Unlock()
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	return e.store.MarkCompleted(ctx, job.ID)
}

func putJob(t *testing.T, s store.JobStore, id string, readyAt time.Time) {
	t.Helper()
	now := time.Now().UTC()
	err := s.Put(context.Background(), &domain.Job{
		ID: id,
		Message: domain.Message{
			Type: domain.MessageTypeExperienceNotification,
			Body: domain.MessageBody{UserID: 1, APIKey: "ct", UniverseID: "2", AssetID: "3"},
		},
		Status:    domain.StatusQueued,
		ReadyAt:   readyAt,
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestPool_ProcessesEachJobExactlyOnce(t *testing.T) {
	s := store.NewMemoryStore()
	exec := &countingExecutor{seen: make(map[string]int), store: s}

	const jobs = 30
	now := time.Now().UTC()
	ids := make([]string, jobs)
	for i := range ids {
		ids[i] = string(rune('a' + i%26)) + string(rune('0'+i/26))
		putJob(t, s, ids[i], now)
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := worker.NewPool(4, s, exec, 5*time.Millisecond, zap.NewNop(), worker.MetricHooks{})
	pool.Start(ctx)

	waitFor(t, 3*time.Second, func() bool {
		counts, _ := s.CountByStatus(context.Background())
		return counts.Completed == jobs
	})

	cancel()
	pool.Wait()

	exec.mu.Lock()
	defer exec.mu.Unlock()
	if len(exec.seen) != jobs {
		t.Fatalf("expected %d distinct jobs executed, got %d", jobs, len(exec.seen))
	}
	for id, n := range exec.seen {
		if n != 1 {
			t.Fatalf("job %s executed %d times", id, n)
		}
	}
}

func TestPool_HonorsScheduledTime(t *testing.T) {
	s := store.NewMemoryStore()
	exec := &countingExecutor{seen: make(map[string]int), store: s}

	putJob(t, s, "delayed", time.Now().UTC().Add(150*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool := worker.NewPool(2, s, exec, 5*time.Millisecond, zap.NewNop(), worker.MetricHooks{})
	pool.Start(ctx)

	// Well before the scheduled time the job must still be queued.
	time.Sleep(50 * time.Millisecond)
	job, err := s.Get(context.Background(), "delayed")
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != domain.StatusQueued {
		t.Fatalf("job picked up before its scheduled time, status=%s", job.Status)
	}

	waitFor(t, 2*time.Second, func() bool {
		job, err := s.Get(context.Background(), "delayed")
		return err == nil && job.Status == domain.StatusCompleted
	})

	cancel()
	pool.Wait()
}

func TestPool_BoundedConcurrency(t *testing.T) {
	s := store.NewMemoryStore()

	var inFlight, peak int64
	exec := &trackingExecutor{store: s, inFlight: &inFlight, peak: &peak}

	now := time.Now().UTC()
	for i := 0; i < 12; i++ {
		putJob(t, s, string(rune('a'+i)), now)
	}

	const concurrency = 3
	ctx, cancel := context.WithCancel(context.Background())
	pool := worker.NewPool(concurrency, s, exec, time.Millisecond, zap.NewNop(), worker.MetricHooks{})
	pool.Start(ctx)

	waitFor(t, 3*time.Second, func() bool {
		counts, _ := s.CountByStatus(context.Background())
		return counts.Completed == 12
	})
	cancel()
	pool.Wait()

	if got := atomic.LoadInt64(&peak); got > concurrency {
		t.Fatalf("observed %d concurrent executions, limit is %d", got, concurrency)
	}
}

type trackingExecutor struct {
	store    store.JobStore
	inFlight *int64
	peak     *int64
}

func (e *trackingExecutor) Execute(ctx context.Context, job *domain.Job) error {
	n := atomic.AddInt64(e.inFlight, 1)
	for {
		old := atomic.LoadInt64(e.peak)
		if n <= old || atomic.CompareAndSwapInt64(e.peak, old, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	atomic.AddInt64(e.inFlight, -1)
	return e.store.MarkCompleted(ctx, job.ID)
}

func TestPool_MetricHooksFire(t *testing.T) {
	s := store.NewMemoryStore()
	exec := &countingExecutor{seen: make(map[string]int), store: s}
	putJob(t, s, "one", time.Now().UTC())

	var completed int64
	hooks := worker.MetricHooks{
		OnCompleted: func(time.Duration) { atomic.AddInt64(&completed, 1) },
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := worker.NewPool(1, s, exec, time.Millisecond, zap.NewNop(), hooks)
	pool.Start(ctx)

	waitFor(t, 2*time.Second, func() bool {
		return atomic.LoadInt64(&completed) == 1
	})
	cancel()
	pool.Wait()
}

func TestJanitor_PurgesExpired(t *testing.T) {
	s := store.NewMemoryStore()
	now := time.Now().UTC()

	putJob(t, s, "fresh", now.Add(time.Hour))
	expired := &domain.Job{
		ID:        "stale",
		Message:   domain.Message{Type: domain.MessageTypeExperienceNotification},
		Status:    domain.StatusCompleted,
		ReadyAt:   now.Add(-time.Hour),
		ExpiresAt: now.Add(-time.Minute),
		CreatedAt: now.Add(-time.Hour),
		UpdatedAt: now.Add(-time.Hour),
	}
	if err := s.Put(context.Background(), expired); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := worker.NewJanitor(s, 10*time.Millisecond, zap.NewNop())
	done := make(chan struct{})
	go func() { j.Run(ctx); close(done) }()

	waitFor(t, 2*time.Second, func() bool {
		_, err := s.Get(context.Background(), "stale")
		return err == domain.ErrNotFound
	})

	if _, err := s.Get(context.Background(), "fresh"); err != nil {
		t.Fatalf("unexpired job was purged: %v", err)
	}

	cancel()
	<-done
}
