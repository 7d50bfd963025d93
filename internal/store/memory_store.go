package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bloxkit/experience-notify/internal/domain"
)

// MemoryStore is a thread-safe in-memory JobStore used in unit tests.
// It mirrors the claim and delete semantics of the real backends.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job

	// Optional error overrides, set in tests to simulate failure paths.
	PutErr   error
	GetErr   error
	ClaimErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*domain.Job)}
}

func (m *MemoryStore) Put(_ context.Context, job *domain.Job) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *job
	m.jobs[job.ID] = &clone
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*domain.Job, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *job
	return &clone, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != domain.StatusQueued {
		return false, nil
	}
	delete(m.jobs, id)
	return true, nil
}

func (m *MemoryStore) ClaimDue(_ context.Context, now time.Time, limit int) ([]*domain.Job, error) {
	if m.ClaimErr != nil {
		return nil, m.ClaimErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*domain.Job
	for _, job := range m.jobs {
		if job.Status == domain.StatusQueued && !job.ReadyAt.After(now) {
			due = append(due, job)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].ReadyAt.Equal(due[j].ReadyAt) {
			return due[i].ReadyAt.Before(due[j].ReadyAt)
		}
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*domain.Job, 0, len(due))
	for _, job := range due {
		job.Status = domain.StatusProcessing
		job.UpdatedAt = now
		clone := *job
		claimed = append(claimed, &clone)
	}
	return claimed, nil
}

func (m *MemoryStore) MarkCompleted(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.Status = domain.StatusCompleted
		job.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MemoryStore) MarkFailed(_ context.Context, id string, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.Status = domain.StatusFailed
		job.LastError = errMsg
		job.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MemoryStore) CountByStatus(_ context.Context) (domain.StatusCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var counts domain.StatusCounts
	for _, job := range m.jobs {
		switch job.Status {
		case domain.StatusQueued:
			counts.Queued++
		case domain.StatusProcessing:
			counts.Processing++
		case domain.StatusCompleted:
			counts.Completed++
		case domain.StatusFailed:
			counts.Failed++
		}
	}
	return counts, nil
}

func (m *MemoryStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	purged := 0
	for id, job := range m.jobs {
		if job.ExpiresAt.Before(now) {
			delete(m.jobs, id)
			purged++
		}
	}
	return purged, nil
}

// compile-time check that MemoryStore implements JobStore
var _ JobStore = (*MemoryStore)(nil)
