package jobstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"server/internal/domain"
)

// MemoryStore provides an in-process Store for tests and single-binary
// local runs. The queue is a buffered channel, which gives the same FIFO
// and exactly-once delivery semantics as the Redis list.
type MemoryStore struct {
	mu    sync.RWMutex
	jobs  map[string]memoryRecord
	queue chan string
}

type memoryRecord struct {
	job       domain.Job
	expiresAt time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:  make(map[string]memoryRecord),
		queue: make(chan string, 1024),
	}
}

func (m *MemoryStore) Put(ctx context.Context, job *domain.Job, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := memoryRecord{job: *job}
	if ttl > 0 {
		rec.expiresAt = time.Now().Add(ttl)
	}
	m.jobs[job.ID] = rec
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.live(id)
	if !ok {
		return nil, ErrNotFound
	}
	job := rec.job
	return &job, nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, mutate func(*domain.Job)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.live(id)
	if !ok {
		return ErrNotFound
	}
	mutate(&rec.job)
	m.jobs[id] = rec
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	return nil
}

func (m *MemoryStore) Enqueue(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case m.queue <- id:
		return nil
	default:
		return errors.New("jobstore: queue full")
	}
}

func (m *MemoryStore) DequeueBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case id := <-m.queue:
		return id, nil
	case <-timer.C:
		return "", ErrQueueEmpty
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *MemoryStore) QueueLength(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int64(len(m.queue)), nil
}

// live looks up a record and lazily expires it. Callers hold the write lock.
func (m *MemoryStore) live(id string) (memoryRecord, bool) {
	rec, ok := m.jobs[id]
	if !ok {
		return memoryRecord{}, false
	}
	if !rec.expiresAt.IsZero() && time.Now().After(rec.expiresAt) {
		delete(m.jobs, id)
		return memoryRecord{}, false
	}
	return rec, true
}

var _ Store = (*MemoryStore)(nil)
