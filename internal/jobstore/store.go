// Package jobstore is the shared job record store and admission queue used
// by both the API and worker processes.
package jobstore

import (
	"context"
	"errors"
	"time"

	"server/internal/domain"
)

var (
	// ErrNotFound indicates the record is absent or its TTL expired.
	ErrNotFound = errors.New("jobstore: job not found")
	// ErrQueueEmpty indicates a blocking dequeue timed out with nothing queued.
	ErrQueueEmpty = errors.New("jobstore: queue empty")
)

// Store is the contract shared by the submission path and the worker.
// Implementations must guarantee that DequeueBlocking delivers a given job
// id to exactly one caller, even under concurrent consumers. Update is a
// plain read-modify-write with last-writer-wins semantics; callers rely on
// a claimed job being owned by a single worker rather than on locking.
type Store interface {
	// Put writes the record under the job's key with the given TTL.
	Put(ctx context.Context, job *domain.Job, ttl time.Duration) error
	// Get returns the record, or ErrNotFound once the TTL has expired it.
	Get(ctx context.Context, id string) (*domain.Job, error)
	// Update applies mutate to the stored record and writes it back,
	// preserving the record's remaining TTL.
	Update(ctx context.Context, id string, mutate func(*domain.Job)) error
	// Delete removes the record. Deleting an absent record is a no-op.
	Delete(ctx context.Context, id string) error

	// Enqueue appends the job id to the FIFO admission queue.
	Enqueue(ctx context.Context, id string) error
	// DequeueBlocking waits up to timeout for a queued id and returns
	// ErrQueueEmpty when none arrives in time.
	DequeueBlocking(ctx context.Context, timeout time.Duration) (string, error)
	// QueueLength reports the number of ids currently queued.
	QueueLength(ctx context.Context) (int64, error)
}
