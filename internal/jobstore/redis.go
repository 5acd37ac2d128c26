package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"server/internal/domain"
)

const (
	jobKeyPrefix = "job:"
	queueKey     = "job_queue"
)

// RedisStore implements Store on a shared Redis instance. Records live
// under job:<id> with a TTL; the admission queue is a single list whose
// BRPOP provides the exactly-once claim guarantee across consumers.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-connected client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

func (s *RedisStore) Put(ctx context.Context, job *domain.Job, ttl time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("jobstore: marshal job: %w", err)
	}
	if err := s.client.Set(ctx, jobKey(job.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("jobstore: put job: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	data, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("jobstore: get job: %w", err)
	}
	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("jobstore: unmarshal job: %w", err)
	}
	return &job, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, mutate func(*domain.Job)) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	mutate(job)
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("jobstore: marshal job: %w", err)
	}
	// KEEPTTL so a processing job's record keeps its original lifetime.
	args := redis.SetArgs{KeepTTL: true}
	if err := s.client.SetArgs(ctx, jobKey(id), data, args).Err(); err != nil {
		return fmt.Errorf("jobstore: update job: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, jobKey(id)).Err(); err != nil {
		return fmt.Errorf("jobstore: delete job: %w", err)
	}
	return nil
}

func (s *RedisStore) Enqueue(ctx context.Context, id string) error {
	if err := s.client.LPush(ctx, queueKey, id).Err(); err != nil {
		return fmt.Errorf("jobstore: enqueue job: %w", err)
	}
	return nil
}

func (s *RedisStore) DequeueBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	vals, err := s.client.BRPop(ctx, timeout, queueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrQueueEmpty
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("jobstore: dequeue job: %w", err)
	}
	// BRPOP returns [key, value].
	if len(vals) != 2 {
		return "", fmt.Errorf("jobstore: unexpected brpop reply of %d values", len(vals))
	}
	return vals[1], nil
}

func (s *RedisStore) QueueLength(ctx context.Context) (int64, error) {
	n, err := s.client.LLen(ctx, queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("jobstore: queue length: %w", err)
	}
	return n, nil
}

var _ Store = (*RedisStore)(nil)
