package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Task kinds
const (
	KindRPA = "rpa"
	KindPDF = "pdf"
)

// Task is one queued unit of work.
type Task struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	ProcesoID  int64     `json:"proceso_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewTask creates a task with a fresh ID.
func NewTask(kind string, procesoID int64) Task {
	return Task{
		ID:         uuid.NewString(),
		Kind:       kind,
		ProcesoID:  procesoID,
		EnqueuedAt: time.Now().UTC(),
	}
}

// RedisQueue is a FIFO list in Redis: producers LPUSH, the worker BRPOPs.
type RedisQueue struct {
	client redis.Cmdable
	name   string
}

// NewRedisQueue creates a queue on the list named name.
func NewRedisQueue(client redis.Cmdable, name string) *RedisQueue {
	return &RedisQueue{client: client, name: name}
}

// Name returns the Redis key of the queue.
func (q *RedisQueue) Name() string {
	return q.name
}

func (q *RedisQueue) Enqueue(ctx context.Context, t Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now().UTC()
	}

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}
	if err := q.client.LPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue on %s: %w", q.name, err)
	}
	return nil
}

// Dequeue waits up to wait for the oldest task. It returns nil, nil when
// the queue stayed empty. Redis rounds wait up to whole seconds.
func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (*Task, error) {
	res, err := q.client.BRPop(ctx, wait, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue from %s: %w", q.name, err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected reply from %s: %v", q.name, res)
	}

	var t Task
	if err := json.Unmarshal([]byte(res[1]), &t); err != nil {
		return nil, fmt.Errorf("failed to decode task from %s: %w", q.name, err)
	}
	return &t, nil
}

// Len returns the number of queued tasks.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.name).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read length of %s: %w", q.name, err)
	}
	return n, nil
}
