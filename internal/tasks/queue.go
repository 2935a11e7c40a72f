package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RecomputeAverageMoves refreshes the cached average-moves sentence.
const RecomputeAverageMoves = "recompute_average_moves"

const DefaultQueueKey = "tasks:concentration"

type Task struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Trigger is the enqueue side used by the service.
type Trigger interface {
	Trigger(ctx context.Context, name string) error
}

type Queue struct {
	rdb *redis.Client
	key string
}

func NewQueue(rdb *redis.Client, key string) *Queue {
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultQueueKey
	}
	return &Queue{rdb: rdb, key: key}
}

func (q *Queue) Key() string { return q.key }

func (q *Queue) Trigger(ctx context.Context, name string) error {
	if q == nil || q.rdb == nil {
		return fmt.Errorf("task queue not initialized")
	}
	raw, err := json.Marshal(Task{ID: uuid.NewString(), Name: name, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", name, err)
	}
	return nil
}

// Len reports pending tasks.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}

type Handler func(ctx context.Context, t Task) error

// Worker pops tasks from a Queue and dispatches them by name.
type Worker struct {
	queue    *Queue
	logger   *zap.Logger
	poll     time.Duration
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewWorker(q *Queue, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{queue: q, logger: logger, poll: 2 * time.Second, handlers: make(map[string]Handler)}
}

func (w *Worker) Handle(name string, h Handler) {
	w.mu.Lock()
	w.handlers[name] = h
	w.mu.Unlock()
}

// RunOnce waits up to timeout for one task and runs it. Reports whether a task was consumed.
func (w *Worker) RunOnce(ctx context.Context, timeout time.Duration) (bool, error) {
	res, err := w.queue.rdb.BRPop(ctx, timeout, w.queue.key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(res) != 2 {
		return false, fmt.Errorf("unexpected BRPOP reply: %v", res)
	}
	var t Task
	if err := json.Unmarshal([]byte(res[1]), &t); err != nil {
		w.logger.Warn("task_decode_failed", zap.Error(err))
		return true, nil
	}
	w.mu.RLock()
	h, ok := w.handlers[t.Name]
	w.mu.RUnlock()
	if !ok {
		w.logger.Warn("task_unknown", zap.String("task", t.Name), zap.String("task_id", t.ID))
		return true, nil
	}
	start := time.Now()
	if err := h(ctx, t); err != nil {
		w.logger.Error("task_failed", zap.String("task", t.Name), zap.String("task_id", t.ID), zap.Error(err))
		return true, nil
	}
	w.logger.Debug("task_done", zap.String("task", t.Name), zap.String("task_id", t.ID), zap.Duration("took", time.Since(start)))
	return true, nil
}

// Start runs the pop loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("task_worker_start", zap.String("queue", w.queue.key))
	go w.run(ctx)
}

func (w *Worker) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			w.logger.Info("task_worker_stop")
			return
		}
		if _, err := w.RunOnce(ctx, w.poll); err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Warn("task_pop_failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}
