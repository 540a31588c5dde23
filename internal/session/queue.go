package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ivanoskov/finchat_bot/internal/logging"
	"golang.org/x/sync/semaphore"
)

// Queue выполняет задачи одного ключа строго по очереди,
// а задачи разных ключей - параллельно, но не больше limit одновременно.
type Queue struct {
	sem    *semaphore.Weighted
	logger *slog.Logger

	mu    sync.Mutex
	lanes map[string][]job
	wg    sync.WaitGroup
}

type job struct {
	ctx  context.Context
	fn   func(context.Context)
	done chan struct{}
}

// NewQueue создает очередь с ограничением на число одновременных задач
func NewQueue(limit int64, logger *slog.Logger) *Queue {
	if limit < 1 {
		limit = 1
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Queue{
		sem:    semaphore.NewWeighted(limit),
		logger: logger,
		lanes:  make(map[string][]job),
	}
}

// Submit ставит задачу в очередь ключа и сразу возвращается.
// Канал закрывается после выполнения (или пропуска) задачи.
func (q *Queue) Submit(ctx context.Context, key string, fn func(context.Context)) <-chan struct{} {
	j := job{ctx: ctx, fn: fn, done: make(chan struct{})}

	q.mu.Lock()
	pending, running := q.lanes[key]
	q.lanes[key] = append(pending, j)
	if !running {
		q.wg.Add(1)
		go q.drain(key)
	}
	q.mu.Unlock()

	return j.done
}

// Do ставит задачу в очередь и ждет ее завершения
func (q *Queue) Do(ctx context.Context, key string, fn func(context.Context)) error {
	done := q.Submit(ctx, key, fn)
	select {
	case <-done:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait ждет завершения всех поставленных задач
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) drain(key string) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		jobs := q.lanes[key]
		if len(jobs) == 0 {
			delete(q.lanes, key)
			q.mu.Unlock()
			return
		}
		j := jobs[0]
		q.lanes[key] = jobs[1:]
		q.mu.Unlock()

		q.execute(key, j)
	}
}

func (q *Queue) execute(key string, j job) {
	defer close(j.done)

	if err := q.sem.Acquire(j.ctx, 1); err != nil {
		q.logger.Warn("turn skipped", "session", key, "error", err)
		return
	}
	defer q.sem.Release(1)

	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("turn panicked", "session", key, "panic", r)
		}
	}()
	j.fn(j.ctx)
}
