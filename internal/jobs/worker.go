package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/aithera/therapy-server-go/internal/metrics"
)

type HandlerFunc func(ctx context.Context, task *Task) error

// Worker pulls tasks from a Queue with a fixed number of goroutines.
// Failed tasks are pushed back until maxAttempts, then dead-lettered.
type Worker struct {
	queue        Queue
	handlers     map[Kind]HandlerFunc
	concurrency  int
	maxAttempts  int
	pollTimeout  time.Duration
	taskTimeout  time.Duration
	retryBackoff time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

type WorkerOptions struct {
	Concurrency  int
	MaxAttempts  int
	PollTimeout  time.Duration
	TaskTimeout  time.Duration
	RetryBackoff time.Duration
}

func NewWorker(queue Queue, opts WorkerOptions) *Worker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 2 * time.Second
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 2 * time.Minute
	}
	if opts.RetryBackoff < 0 {
		opts.RetryBackoff = 0
	}

	return &Worker{
		queue:        queue,
		handlers:     make(map[Kind]HandlerFunc),
		concurrency:  opts.Concurrency,
		maxAttempts:  opts.MaxAttempts,
		pollTimeout:  opts.PollTimeout,
		taskTimeout:  opts.TaskTimeout,
		retryBackoff: opts.RetryBackoff,
	}
}

// Handle registers fn for kind. It must be called before Start.
func (w *Worker) Handle(kind Kind, fn HandlerFunc) {
	w.handlers[kind] = fn
}

func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)
	w.cancel = cancel
	w.group = group

	for i := 0; i < w.concurrency; i++ {
		id := i
		group.Go(func() error {
			return w.loop(ctx, id)
		})
	}

	log.Info().Int("concurrency", w.concurrency).Msg("task worker started")
}

// Stop cancels the pollers and waits for in-flight tasks to finish.
func (w *Worker) Stop() error {
	w.mu.Lock()
	cancel, group := w.cancel, w.group
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	err := group.Wait()
	log.Info().Msg("task worker stopped")
	return err
}

func (w *Worker) loop(ctx context.Context, id int) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		task, err := w.queue.Pop(ctx, w.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Int("worker", id).Msg("failed to pop task")
			if !sleep(ctx, time.Second) {
				return nil
			}
			continue
		}
		if task == nil {
			continue
		}

		w.process(ctx, task)
	}
}

func (w *Worker) process(ctx context.Context, task *Task) {
	task.Attempt++
	logger := log.With().
		Str("taskId", task.ID).
		Str("kind", string(task.Kind)).
		Int("attempt", task.Attempt).
		Logger()

	handler, ok := w.handlers[task.Kind]
	if !ok {
		task.LastError = fmt.Sprintf("no handler for kind %q", task.Kind)
		logger.Error().Msg("unknown task kind, dead-lettering")
		w.deadLetter(task)
		metrics.TasksTotal.WithLabelValues(string(task.Kind), "unknown").Inc()
		return
	}

	// Tasks run on their own deadline so shutdown does not abort them mid-write.
	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.taskTimeout)
	err := handler(taskCtx, task)
	cancel()

	if err == nil {
		logger.Debug().Msg("task completed")
		metrics.TasksTotal.WithLabelValues(string(task.Kind), "ok").Inc()
		return
	}

	task.LastError = err.Error()
	if task.Attempt >= w.maxAttempts {
		logger.Error().Err(err).Msg("task failed permanently, dead-lettering")
		w.deadLetter(task)
		metrics.TasksTotal.WithLabelValues(string(task.Kind), "dead").Inc()
		return
	}

	logger.Warn().Err(err).Msg("task failed, retrying")
	metrics.TasksTotal.WithLabelValues(string(task.Kind), "retry").Inc()
	sleep(ctx, w.retryBackoff*time.Duration(task.Attempt))

	pushCtx, pushCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer pushCancel()
	if err := w.queue.Push(pushCtx, task); err != nil {
		logger.Error().Err(err).Msg("failed to requeue task")
	}
}

func (w *Worker) deadLetter(task *Task) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.queue.DeadLetter(ctx, task); err != nil {
		log.Error().Err(err).Str("taskId", task.ID).Msg("failed to dead-letter task")
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
