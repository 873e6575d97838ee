// Package tasks runs background work with bounded concurrency. Every task
// outcome is observed: errors and panics are logged, reported through the
// runner's OnError hook and handed to the task's own OnFailure callback.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"learnapp/internal/infra"
)

var (
	ErrRunnerClosed = errors.New("tasks: runner is shut down")
	ErrQueueFull    = errors.New("tasks: queue is full")
)

// Task is one unit of background work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
	// OnFailure runs after Run returns an error or panics. Its context
	// survives runner shutdown for a short grace period.
	OnFailure func(ctx context.Context, err error)
}

// Options configures a Runner.
type Options struct {
	Concurrency int
	QueueSize   int
	Logger      *infra.Logger
	OnError     func(task string, err error)
}

// Runner executes submitted tasks on an errgroup limited to Concurrency
// goroutines. Tasks that do not fit wait in a bounded queue.
type Runner struct {
	ctx      context.Context
	cancel   context.CancelFunc
	group    *errgroup.Group
	capacity int
	queue    chan Task
	drained  chan struct{}
	logger   *infra.Logger
	onError  func(string, error)

	mu       sync.Mutex
	closed   bool
	inFlight atomic.Int64
}

// NewRunner starts a runner. Cancelling parent cancels every task context.
func NewRunner(parent context.Context, opts Options) *Runner {
	capacity := opts.Concurrency
	if capacity <= 0 {
		capacity = 1
	}
	queueSize := opts.QueueSize
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(parent)
	group := &errgroup.Group{}
	group.SetLimit(capacity)
	r := &Runner{
		ctx:      ctx,
		cancel:   cancel,
		group:    group,
		capacity: capacity,
		queue:    make(chan Task, queueSize),
		drained:  make(chan struct{}),
		logger:   infra.LoggerOrNop(opts.Logger),
		onError:  opts.OnError,
	}
	go r.dispatch()
	return r
}

// Capacity is the number of tasks that may run at once.
func (r *Runner) Capacity() int { return r.capacity }

// InFlight counts queued and running tasks.
func (r *Runner) InFlight() int { return int(r.inFlight.Load()) }

// Submit starts task immediately when a slot is free and queues it
// otherwise. It never blocks.
func (r *Runner) Submit(task Task) error {
	if task.Run == nil {
		return errors.New("tasks: task has no Run func")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRunnerClosed
	}
	r.inFlight.Add(1)
	if r.group.TryGo(r.wrap(task)) {
		return nil
	}
	select {
	case r.queue <- task:
		return nil
	default:
		r.inFlight.Add(-1)
		return ErrQueueFull
	}
}

func (r *Runner) dispatch() {
	defer close(r.drained)
	for task := range r.queue {
		r.group.Go(r.wrap(task))
	}
}

func (r *Runner) wrap(task Task) func() error {
	return func() error {
		defer r.inFlight.Add(-1)
		start := time.Now()
		err := r.execute(task)
		logger := r.logger.With().Str("task", task.Name).Dur("elapsed", time.Since(start)).Logger()
		if err == nil {
			logger.Debug().Msg("tasks: task finished")
			return nil
		}
		logger.Error().Err(err).Msg("tasks: task failed")
		if task.OnFailure != nil {
			failCtx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), 30*time.Second)
			r.safely(task.Name, func() { task.OnFailure(failCtx, err) })
			cancel()
		}
		if r.onError != nil {
			r.safely(task.Name, func() { r.onError(task.Name, err) })
		}
		// Failures are fully handled here; returning nil keeps the group
		// running other tasks.
		return nil
	}
}

func (r *Runner) execute(task Task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tasks: panic in %s: %v\n%s", task.Name, rec, debug.Stack())
		}
	}()
	return task.Run(r.ctx)
}

func (r *Runner) safely(name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Str("task", name).Interface("panic", rec).Msg("tasks: failure hook panicked")
		}
	}()
	fn()
}

// Shutdown stops accepting tasks and waits for queued and running ones. If
// ctx expires first the task context is cancelled and ctx.Err is returned
// without waiting further.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		<-r.drained
		_ = r.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		return ctx.Err()
	}
}
