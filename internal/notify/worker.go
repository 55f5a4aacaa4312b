package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrQueueFull    = errors.New("notification queue full")
	ErrWorkerClosed = errors.New("worker closed")
)

// Job is one unit of work run on a Worker goroutine.
type Job func(ctx context.Context) error

// Worker owns a goroutine and a bounded queue for channels that keep a
// long-lived connection. Callers hand jobs over with Enqueue and never wait
// on the connection itself.
type Worker struct {
	name           string
	log            *slog.Logger
	jobs           chan Job
	enqueueTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	loopWG sync.WaitGroup
	bgWG   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewWorker(name string, size int, enqueueTimeout time.Duration, log *slog.Logger) *Worker {
	if size <= 0 {
		size = 64
	}
	if enqueueTimeout <= 0 {
		enqueueTimeout = time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		name:           name,
		log:            log.With("channel", name, "component", "worker"),
		jobs:           make(chan Job, size),
		enqueueTimeout: enqueueTimeout,
		ctx:            ctx,
		cancel:         cancel,
	}

	w.loopWG.Add(1)
	go w.loop()
	return w
}

func (w *Worker) loop() {
	defer w.loopWG.Done()
	for job := range w.jobs {
		w.run(job)
	}
}

func (w *Worker) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("job panicked", "panic", r)
		}
	}()
	if err := job(w.ctx); err != nil {
		w.log.Warn("job failed", "error", err)
	}
}

// Go runs fn on its own goroutine until the worker closes.
func (w *Worker) Go(fn func(ctx context.Context)) {
	w.bgWG.Add(1)
	go func() {
		defer w.bgWG.Done()
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("background loop panicked", "panic", r)
			}
		}()
		fn(w.ctx)
	}()
}

// Enqueue queues job, waiting at most the enqueue timeout for room.
func (w *Worker) Enqueue(ctx context.Context, job Job) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return fmt.Errorf("%s: %w", w.name, ErrWorkerClosed)
	}

	timer := time.NewTimer(w.enqueueTimeout)
	defer timer.Stop()

	select {
	case w.jobs <- job:
		return nil
	case <-timer.C:
		return fmt.Errorf("%s: %w", w.name, ErrQueueFull)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and lets the queued ones finish until ctx is
// done. Running jobs and background loops are then cancelled.
func (w *Worker) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()

	var err error
	if waitCtx(ctx, &w.loopWG) != nil {
		err = ctx.Err()
	}
	w.cancel()
	if waitCtx(ctx, &w.bgWG) != nil {
		err = ctx.Err()
	}
	return err
}

func waitCtx(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
