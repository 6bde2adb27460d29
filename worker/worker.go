// Package worker runs a Scheduler continuously. A Worker wakes once per
// minute, collects the events that are due at that instant, and dispatches
// each one on its own goroutine through an optional middleware chain.
//
// The worker is a thin host around the scheduling core: all dueness,
// overlap prevention, and output handling live in the schedule package.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	schedule "github.com/YJBallestero/schedule"
	"github.com/YJBallestero/schedule/middleware"
)

// Worker drives a Scheduler on a once-per-minute tick.
type Worker struct {
	scheduler *schedule.Scheduler
	chain     middleware.Middleware
	logger    *slog.Logger

	cron *cron.Cron

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// Option configures a Worker.
type Option func(*Worker)

// WithMiddleware sets the middleware applied to every event run. Multiple
// middleware are chained with the first as the outermost wrapper.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(w *Worker) { w.chain = middleware.Chain(mws...) }
}

// WithLogger sets the worker's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

// New creates a Worker for the scheduler.
func New(s *schedule.Scheduler, opts ...Option) *Worker {
	w := &Worker{
		scheduler: s,
		chain:     middleware.Chain(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins the minute tick. It returns immediately; event runs happen
// on background goroutines until Stop is called.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.cron = cron.New()
	if _, err := w.cron.AddFunc("* * * * *", func() {
		w.RunPass(ctx)
	}); err != nil {
		return err
	}

	w.running = true
	w.logger.Info("schedule worker starting",
		slog.Int("events", len(w.scheduler.Events())),
	)
	w.cron.Start()
	return nil
}

// Stop halts the tick and waits for in-flight event runs to finish. If the
// context expires first, Stop returns without waiting further; detached
// background commands are never waited on.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	cr := w.cron
	w.mu.Unlock()

	w.logger.Info("schedule worker stopping")
	<-cr.Stop().Done()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("schedule worker stopped")
		return nil
	case <-ctx.Done():
		w.logger.Warn("schedule worker shutdown timed out")
		return ctx.Err()
	}
}

// RunPass performs one scheduling pass: every event due at the current
// instant is dispatched on its own goroutine. It returns once dispatch is
// complete, not once the events finish.
func (w *Worker) RunPass(ctx context.Context) {
	runCtx := w.scheduler.NewContext(ctx)

	due, err := w.scheduler.DueEvents(runCtx)
	if err != nil {
		w.logger.Error("scheduling pass failed", slog.String("error", err.Error()))
		return
	}
	if len(due) == 0 {
		return
	}

	w.logger.Debug("scheduling pass", slog.Int("due", len(due)))
	for _, job := range due {
		w.wg.Add(1)
		go func(job schedule.Job) {
			defer w.wg.Done()
			if _, err := w.chain(runCtx, job, job.Run); err != nil && !errors.Is(err, schedule.ErrEventSkipped) {
				w.logger.Error("event run failed",
					slog.String("event", job.Summary()),
					slog.String("error", err.Error()),
				)
			}
		}(job)
	}
}

// Wait blocks until all dispatched event runs have finished. It is mainly
// useful in tests and one-shot invocations.
func (w *Worker) Wait() {
	w.wg.Wait()
}
