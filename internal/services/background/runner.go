// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package background runs best-effort side effects outside the request path.
package background

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"codeberg.org/clubedagente/backoffice/internal/metrics"
)

// DefaultTimeout bounds a single task when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Task is a unit of best-effort work.
type Task func(ctx context.Context) error

// Runner executes tasks detached from the caller. Failures are logged and
// counted, never returned.
type Runner struct {
	logger  *slog.Logger
	metrics *metrics.Registry
	wg      sync.WaitGroup
	timeout time.Duration
}

// NewRunner creates a runner. A nil logger falls back to slog.Default.
func NewRunner(logger *slog.Logger, timeout time.Duration) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{logger: logger, timeout: timeout}
}

// WithMetrics counts task failures on m.
func (r *Runner) WithMetrics(m *metrics.Registry) *Runner {
	r.metrics = m
	return r
}

// Go schedules fn. It keeps the values of ctx but not its cancellation, so a
// finished request does not abort the work it started.
func (r *Runner) Go(ctx context.Context, name string, fn Task) {
	detached := context.WithoutCancel(ctx)
	r.wg.Go(func() {
		ctx, cancel := context.WithTimeout(detached, r.timeout)
		defer cancel()

		if err := r.run(ctx, fn); err != nil {
			r.metrics.TaskFailed(name)
			r.logger.Warn("background_task_failed", "task", name, "error", err)
		}
	})
}

// Wait blocks until every scheduled task has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, fn Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx)
}
