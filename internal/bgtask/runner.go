// Package bgtask runs fire-and-forget pipeline stages (stem fetch, decode,
// silence detection, waveform regeneration) off the caller's goroutine,
// optionally bounding how many run concurrently.
package bgtask

import (
	"context"
	"sync"

	"github.com/iksinskiyt/glissando-stems/internal/domain"
	"github.com/iksinskiyt/glissando-stems/internal/logger"
)

// Option configures a Runner.
type Option func(*Runner)

// WithWorkerLimit bounds how many tasks the Runner executes concurrently.
// A limit of 0 (the default) means unbounded.
func WithWorkerLimit(limit int) Option {
	return func(r *Runner) {
		r.limit = limit
	}
}

// WithLogger attaches a logger used to report panics recovered from tasks.
func WithLogger(log *logger.Logger) Option {
	return func(r *Runner) {
		r.log = log
	}
}

// Runner executes submitted tasks on their own goroutine, each gated by an
// optional semaphore. It never blocks Go's caller beyond acquiring a
// worker slot.
type Runner struct {
	limit int
	log   *logger.Logger

	sem chan struct{}
	wg  sync.WaitGroup
}

// New creates a Runner configured by opts.
func New(opts ...Option) *Runner {
	r := &Runner{log: logger.New(logger.LevelOff, nil)}
	for _, opt := range opts {
		opt(r)
	}
	if r.limit > 0 {
		r.sem = make(chan struct{}, r.limit)
	}
	return r
}

// Go submits task to run on its own goroutine. If the Runner has a worker
// limit, Go blocks the caller until a slot is free — callers that must
// never block should check that case against their own queue depth before
// calling Go. done, if non-nil, runs after task returns, successful or
// not, on the task's goroutine.
func (r *Runner) Go(ctx context.Context, task func(ctx context.Context), done domain.CompletionCallback) {
	if r.sem != nil {
		r.sem <- struct{}{}
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if r.sem != nil {
			defer func() { <-r.sem }()
		}
		defer r.recoverPanic()

		task(ctx)

		if done != nil {
			done()
		}
	}()
}

func (r *Runner) recoverPanic() {
	if err := recover(); err != nil {
		r.log.Error("recovered panic in background task: %v", err)
	}
}

// Wait blocks until every task submitted so far has returned. Intended for
// tests and graceful shutdown, not for steady-state operation.
func (r *Runner) Wait() {
	r.wg.Wait()
}
