package async

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// RunFunc is the work of one run.
type RunFunc func(ctx context.Context, p *Progress) error

// Runner executes at most one run at a time in a background goroutine.
// A start request while a run is active joins that run instead of
// starting another.
type Runner struct {
	mu      sync.Mutex
	current *Progress
	last    *Progress
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool

	newID func() string
}

// NewRunner creates an idle runner.
func NewRunner() *Runner {
	return &Runner{newID: uuid.NewString}
}

// Start launches fn unless a run is already active. It returns the id of
// the run that will do the work and whether a new run was started.
func (r *Runner) Start(ctx context.Context, trigger string, fn RunFunc) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		return r.current.ID(), false
	}
	if r.stopped {
		return "", false
	}

	p := NewProgress(r.newID(), trigger)
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.current, r.cancel, r.done = p, cancel, done

	go r.run(ctx, p, fn, done)
	return p.ID(), true
}

func (r *Runner) run(ctx context.Context, p *Progress, fn RunFunc, done chan struct{}) {
	defer close(done)

	err := fn(ctx, p)
	switch {
	case err == nil:
		p.finish(StatusDone, "")
	case errors.Is(err, context.Canceled):
		p.finish(StatusCancelled, err.Error())
	default:
		p.finish(StatusFailed, err.Error())
	}

	r.mu.Lock()
	r.last = p
	r.current = nil
	r.cancel()
	r.mu.Unlock()
}

// Running reports whether a run is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

// Current returns the active run, or the most recent finished one.
func (r *Runner) Current() (RunSnapshot, bool) {
	r.mu.Lock()
	p := r.current
	if p == nil {
		p = r.last
	}
	r.mu.Unlock()

	if p == nil {
		return RunSnapshot{}, false
	}
	return p.Snapshot(), true
}

// Wait blocks until the active run, if any, finishes or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	r.mu.Lock()
	done := r.done
	active := r.current != nil
	r.mu.Unlock()

	if !active {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels the active run, waits for it and refuses further starts.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.stopped = true
	cancel := r.cancel
	active := r.current != nil
	r.mu.Unlock()

	if active && cancel != nil {
		cancel()
	}
	return r.Wait(ctx)
}
