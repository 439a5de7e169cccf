package orchestrator

import (
	"context"
	"sync"
)

// Scope is the cancellation token of one batch. Every session and executor
// of the batch shares its context; cancelling it terminates the whole batch.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	stops []func() bool
}

func NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

func (s *Scope) Context() context.Context {
	return s.ctx
}

// Cancel signals the batch. Signaling again has no further effect.
func (s *Scope) Cancel() {
	s.cancel()
}

func (s *Scope) Signaled() bool {
	return s.ctx.Err() != nil
}

// OnCancel runs fn once, on its own goroutine, when the scope is signaled
// either directly or through its parent. The returned stop prevents a call
// that has not started yet.
func (s *Scope) OnCancel(fn func()) (stop func() bool) {
	stop = context.AfterFunc(s.ctx, fn)
	s.mu.Lock()
	s.stops = append(s.stops, stop)
	s.mu.Unlock()
	return stop
}

// Close releases the scope after a batch finished normally. Listeners are
// detached first so they do not observe the release as a cancellation.
func (s *Scope) Close() {
	s.mu.Lock()
	stops := s.stops
	s.stops = nil
	s.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	s.cancel()
}
