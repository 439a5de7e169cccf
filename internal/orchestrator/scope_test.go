package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 1s")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestScope_CancelIsIdempotent(t *testing.T) {
	s := NewScope(context.Background())
	if s.Signaled() {
		t.Fatal("new scope should not be signaled")
	}

	var calls atomic.Int32
	s.OnCancel(func() { calls.Add(1) })

	s.Cancel()
	s.Cancel()

	if !s.Signaled() {
		t.Error("Signaled() should be true after Cancel")
	}
	waitFor(t, func() bool { return calls.Load() == 1 })
	time.Sleep(10 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("listener ran %d times, want 1", calls.Load())
	}
}

func TestScope_ParentCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	s := NewScope(parent)

	fired := make(chan struct{})
	s.OnCancel(func() { close(fired) })
	cancel()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("listener did not observe parent cancellation")
	}
	if !s.Signaled() {
		t.Error("scope should be signaled through its parent")
	}
}

func TestScope_ListenerAfterCancel(t *testing.T) {
	s := NewScope(context.Background())
	s.Cancel()

	fired := make(chan struct{})
	s.OnCancel(func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("listener registered after cancel should still run")
	}
}

func TestScope_StopPreventsListener(t *testing.T) {
	s := NewScope(context.Background())

	var calls atomic.Int32
	stop := s.OnCancel(func() { calls.Add(1) })
	if !stop() {
		t.Error("stop() should report that the listener was detached")
	}
	s.Cancel()

	time.Sleep(10 * time.Millisecond)
	if calls.Load() != 0 {
		t.Error("stopped listener ran")
	}
}

func TestScope_CloseDoesNotFireListeners(t *testing.T) {
	s := NewScope(context.Background())

	var calls atomic.Int32
	s.OnCancel(func() { calls.Add(1) })
	s.Close()

	if s.Context().Err() == nil {
		t.Error("Close should release the context")
	}
	time.Sleep(10 * time.Millisecond)
	if calls.Load() != 0 {
		t.Error("Close should not look like a cancellation to listeners")
	}
}
