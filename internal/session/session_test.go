package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"openai-cli/internal/models"
)

// MockStream replays scripted fragments, optionally failing or blocking.
type MockStream struct {
	mu      sync.Mutex
	chunks  []string
	err     error         // returned once chunks are exhausted
	block   chan struct{} // when set, Recv blocks after chunks until closed
	closed  atomic.Bool
	onRecv  func(i int)
	recvIdx int
}

func (m *MockStream) Recv() (string, error) {
	m.mu.Lock()
	if m.onRecv != nil {
		m.onRecv(m.recvIdx)
	}
	m.recvIdx++
	if len(m.chunks) > 0 {
		text := m.chunks[0]
		m.chunks = m.chunks[1:]
		m.mu.Unlock()
		return text, nil
	}
	block := m.block
	err := m.err
	m.mu.Unlock()

	if block != nil {
		<-block
		return "", errors.New("read on closed body")
	}
	if err != nil {
		return "", err
	}
	return "", io.EOF
}

func (m *MockStream) Close() error {
	if m.closed.CompareAndSwap(false, true) && m.block != nil {
		close(m.block)
	}
	return nil
}

func streamerFor(s models.Stream, err error) models.Streamer {
	return models.StreamerFunc(func(ctx context.Context, spec *models.Spec, messages []models.Message) (models.Stream, error) {
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

var testMessages = []models.Message{{Role: models.RoleUser, Content: "hello"}}

func recordEvents(s *Session) *[]EventKind {
	var mu sync.Mutex
	var kinds []EventKind
	for _, k := range []EventKind{EventInit, EventStreamStarted, EventFirstChunk, EventChunk, EventCompleted, EventAborted, EventError} {
		s.On(k, func(ev Event) {
			mu.Lock()
			kinds = append(kinds, ev.Kind)
			mu.Unlock()
		})
	}
	return &kinds
}

func TestNew_Preconditions(t *testing.T) {
	streamer := streamerFor(&MockStream{}, nil)

	tests := []struct {
		name     string
		ctx      context.Context
		streamer models.Streamer
		messages []models.Message
	}{
		{"nil context", nil, streamer, testMessages},
		{"nil streamer", context.Background(), nil, testMessages},
		{"no messages", context.Background(), streamer, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.ctx, tt.streamer, tt.messages, nil)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("error = %v, want ErrInvalidArgument", err)
			}
			if s != nil {
				t.Error("expected nil session")
			}
		})
	}
}

func TestStart_CompletesAndEmitsInOrder(t *testing.T) {
	stream := &MockStream{chunks: []string{"Hel", "", "lo", " world"}}
	s, err := New(context.Background(), streamerFor(stream, nil), testMessages, &models.Spec{Provider: "p", Model: "m"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	kinds := recordEvents(s)

	var streamed strings.Builder
	s.On(EventChunk, func(ev Event) { streamed.WriteString(ev.Chunk) })

	res, err := s.Start()
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if res.Aborted {
		t.Error("expected non-aborted result")
	}
	if res.Text != "Hello world" {
		t.Errorf("Text = %q, want %q", res.Text, "Hello world")
	}
	if len(res.Chunks) != 3 {
		t.Errorf("Chunks = %v, empty fragments should be dropped", res.Chunks)
	}
	if streamed.String() != res.Text {
		t.Errorf("concatenated chunk events %q != final text %q", streamed.String(), res.Text)
	}

	want := []EventKind{EventInit, EventStreamStarted, EventFirstChunk, EventChunk, EventChunk, EventChunk, EventCompleted}
	if len(*kinds) != len(want) {
		t.Fatalf("events = %v, want %v", *kinds, want)
	}
	for i := range want {
		if (*kinds)[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, (*kinds)[i], want[i])
		}
	}

	if s.State() != StateCompleted {
		t.Errorf("State() = %s, want completed", s.State())
	}
	if !stream.closed.Load() {
		t.Error("stream should be closed after completion")
	}
}

func TestStart_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var opened atomic.Bool
	streamer := models.StreamerFunc(func(ctx context.Context, spec *models.Spec, messages []models.Message) (models.Stream, error) {
		opened.Store(true)
		return &MockStream{}, nil
	})

	s, _ := New(ctx, streamer, testMessages, nil)
	kinds := recordEvents(s)

	res, err := s.Start()
	if err != nil {
		t.Fatalf("cancellation must not be an error, got %v", err)
	}
	if !res.Aborted {
		t.Error("expected aborted result")
	}
	if opened.Load() {
		t.Error("no request should be issued once cancelled")
	}
	if s.State() != StateAborted {
		t.Errorf("State() = %s, want aborted", s.State())
	}
	if got := *kinds; len(got) != 2 || got[0] != EventInit || got[1] != EventAborted {
		t.Errorf("events = %v", got)
	}
}

func TestStart_CancelledMidStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := &MockStream{chunks: []string{"a", "b", "c"}}
	stream.onRecv = func(i int) {
		if i == 2 {
			cancel()
		}
	}

	s, _ := New(ctx, streamerFor(stream, nil), testMessages, nil)
	res, err := s.Start()
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !res.Aborted {
		t.Fatal("expected aborted result")
	}
	// the fragment returned by the cancelling Recv is dropped
	if res.Text != "ab" {
		t.Errorf("Text = %q, want %q", res.Text, "ab")
	}
}

// lateStream holds Recv until the context is done, then still hands back text
type lateStream struct {
	ctx context.Context
}

func (l *lateStream) Recv() (string, error) {
	<-l.ctx.Done()
	return "late", nil
}

func (l *lateStream) Close() error { return nil }

func TestStart_FragmentAfterCancelIsDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, _ := New(ctx, streamerFor(&lateStream{ctx: ctx}, nil), testMessages, nil)
	kinds := recordEvents(s)

	go cancel()
	res, err := s.Start()
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !res.Aborted || res.Text != "" || len(res.Chunks) != 0 {
		t.Errorf("result = %+v, want aborted with no text", res)
	}
	for _, k := range *kinds {
		if k == EventFirstChunk || k == EventChunk {
			t.Errorf("unexpected %s after cancellation", k)
		}
	}
	if s.State() != StateAborted {
		t.Errorf("State() = %s, want aborted", s.State())
	}
}

func TestStart_TransportCanceledErrorIsAbort(t *testing.T) {
	stream := &MockStream{chunks: []string{"x"}, err: context.Canceled}
	s, _ := New(context.Background(), streamerFor(stream, nil), testMessages, nil)

	res, err := s.Start()
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !res.Aborted || res.Text != "x" {
		t.Errorf("result = %+v", res)
	}
}

func TestStart_TransportErrorRejects(t *testing.T) {
	boom := errors.New("connection reset")

	t.Run("on open", func(t *testing.T) {
		s, _ := New(context.Background(), streamerFor(nil, boom), testMessages, nil)
		var gotErr error
		s.Once(EventError, func(ev Event) { gotErr = ev.Err })

		_, err := s.Start()
		if !errors.Is(err, boom) {
			t.Errorf("Start() error = %v, want %v", err, boom)
		}
		if !errors.Is(gotErr, boom) {
			t.Errorf("error event carried %v", gotErr)
		}
		if s.State() != StateErrored {
			t.Errorf("State() = %s", s.State())
		}
	})

	t.Run("mid stream", func(t *testing.T) {
		stream := &MockStream{chunks: []string{"partial"}, err: boom}
		s, _ := New(context.Background(), streamerFor(stream, nil), testMessages, nil)

		_, err := s.Start()
		if !errors.Is(err, boom) {
			t.Errorf("Start() error = %v, want %v", err, boom)
		}
		if !stream.closed.Load() {
			t.Error("stream should be closed after failure")
		}
	})
}

func TestStart_Twice(t *testing.T) {
	s, _ := New(context.Background(), streamerFor(&MockStream{}, nil), testMessages, nil)
	if _, err := s.Start(); err != nil {
		t.Fatalf("first Start() error: %v", err)
	}
	if _, err := s.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestFirstChunk_FiresOnce(t *testing.T) {
	stream := &MockStream{chunks: []string{"", "one", "two", "three"}}
	s, _ := New(context.Background(), streamerFor(stream, nil), testMessages, nil)

	var count int
	var first string
	s.On(EventFirstChunk, func(ev Event) {
		count++
		first = ev.Chunk
	})

	if _, err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if count != 1 || first != "one" {
		t.Errorf("first-chunk fired %d times with %q", count, first)
	}
}

func TestOnceAndUnsubscribe(t *testing.T) {
	stream := &MockStream{chunks: []string{"a", "b", "c"}}
	s, _ := New(context.Background(), streamerFor(stream, nil), testMessages, nil)

	var onceCount, onCount, removedCount int
	s.Once(EventChunk, func(Event) { onceCount++ })
	s.On(EventChunk, func(Event) { onCount++ })
	unsubscribe := s.On(EventChunk, func(Event) { removedCount++ })
	unsubscribe()
	unsubscribe()

	if _, err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if onceCount != 1 {
		t.Errorf("Once handler ran %d times", onceCount)
	}
	if onCount != 3 {
		t.Errorf("On handler ran %d times", onCount)
	}
	if removedCount != 0 {
		t.Errorf("unsubscribed handler ran %d times", removedCount)
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	stream := &MockStream{chunks: []string{"a", "b"}}
	s, _ := New(context.Background(), streamerFor(stream, nil), testMessages, nil)

	s.On(EventChunk, func(Event) { panic("handler bug") })

	res, err := s.Start()
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if res.Text != "ab" {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestDispose(t *testing.T) {
	t.Run("idempotent after completion", func(t *testing.T) {
		s, _ := New(context.Background(), streamerFor(&MockStream{chunks: []string{"x"}}, nil), testMessages, nil)
		if _, err := s.Start(); err != nil {
			t.Fatal(err)
		}
		s.Dispose()
		s.Dispose()
	})

	t.Run("removes listeners", func(t *testing.T) {
		s, _ := New(context.Background(), streamerFor(&MockStream{chunks: []string{"x"}}, nil), testMessages, nil)
		var called bool
		s.On(EventChunk, func(Event) { called = true })
		s.Dispose()
		s.On(EventCompleted, func(Event) { called = true })

		if _, err := s.Start(); err != nil {
			t.Fatal(err)
		}
		if called {
			t.Error("handlers should not run after Dispose")
		}
	})

	t.Run("terminates open reader", func(t *testing.T) {
		stream := &MockStream{chunks: []string{"first"}, block: make(chan struct{})}
		s, _ := New(context.Background(), streamerFor(stream, nil), testMessages, nil)

		firstSeen := make(chan struct{})
		s.Once(EventFirstChunk, func(Event) { close(firstSeen) })

		type outcome struct {
			res Result
			err error
		}
		done := make(chan outcome, 1)
		go func() {
			res, err := s.Start()
			done <- outcome{res, err}
		}()

		<-firstSeen
		s.Dispose()

		select {
		case out := <-done:
			if out.err != nil {
				t.Fatalf("Start() error: %v", out.err)
			}
			if !out.res.Aborted || out.res.Text != "first" {
				t.Errorf("result = %+v", out.res)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Start() did not return after Dispose")
		}
		if !stream.closed.Load() {
			t.Error("Dispose should close the stream")
		}
	})
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StatePending:   "pending",
		StateStreaming: "streaming",
		StateCompleted: "completed",
		StateAborted:   "aborted",
		StateErrored:   "errored",
		State(42):      "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}

func TestEventKindString(t *testing.T) {
	want := []string{
		"session:init",
		"session:stream-started",
		"stream:first-chunk",
		"stream:chunk",
		"session:completed",
		"session:aborted",
		"session:error",
	}
	for i, w := range want {
		if got := EventKind(i).String(); got != w {
			t.Errorf("EventKind(%d).String() = %q, want %q", i, got, w)
		}
	}
}
