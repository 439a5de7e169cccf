// Package session wraps one streaming completion call and guarantees a
// deterministic terminal outcome: completed, aborted, or errored.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"openai-cli/internal/logging"
	"openai-cli/internal/models"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrAlreadyStarted  = errors.New("session already started")
)

// State is the lifecycle tag of a session. Transitions only move forward.
type State int

const (
	StatePending State = iota
	StateStreaming
	StateCompleted
	StateAborted
	StateErrored
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s >= StateCompleted
}

// Result is what Start resolves with. Cancellation is not an error: it
// yields Aborted with whatever text arrived before the signal.
type Result struct {
	Text    string
	Chunks  []string
	Aborted bool
}

// Session drives one completion call. Create it with New; it is owned by a
// single caller and Start may run only once.
type Session struct {
	id       string
	ctx      context.Context
	streamer models.Streamer
	messages []models.Message
	spec     *models.Spec
	logger   *slog.Logger

	mu       sync.Mutex
	state    State
	started  bool
	disposed bool
	stream   models.Stream
	handlers map[EventKind][]*subscription
	nextSub  int

	// only touched by the Start goroutine
	chunks     []string
	firstChunk bool
}

type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New creates a session. ctx is the batch cancellation token and is
// required, as is at least one message. spec may be nil to use the
// transport's default provider and model.
func New(ctx context.Context, streamer models.Streamer, messages []models.Message, spec *models.Spec, opts ...Option) (*Session, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: cancellation context is required", ErrInvalidArgument)
	}
	if streamer == nil {
		return nil, fmt.Errorf("%w: streamer is required", ErrInvalidArgument)
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: at least one message is required", ErrInvalidArgument)
	}

	s := &Session{
		id:       uuid.NewString(),
		ctx:      ctx,
		streamer: streamer,
		messages: messages,
		spec:     spec,
		handlers: make(map[EventKind][]*subscription),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDiscard(s.logger).With("session", s.id, "model", s.specString())
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Spec() *models.Spec { return s.spec }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start issues the request and iterates fragments until the stream ends,
// the context is cancelled, or the transport fails. It blocks; callers run
// it on their own goroutine.
func (s *Session) Start() (Result, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return Result{}, ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	s.emit(Event{Kind: EventInit})

	if s.ctx.Err() != nil {
		return s.abort(), nil
	}

	stream, err := s.streamer.Stream(s.ctx, s.spec, s.messages)
	if err != nil {
		if s.cancelled(err) {
			return s.abort(), nil
		}
		return Result{}, s.fail(err)
	}
	defer s.closeStream()

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		stream.Close()
		return s.abort(), nil
	}
	s.stream = stream
	s.mu.Unlock()

	s.transition(StateStreaming)
	s.emit(Event{Kind: EventStreamStarted})

	for {
		if s.ctx.Err() != nil {
			return s.abort(), nil
		}

		fragment, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if s.cancelled(err) {
				return s.abort(), nil
			}
			return Result{}, s.fail(err)
		}
		// a fragment delivered after the signal belongs to no one
		if s.ctx.Err() != nil {
			return s.abort(), nil
		}
		if fragment == "" {
			continue
		}

		s.chunks = append(s.chunks, fragment)
		if !s.firstChunk {
			s.firstChunk = true
			s.emit(Event{Kind: EventFirstChunk, Chunk: fragment})
		}
		s.emit(Event{Kind: EventChunk, Chunk: fragment, Index: len(s.chunks) - 1})
	}

	result := s.result(false)
	s.transition(StateCompleted)
	s.logger.Debug("session completed", "chunks", len(result.Chunks))
	s.emit(Event{Kind: EventCompleted, Text: result.Text})
	return result, nil
}

// Dispose closes any open stream and drops all listeners. It is idempotent
// and safe to call while Start is running; Start then resolves as aborted.
func (s *Session) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return
	}
	s.disposed = true
	if s.stream != nil {
		s.stream.Close()
		s.stream = nil
	}
	s.handlers = nil
}

func (s *Session) abort() Result {
	result := s.result(true)
	s.transition(StateAborted)
	s.logger.Debug("session aborted", "chunks", len(result.Chunks))
	s.emit(Event{Kind: EventAborted, Text: result.Text})
	return result
}

func (s *Session) fail(err error) error {
	s.transition(StateErrored)
	s.logger.Warn("session failed", "error", err)
	s.emit(Event{Kind: EventError, Err: err})
	return err
}

// cancelled reports whether err is the consequence of cancellation or of
// Dispose closing the stream underneath Recv.
func (s *Session) cancelled(err error) bool {
	if s.ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

func (s *Session) result(aborted bool) Result {
	chunks := make([]string, len(s.chunks))
	copy(chunks, s.chunks)
	return Result{
		Text:    strings.Join(chunks, ""),
		Chunks:  chunks,
		Aborted: aborted,
	}
}

func (s *Session) transition(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if next <= s.state || s.state.Terminal() {
		return
	}
	s.state = next
}

func (s *Session) closeStream() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		s.stream.Close()
		s.stream = nil
	}
}

func (s *Session) specString() string {
	if s.spec == nil {
		return models.Spec{}.String()
	}
	return s.spec.String()
}
