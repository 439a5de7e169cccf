package session

import (
	"fmt"
)

// EventKind is the closed set of session lifecycle events
type EventKind int

const (
	EventInit EventKind = iota
	EventStreamStarted
	EventFirstChunk
	EventChunk
	EventCompleted
	EventAborted
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventInit:
		return "session:init"
	case EventStreamStarted:
		return "session:stream-started"
	case EventFirstChunk:
		return "stream:first-chunk"
	case EventChunk:
		return "stream:chunk"
	case EventCompleted:
		return "session:completed"
	case EventAborted:
		return "session:aborted"
	case EventError:
		return "session:error"
	default:
		return fmt.Sprintf("session:unknown(%d)", int(k))
	}
}

// Event is delivered to handlers synchronously on the Start goroutine.
type Event struct {
	Kind      EventKind
	SessionID string
	Chunk     string // EventFirstChunk, EventChunk
	Index     int    // EventChunk, position in the fragment buffer
	Text      string // EventCompleted, EventAborted
	Err       error  // EventError
}

type Handler func(Event)

type subscription struct {
	id   int
	fn   Handler
	once bool
}

// On subscribes to kind and returns an unsubscribe function.
func (s *Session) On(kind EventKind, fn Handler) func() {
	return s.subscribe(kind, fn, false)
}

// Once subscribes for a single delivery of kind.
func (s *Session) Once(kind EventKind, fn Handler) func() {
	return s.subscribe(kind, fn, true)
}

func (s *Session) subscribe(kind EventKind, fn Handler, once bool) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed || fn == nil {
		return func() {}
	}
	s.nextSub++
	sub := &subscription{id: s.nextSub, fn: fn, once: once}
	s.handlers[kind] = append(s.handlers[kind], sub)

	return func() { s.unsubscribe(kind, sub.id) }
}

func (s *Session) unsubscribe(kind EventKind, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.handlers[kind]
	for i, sub := range subs {
		if sub.id == id {
			s.handlers[kind] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// emit snapshots the handlers under the lock and runs them without it, so
// handlers may subscribe, unsubscribe or dispose.
func (s *Session) emit(ev Event) {
	ev.SessionID = s.id

	s.mu.Lock()
	subs := s.handlers[ev.Kind]
	snapshot := make([]*subscription, len(subs))
	copy(snapshot, subs)
	if len(subs) > 0 {
		kept := subs[:0:0]
		for _, sub := range subs {
			if !sub.once {
				kept = append(kept, sub)
			}
		}
		s.handlers[ev.Kind] = kept
	}
	s.mu.Unlock()

	for _, sub := range snapshot {
		s.call(sub.fn, ev)
	}
}

func (s *Session) call(fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("session handler panicked", "event", ev.Kind.String(), "panic", r)
		}
	}()
	fn(ev)
}
