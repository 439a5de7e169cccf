// internal/orchestrator/coordinator.go
package orchestrator

import (
	"log/slog"
	"sync"

	"openai-cli/internal/logging"
	"openai-cli/internal/models"
)

// RemainingChange is delivered whenever the number of outstanding models moves
type RemainingChange struct {
	Remaining int
	Total     int
}

// Coordinator is the per-batch arbiter: it grants the winner slot to exactly
// one model, counts completions and fans out events to the presentation
// layer. Create one per batch; ResetState makes it reusable.
//
// Handlers run synchronously, one event at a time, and must not call
// RegisterModel or CompleteModel.
type Coordinator struct {
	logger *slog.Logger

	// emitMu serializes event delivery so handlers never overlap
	emitMu sync.Mutex

	mu           sync.Mutex
	participants map[models.Spec]<-chan struct{}
	order        []models.Spec
	winner       *models.Spec
	completed    map[models.Spec]ModelResult
	results      []ModelResult
	allFired     bool
	resetPending bool
	drained      chan struct{}

	displayResult    listeners[ModelResult]
	modelCompleted   listeners[ModelResult]
	winnerCompleted  listeners[ModelResult]
	remainingChanged listeners[RemainingChange]
	allCompleted     listeners[[]ModelResult]
}

func NewCoordinator(logger *slog.Logger) *Coordinator {
	c := &Coordinator{logger: logging.OrDiscard(logger)}
	c.clear()
	return c
}

// clear must be called with mu held (or before the coordinator is shared).
func (c *Coordinator) clear() {
	c.participants = make(map[models.Spec]<-chan struct{})
	c.order = nil
	c.winner = nil
	c.completed = make(map[models.Spec]ModelResult)
	c.results = nil
	c.allFired = false
	c.resetPending = false
	c.drained = make(chan struct{})
}

// RegisterModel records a participant before it is awaited. done is closed
// when the participant's execution returns.
func (c *Coordinator) RegisterModel(spec models.Spec, done <-chan struct{}) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if _, exists := c.participants[spec]; exists {
		c.mu.Unlock()
		c.logger.Warn("model already registered", "model", spec.String())
		return
	}
	c.participants[spec] = done
	c.order = append(c.order, spec)
	change := RemainingChange{Remaining: c.remainingLocked(), Total: len(c.order)}
	c.mu.Unlock()

	c.remainingChanged.emit(c.logger, "remaining-count-changed", change)
}

// SetWinner grants the winner slot. It returns true to exactly one caller
// per batch and false to every other caller.
func (c *Coordinator) SetWinner(spec models.Spec) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.winner != nil {
		return false
	}
	if _, ok := c.participants[spec]; !ok {
		c.logger.Warn("winner is not a registered participant", "model", spec.String())
	}
	w := spec
	c.winner = &w
	c.logger.Debug("winner selected", "model", spec.String())
	return true
}

// Winner returns the current winner, if any.
func (c *Coordinator) Winner() (models.Spec, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.winner == nil {
		return models.Spec{}, false
	}
	return *c.winner, true
}

// CompleteModel records the final result of one participant. Duplicate
// reports for the same model are ignored. When the last participant reports,
// AllCompleted fires exactly once and Drained is closed.
func (c *Coordinator) CompleteModel(spec models.Spec, result ModelResult) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if _, dup := c.completed[spec]; dup {
		c.mu.Unlock()
		c.logger.Warn("duplicate completion ignored", "model", spec.String())
		return
	}
	if _, ok := c.participants[spec]; !ok {
		// late reporter after an immediate reset, or an unregistered caller
		c.logger.Warn("completion from unregistered model", "model", spec.String())
		c.participants[spec] = nil
		c.order = append(c.order, spec)
	}

	result.Spec = spec
	result.Winner = c.winner != nil && *c.winner == spec
	c.completed[spec] = result
	c.results = append(c.results, result)

	change := RemainingChange{Remaining: c.remainingLocked(), Total: len(c.order)}
	fireAll := change.Remaining == 0 && !c.allFired
	var all []ModelResult
	var drained chan struct{}
	if fireAll {
		c.allFired = true
		all = make([]ModelResult, len(c.results))
		copy(all, c.results)
		drained = c.drained
	}
	c.mu.Unlock()

	c.logger.Debug("model completed",
		"model", spec.String(),
		"success", result.Success,
		"aborted", result.Aborted,
		"winner", result.Winner,
		"remaining", change.Remaining,
	)

	c.modelCompleted.emit(c.logger, "model-completed", result)
	if result.Winner {
		c.winnerCompleted.emit(c.logger, "winner-completed", result)
	} else {
		c.displayResult.emit(c.logger, "display-result", result)
	}
	c.remainingChanged.emit(c.logger, "remaining-count-changed", change)

	if fireAll {
		c.allCompleted.emit(c.logger, "all-completed", all)
		close(drained)

		c.mu.Lock()
		if c.resetPending {
			c.clear()
		}
		c.mu.Unlock()
	}
}

// RemainingCount returns how many registered models have not reported.
func (c *Coordinator) RemainingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked()
}

func (c *Coordinator) remainingLocked() int {
	return len(c.order) - len(c.completed)
}

// Total returns the number of participants in the current batch.
func (c *Coordinator) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// IsAllCompleted reports whether every participant of a non-empty batch has reported.
func (c *Coordinator) IsAllCompleted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order) > 0 && c.remainingLocked() == 0
}

// Outstanding returns participants whose execution has not returned yet.
func (c *Coordinator) Outstanding() []models.Spec {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []models.Spec
	for _, spec := range c.order {
		if _, ok := c.completed[spec]; ok {
			continue
		}
		done := c.participants[spec]
		if done == nil {
			out = append(out, spec)
			continue
		}
		select {
		case <-done:
		default:
			out = append(out, spec)
		}
	}
	return out
}

// Drained is closed after AllCompleted handlers have run for the current batch.
func (c *Coordinator) Drained() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drained
}

// ResetState clears all per-batch state. While participants are still in
// flight the reset is deferred until the last one reports, so a cancelled
// batch still drains and fires AllCompleted once. Subscriptions are kept.
func (c *Coordinator) ResetState() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.order) > 0 && c.remainingLocked() > 0 {
		c.resetPending = true
		c.logger.Debug("reset deferred until in-flight models report", "remaining", c.remainingLocked())
		return
	}
	c.clear()
}

// inUse reports whether a batch is registered and not yet reset.
func (c *Coordinator) inUse() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order) > 0
}

// OnDisplayResult fires for every non-winner completion.
func (c *Coordinator) OnDisplayResult(fn func(ModelResult)) func() {
	return c.displayResult.add(fn)
}

// OnModelCompleted fires for every completion.
func (c *Coordinator) OnModelCompleted(fn func(ModelResult)) func() {
	return c.modelCompleted.add(fn)
}

// OnWinnerCompleted fires when the winner reports.
func (c *Coordinator) OnWinnerCompleted(fn func(ModelResult)) func() {
	return c.winnerCompleted.add(fn)
}

// OnRemainingCountChanged fires on every registration and completion.
func (c *Coordinator) OnRemainingCountChanged(fn func(RemainingChange)) func() {
	return c.remainingChanged.add(fn)
}

// OnAllCompleted fires once per batch with every result in completion order.
func (c *Coordinator) OnAllCompleted(fn func([]ModelResult)) func() {
	return c.allCompleted.add(fn)
}

// listeners is a small ordered handler list with unsubscribe support
type listeners[T any] struct {
	mu      sync.Mutex
	nextID  int
	entries []listener[T]
}

type listener[T any] struct {
	id int
	fn func(T)
}

func (l *listeners[T]) add(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	id := l.nextID
	l.entries = append(l.entries, listener[T]{id: id, fn: fn})

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, e := range l.entries {
			if e.id == id {
				l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
				return
			}
		}
	}
}

func (l *listeners[T]) emit(logger *slog.Logger, event string, v T) {
	l.mu.Lock()
	snapshot := make([]listener[T], len(l.entries))
	copy(snapshot, l.entries)
	l.mu.Unlock()

	for _, e := range snapshot {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("coordinator handler panicked", "event", event, "panic", r)
				}
			}()
			e.fn(v)
		}()
	}
}
