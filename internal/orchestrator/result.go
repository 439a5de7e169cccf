package orchestrator

import (
	"fmt"
	"time"

	"openai-cli/internal/models"
)

// ModelResult is the finalized outcome of one model execution. Exactly one
// is produced per executor regardless of how it ended.
type ModelResult struct {
	Spec     models.Spec
	Success  bool
	Text     string
	Duration time.Duration
	Err      error
	Aborted  bool
	Winner   bool
}

// Seconds returns wall-clock timing in seconds.
func (r ModelResult) Seconds() float64 {
	return r.Duration.Seconds()
}

func (r ModelResult) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Summary aggregates one batch for display
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Aborted   int
}

func Summarize(results []ModelResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch {
		case r.Success:
			s.Succeeded++
		case r.Aborted:
			s.Aborted++
		default:
			s.Failed++
		}
	}
	return s
}

// Cancelled reports whether the batch was interrupted. The presentation
// layer decides how to show it.
func (s Summary) Cancelled() bool {
	return s.Aborted > 0
}

// AllFailed reports a batch in which no model responded.
func (s Summary) AllFailed() bool {
	return s.Total > 0 && s.Succeeded == 0 && !s.Cancelled()
}

func (s Summary) String() string {
	switch {
	case s.Cancelled():
		return ""
	case s.AllFailed():
		if s.Total == 1 {
			return "model failed to respond"
		}
		return fmt.Sprintf("all %d models failed to respond", s.Total)
	default:
		return fmt.Sprintf("(%d/%d models responded)", s.Succeeded, s.Total)
	}
}
