// internal/models/model.go
package models

import (
	"context"
)

// Stream yields normalized text fragments until io.EOF.
type Stream interface {
	// Recv blocks for the next fragment. It returns io.EOF once the
	// provider finishes normally.
	Recv() (string, error)

	// Close releases the underlying connection. Safe to call more than once.
	Close() error
}

// Streamer is the provider-agnostic streaming completion call
type Streamer interface {
	// Stream opens a streaming completion. spec may be nil to select the
	// default provider and model. Cancelling ctx terminates the stream.
	Stream(ctx context.Context, spec *Spec, messages []Message) (Stream, error)
}

// StreamerFunc adapts a function to the Streamer interface
type StreamerFunc func(ctx context.Context, spec *Spec, messages []Message) (Stream, error)

func (f StreamerFunc) Stream(ctx context.Context, spec *Spec, messages []Message) (Stream, error) {
	return f(ctx, spec, messages)
}
