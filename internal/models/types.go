// internal/models/types.go
package models

import (
	"errors"
	"fmt"
	"strings"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the conversation sent to a provider
type Message struct {
	Role    string
	Content string
}

// Spec identifies a {provider, model} pair. An empty Model means the
// provider's default model; an empty Provider means the registry default.
type Spec struct {
	Provider string
	Model    string
}

func (s Spec) String() string {
	switch {
	case s.Provider == "" && s.Model == "":
		return "default"
	case s.Model == "":
		return s.Provider
	case s.Provider == "":
		return s.Model
	default:
		return s.Provider + "/" + s.Model
	}
}

// IsZero reports whether the spec selects the registry default.
func (s Spec) IsZero() bool {
	return s.Provider == "" && s.Model == ""
}

var ErrInvalidSpec = errors.New("invalid model spec")

// ParseSpec parses "provider/model" or a bare "provider". Everything after
// the first slash is the model, so "openrouter/openai/gpt-4o" keeps the
// vendor prefix in the model name.
func ParseSpec(s string) (Spec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Spec{}, fmt.Errorf("%w: empty", ErrInvalidSpec)
	}
	provider, model, found := strings.Cut(s, "/")
	if provider == "" || (found && model == "") {
		return Spec{}, fmt.Errorf("%w: %q", ErrInvalidSpec, s)
	}
	return Spec{Provider: provider, Model: model}, nil
}
