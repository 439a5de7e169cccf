// internal/models/registry.go
package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"openai-cli/internal/config"
)

var ErrUnknownProvider = errors.New("unknown provider")

// Registry holds all available providers
type Registry struct {
	providers       map[string]Streamer
	defaultModels   map[string]string
	order           []string // Preserve order for consistent display
	defaultProvider string
	defaultModel    string
}

// NewRegistry creates a registry from config
func NewRegistry(cfg *config.Config) *Registry {
	r := NewEmptyRegistry()
	timeout := time.Duration(cfg.Defaults.RequestTimeout) * time.Second

	for _, name := range cfg.ProviderNames() {
		p := cfg.Providers[name]
		if !p.Usable() {
			continue
		}
		switch p.Kind {
		case config.KindAnthropic:
			r.Add(name, p.DefaultModel, NewAnthropic(name, p.BaseURL, p.APIKey, p.DefaultModel, timeout))
		case config.KindOpenAI, config.KindOllama:
			r.Add(name, p.DefaultModel, NewOpenAI(name, p.BaseURL, p.APIKey, p.DefaultModel, timeout))
		}
	}

	r.SetDefault(Spec{Provider: cfg.Defaults.Provider, Model: cfg.Defaults.Model})
	return r
}

func NewEmptyRegistry() *Registry {
	return &Registry{
		providers:     make(map[string]Streamer),
		defaultModels: make(map[string]string),
		order:         []string{},
	}
}

// Add registers a provider. The first provider added becomes the default
// until SetDefault names another.
func (r *Registry) Add(name, defaultModel string, s Streamer) {
	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = s
	r.defaultModels[name] = defaultModel
	if r.defaultProvider == "" {
		r.defaultProvider = name
	}
}

// SetDefault selects the provider used for specs without one. Unknown
// providers are ignored so a stale config cannot break resolution.
func (r *Registry) SetDefault(spec Spec) {
	if _, ok := r.providers[spec.Provider]; !ok {
		return
	}
	r.defaultProvider = spec.Provider
	r.defaultModel = spec.Model
}

// Get returns a provider by name
func (r *Registry) Get(name string) Streamer {
	return r.providers[name]
}

// Enabled returns names of all registered providers
func (r *Registry) Enabled() []string {
	return r.order
}

// Count returns number of registered providers
func (r *Registry) Count() int {
	return len(r.order)
}

// DefaultSpec returns the fully resolved default spec
func (r *Registry) DefaultSpec() Spec {
	spec, _, _ := r.Resolve(nil)
	return spec
}

// Resolve fills in the provider and model of spec from the defaults.
func (r *Registry) Resolve(spec *Spec) (Spec, Streamer, error) {
	var resolved Spec
	if spec != nil {
		resolved = *spec
	}
	if resolved.Provider == "" {
		resolved.Provider = r.defaultProvider
		if resolved.Model == "" {
			resolved.Model = r.defaultModel
		}
	}

	s, ok := r.providers[resolved.Provider]
	if !ok {
		if resolved.Provider == "" {
			return resolved, nil, fmt.Errorf("%w: no providers configured", ErrUnknownProvider)
		}
		return resolved, nil, fmt.Errorf("%w: %s", ErrUnknownProvider, resolved.Provider)
	}
	if resolved.Model == "" {
		resolved.Model = r.defaultModels[resolved.Provider]
	}
	return resolved, s, nil
}

// Stream dispatches to the provider named by spec.
func (r *Registry) Stream(ctx context.Context, spec *Spec, messages []Message) (Stream, error) {
	resolved, s, err := r.Resolve(spec)
	if err != nil {
		return nil, err
	}
	return s.Stream(ctx, &resolved, messages)
}
