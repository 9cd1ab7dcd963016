// Package translate wraps the external machine-translation services
// behind one capability interface.
package translate

import (
	"context"
)

// Formality levels accepted by Options.
const (
	FormalityDefault = "default"
	FormalityMore    = "more"
	FormalityLess    = "less"
)

// Options carries per-request translation knobs.
type Options struct {
	Formality string
}

// Provider is the translation capability. Implementations are
// stateless and safe for concurrent use.
type Provider interface {
	Name() string
	// Supports reports whether the provider can translate from
	// sourceLang into targetLang. An empty sourceLang means
	// auto-detect and only the target is checked.
	Supports(sourceLang, targetLang string) bool
	// MaxChunkChars is the largest text the provider accepts in one
	// request.
	MaxChunkChars() int
	Translate(ctx context.Context, text, targetLang, sourceLang string, opts Options) (string, error)
}

// Registry resolves provider names and the configured default.
type Registry struct {
	providers   map[string]Provider
	defaultName string
}

func NewRegistry(defaultName string, providers ...Provider) *Registry {
	r := &Registry{providers: map[string]Provider{}, defaultName: defaultName}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns a provider by name, or nil.
func (r *Registry) Get(name string) Provider {
	return r.providers[name]
}

// Default returns the configured default provider, falling back to
// any registered one in the original's preference order.
func (r *Registry) Default() Provider {
	if p, ok := r.providers[r.defaultName]; ok {
		return p
	}
	for _, name := range []string{"deepl", "google", "microsoft", "openai"} {
		if p, ok := r.providers[name]; ok {
			return p
		}
	}
	return nil
}

// FirstSupporting returns a provider able to translate into
// targetLang, preferring the default.
func (r *Registry) FirstSupporting(sourceLang, targetLang string) Provider {
	if p := r.Default(); p != nil && p.Supports(sourceLang, targetLang) {
		return p
	}
	for _, name := range []string{"openai", "microsoft", "google", "deepl"} {
		if p, ok := r.providers[name]; ok && p.Supports(sourceLang, targetLang) {
			return p
		}
	}
	return nil
}

// Names lists the registered providers.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	return out
}
