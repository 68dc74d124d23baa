package scanner

import (
	"fmt"

	"TanshinScanner/internal/ports"
)

// Registry keeps a mapping from feed source names to their implementations.
type Registry struct {
	sources map[string]ports.IndexSource
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]ports.IndexSource{}}
}

// Register adds or replaces a feed source implementation.
func (r *Registry) Register(name string, source ports.IndexSource) {
	if r.sources == nil {
		r.sources = map[string]ports.IndexSource{}
	}
	r.sources[name] = source
}

// Resolve returns a source by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.IndexSource, error) {
	if source, ok := r.sources[name]; ok {
		return source, nil
	}
	return nil, fmt.Errorf("feed source %s is not registered", name)
}
