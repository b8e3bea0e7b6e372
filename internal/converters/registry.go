// Package converters resolves provider-specific raw-to-canonical
// conversions. Each upstream ESDH provider registers one converter; the
// import pipeline looks it up by the provider name on the source.
package converters

import (
	"fmt"

	"github.com/agendadk/agendasync/internal/core/domain"
	"github.com/agendadk/agendasync/internal/core/ports/driven"
	"github.com/agendadk/agendasync/internal/converters/sbsys"
)

// Ensure Registry implements the interface.
var _ driven.ConverterRegistry = (*Registry)(nil)

// Registry maps provider names to converters.
type Registry struct {
	converters map[string]driven.Converter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{converters: make(map[string]driven.Converter)}
}

// DefaultRegistry returns a registry with all built-in providers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(sbsys.New())
	return r
}

// Register adds a converter under its provider name. A later
// registration for the same provider replaces the earlier one.
func (r *Registry) Register(conv driven.Converter) {
	r.converters[conv.Provider()] = conv
}

// Get returns the converter for a provider.
func (r *Registry) Get(provider string) (driven.Converter, error) {
	conv, ok := r.converters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedProvider, provider)
	}
	return conv, nil
}
