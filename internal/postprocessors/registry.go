package postprocessors

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driven"
)

// BuilderFunc creates a stage from its [postprocessors.<name>] config table.
type BuilderFunc func(cfg map[string]any) (driven.PostProcessor, error)

// Registry maps stage names to builders so the pipeline can be assembled
// from the configured stage list.
type Registry struct {
	builders map[string]BuilderFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]BuilderFunc)}
}

// Register adds or replaces the builder for name. The name is what the
// stage list in config refers to.
func (r *Registry) Register(name string, builder BuilderFunc) {
	r.builders[name] = builder
}

// Build creates the stage called name. Unknown names are ErrUnsupportedType.
func (r *Registry) Build(name string, cfg map[string]any) (driven.PostProcessor, error) {
	builder, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: post-processor %q (known: %s)",
			domain.ErrUnsupportedType, name, strings.Join(r.Names(), ", "))
	}
	proc, err := builder(cfg)
	if err != nil {
		return nil, fmt.Errorf("build post-processor %s: %w", name, err)
	}
	return proc, nil
}

// Names returns the registered stage names, sorted.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.builders))
}
