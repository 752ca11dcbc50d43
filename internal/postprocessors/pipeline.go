// Package postprocessors provides message normalisation and chunking.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driven"
)

// Pipeline chains multiple PostProcessors and runs them in order.
// It implements the PostProcessorPipeline interface.
type Pipeline struct {
	processors []driven.PostProcessor
}

// NewPipeline creates a new processing pipeline with the given processors.
// Processors are executed in the order provided.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{
		processors: processors,
	}
}

// Process runs the message through all processors in order.
// The first processor receives the message's retrieval text and no chunks.
func (p *Pipeline) Process(ctx context.Context, msg *domain.Message) (*domain.ProcessedMessage, error) {
	if msg == nil {
		return nil, fmt.Errorf("message is nil")
	}

	pm := &domain.ProcessedMessage{Message: msg, Text: msg.Text()}

	for _, processor := range p.processors {
		var err error
		pm, err = processor.Process(ctx, pm)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", processor.Name(), err)
		}
	}

	return pm, nil
}

// Add appends a processor to the pipeline.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.processors = append(p.processors, processor)
}

// Len returns the number of processors in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.processors)
}

// Build creates a pipeline from configuration using the registry.
func Build(r *Registry, cfg domain.PipelineConfig) (*Pipeline, error) {
	p := NewPipeline()
	for _, name := range cfg.Processors {
		proc, err := r.Build(name, cfg.GetProcessorConfig(name))
		if err != nil {
			return nil, err
		}
		p.Add(proc)
	}
	return p, nil
}
