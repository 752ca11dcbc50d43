package driven

import (
	"context"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

// PostProcessor transforms a message on its way to the indices.
// PostProcessors are chained in a pipeline (e.g., HTML normalisation, chunking).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process receives the output of the previous processor.
	// Normalisers rewrite Text; the chunker fills Chunks from Text.
	Process(ctx context.Context, pm *domain.ProcessedMessage) (*domain.ProcessedMessage, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the message through all processors in order.
	Process(ctx context.Context, msg *domain.Message) (*domain.ProcessedMessage, error)
}
