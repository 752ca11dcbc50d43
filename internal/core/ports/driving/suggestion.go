package driving

import (
	"context"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

// SuggestionService proposes an action and tone for a message.
type SuggestionService interface {
	// Suggest returns a suggestion for the stored message. It degrades
	// through fallback tiers and only fails if the message cannot be read.
	Suggest(ctx context.Context, messageID string) (*domain.Suggestion, error)
}

// RetrievalService exposes fused retrieval for inspection.
type RetrievalService interface {
	// Retrieve returns fused, reranked candidates with per-source ranks and scores.
	Retrieve(ctx context.Context, opts domain.RetrieveOptions) (*domain.RetrievalResult, error)
}
