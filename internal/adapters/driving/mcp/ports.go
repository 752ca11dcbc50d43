package mcp

import (
	"github.com/custodia-labs/precedent/internal/core/ports/driving"
)

// Ports aggregates the driving ports used by the MCP server.
type Ports struct {
	// Suggestion proposes an action and tone for a message.
	Suggestion driving.SuggestionService

	// Ingestion stores messages and decisions and serves the graph.
	Ingestion driving.IngestionService

	// Retrieval exposes fused retrieval. Optional.
	Retrieval driving.RetrievalService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Suggestion == nil {
		return ErrMissingSuggestionService
	}
	if p.Ingestion == nil {
		return ErrMissingIngestionService
	}
	return nil
}
