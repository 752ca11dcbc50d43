// Package mcp provides an MCP (Model Context Protocol) server adapter for Precedent.
// It lets AI assistants ingest messages, ask for suggestions and confirm decisions.
package mcp

import "errors"

var (
	// ErrMissingSuggestionService is returned when the suggestion service is not provided.
	ErrMissingSuggestionService = errors.New("mcp: suggestion service is required")

	// ErrMissingIngestionService is returned when the ingestion service is not provided.
	ErrMissingIngestionService = errors.New("mcp: ingestion service is required")
)
