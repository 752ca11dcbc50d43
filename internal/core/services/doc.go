// Package services holds the core of precedent: ingestion into the record
// store and indices, fused retrieval, and the tiered decision engine that
// turns retrieved precedent into a suggestion.
//
// Services depend only on driven ports. Every optional collaborator (LLM,
// remote embeddings, reranker) may be nil or failing; the services degrade
// instead of returning errors.
package services
