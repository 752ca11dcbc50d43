package driven

import "context"

// Reranker scores (query, document) pairs for a second-pass ordering.
type Reranker interface {
	// Name identifies the reranker in logs and debug output.
	Name() string

	// Score returns one relevance score per doc, higher is better.
	// An error means the caller keeps its existing order.
	Score(ctx context.Context, query string, docs []string) ([]float64, error)
}
