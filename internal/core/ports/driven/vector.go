package driven

import (
	"context"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

// VectorIndex stores (id, vector, metadata) triples and answers exact
// cosine k-nearest-neighbour queries. Vectors must survive a restart.
type VectorIndex interface {
	// Upsert inserts or replaces the vector for id.
	Upsert(ctx context.Context, id string, vector []float32, meta domain.IndexMetadata) error

	// Query returns up to k entries matching filter, by cosine similarity
	// descending. The filter is applied before ranking. An empty index
	// returns an empty slice.
	Query(ctx context.Context, vector []float32, k int, filter domain.IndexFilter) ([]VectorHit, error)

	// Delete removes one entry. Missing ids are not an error.
	Delete(ctx context.Context, id string) error

	// DeleteWhere removes every entry matching filter.
	DeleteWhere(ctx context.Context, filter domain.IndexFilter) (int, error)

	// Count returns the number of entries matching filter.
	Count(ctx context.Context, filter domain.IndexFilter) (int, error)

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ID is the matched entry.
	ID string

	// Similarity is the cosine similarity score (-1 to 1).
	Similarity float64

	// Meta is the stored metadata.
	Meta domain.IndexMetadata
}
