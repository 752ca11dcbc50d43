package driven

import (
	"context"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

// KeywordIndex provides BM25 full-text search over chunk and decision text.
// Writes are incremental; Rebuild is only ever called explicitly.
type KeywordIndex interface {
	// Index adds or replaces the document for id.
	Index(ctx context.Context, id, text string, meta domain.IndexMetadata) error

	// Search returns up to k documents matching filter, by BM25 score
	// descending. Corpus statistics are computed over the filtered set.
	Search(ctx context.Context, query string, k int, filter domain.IndexFilter) ([]KeywordHit, error)

	// Delete removes one document. Missing ids are not an error.
	Delete(ctx context.Context, id string) error

	// DeleteWhere removes every document matching filter.
	DeleteWhere(ctx context.Context, filter domain.IndexFilter) (int, error)

	// Rebuild discards the index and indexes docs from scratch.
	Rebuild(ctx context.Context, docs []domain.IndexDocument) error

	// Close releases resources.
	Close() error
}

// KeywordHit represents a keyword search result.
type KeywordHit struct {
	// ID is the matched document.
	ID string

	// Score is the BM25 score.
	Score float64

	// Meta is the stored metadata.
	Meta domain.IndexMetadata
}
