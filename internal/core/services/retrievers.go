package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driven"
)

// Query is what every retriever searches for.
type Query struct {
	Text           string
	SenderCategory domain.SenderCategory

	// Kind restricts vector and keyword hits. Empty means both kinds.
	Kind domain.IndexKind

	// ExcludeMessageID is filtered out inside each source, never after.
	ExcludeMessageID string
}

// Retriever is one independent retrieval source. Each returns its own
// ranked list with 1-based ranks; failures are handled by the caller.
type Retriever interface {
	Source() domain.RetrievalSource
	Search(ctx context.Context, q Query, k int) ([]domain.RankedHit, error)
}

// VectorRetriever embeds the query and runs a filtered cosine kNN.
type VectorRetriever struct {
	embedder *Embedder
	index    driven.VectorIndex
}

// NewVectorRetriever creates a vector retriever.
func NewVectorRetriever(embedder *Embedder, index driven.VectorIndex) *VectorRetriever {
	return &VectorRetriever{embedder: embedder, index: index}
}

// Source returns SourceVector.
func (r *VectorRetriever) Source() domain.RetrievalSource { return domain.SourceVector }

// Search only matches vectors from the model that embedded the query.
func (r *VectorRetriever) Search(ctx context.Context, q Query, k int) ([]domain.RankedHit, error) {
	emb := r.embedder.Embed(ctx, q.Text)
	hits, err := r.index.Query(ctx, emb.Vector, k, domain.IndexFilter{
		Kind:             q.Kind,
		SenderCategory:   q.SenderCategory,
		Model:            emb.Model,
		ExcludeMessageID: q.ExcludeMessageID,
	})
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	out := make([]domain.RankedHit, len(hits))
	for i, h := range hits {
		out[i] = domain.RankedHit{
			ID:         h.ID,
			Kind:       h.Meta.Kind,
			MessageID:  h.Meta.MessageID,
			DecisionID: h.Meta.DecisionID,
			Score:      h.Similarity,
			Rank:       i + 1,
		}
	}
	return out, nil
}

// KeywordRetriever runs a filtered BM25 search.
type KeywordRetriever struct {
	index driven.KeywordIndex
}

// NewKeywordRetriever creates a keyword retriever.
func NewKeywordRetriever(index driven.KeywordIndex) *KeywordRetriever {
	return &KeywordRetriever{index: index}
}

// Source returns SourceKeyword.
func (r *KeywordRetriever) Source() domain.RetrievalSource { return domain.SourceKeyword }

// Search returns BM25 hits.
func (r *KeywordRetriever) Search(ctx context.Context, q Query, k int) ([]domain.RankedHit, error) {
	hits, err := r.index.Search(ctx, q.Text, k, domain.IndexFilter{
		Kind:             q.Kind,
		SenderCategory:   q.SenderCategory,
		ExcludeMessageID: q.ExcludeMessageID,
	})
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	out := make([]domain.RankedHit, len(hits))
	for i, h := range hits {
		out[i] = domain.RankedHit{
			ID:         h.ID,
			Kind:       h.Meta.Kind,
			MessageID:  h.Meta.MessageID,
			DecisionID: h.Meta.DecisionID,
			Score:      h.Score,
			Rank:       i + 1,
		}
	}
	return out, nil
}

// GraphRetriever walks the sender-category node of the precedent graph.
// Its ranking is recency: newest decision first.
type GraphRetriever struct {
	graph driven.PrecedentGraph
}

// NewGraphRetriever creates a graph retriever.
func NewGraphRetriever(graph driven.PrecedentGraph) *GraphRetriever {
	return &GraphRetriever{graph: graph}
}

// Source returns SourceGraph.
func (r *GraphRetriever) Source() domain.RetrievalSource { return domain.SourceGraph }

// Search returns nothing without a sender category or for chunk-only queries.
func (r *GraphRetriever) Search(ctx context.Context, q Query, k int) ([]domain.RankedHit, error) {
	if q.SenderCategory == "" || q.Kind == domain.IndexKindChunk {
		return []domain.RankedHit{}, nil
	}

	decisions, err := r.graph.FindByCategory(ctx, q.SenderCategory, q.ExcludeMessageID, k)
	if err != nil {
		return nil, fmt.Errorf("graph traversal: %w", err)
	}

	out := make([]domain.RankedHit, len(decisions))
	for i, d := range decisions {
		out[i] = domain.RankedHit{
			ID:         d.ID,
			Kind:       domain.IndexKindDecision,
			MessageID:  d.MessageID,
			DecisionID: d.ID,
			Score:      float64(d.CreatedAt.Unix()),
			Rank:       i + 1,
		}
	}
	return out, nil
}
