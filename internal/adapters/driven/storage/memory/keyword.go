package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driven"
	"github.com/custodia-labs/precedent/internal/textindex"
)

var _ driven.KeywordIndex = (*KeywordIndex)(nil)

type keywordDoc struct {
	tf     map[string]int
	length int
	meta   domain.IndexMetadata
}

// KeywordIndex is an in-memory driven.KeywordIndex scored with BM25.
type KeywordIndex struct {
	mu   sync.RWMutex
	docs map[string]keywordDoc
	bm25 textindex.BM25
}

// NewKeywordIndex creates an empty keyword index.
func NewKeywordIndex() *KeywordIndex {
	return &KeywordIndex{docs: make(map[string]keywordDoc), bm25: textindex.DefaultBM25()}
}

// Index adds or replaces the document for id.
func (k *KeywordIndex) Index(_ context.Context, id, text string, meta domain.IndexMetadata) error {
	tokens := textindex.Tokenize(text)
	k.mu.Lock()
	defer k.mu.Unlock()
	k.docs[id] = keywordDoc{tf: textindex.TermFrequencies(tokens), length: len(tokens), meta: meta}
	return nil
}

// Search ranks the filtered documents by BM25.
func (k *KeywordIndex) Search(
	_ context.Context, query string, limit int, filter domain.IndexFilter,
) ([]driven.KeywordHit, error) {
	hits := []driven.KeywordHit{}
	terms := textindex.Terms(query)
	if limit <= 0 || len(terms) == 0 {
		return hits, nil
	}
	filter.Model = ""

	k.mu.RLock()
	defer k.mu.RUnlock()

	stats := textindex.Stats{DocFreq: make(map[string]int, len(terms))}
	total := 0
	for _, doc := range k.docs {
		if !filter.Matches(doc.meta) {
			continue
		}
		stats.N++
		total += doc.length
		for _, t := range terms {
			if doc.tf[t] > 0 {
				stats.DocFreq[t]++
			}
		}
	}
	if stats.N == 0 {
		return hits, nil
	}
	stats.AvgDocLen = float64(total) / float64(stats.N)

	for id, doc := range k.docs {
		if !filter.Matches(doc.meta) {
			continue
		}
		score := k.bm25.Score(terms, doc.tf, doc.length, stats)
		if score > 0 {
			hits = append(hits, driven.KeywordHit{ID: id, Score: score, Meta: doc.meta})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Delete removes one document.
func (k *KeywordIndex) Delete(_ context.Context, id string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.docs, id)
	return nil
}

// DeleteWhere removes every document matching filter.
func (k *KeywordIndex) DeleteWhere(_ context.Context, filter domain.IndexFilter) (int, error) {
	filter.Model = ""
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for id, doc := range k.docs {
		if filter.Matches(doc.meta) {
			delete(k.docs, id)
			n++
		}
	}
	return n, nil
}

// Rebuild replaces the whole index with docs.
func (k *KeywordIndex) Rebuild(ctx context.Context, docs []domain.IndexDocument) error {
	k.mu.Lock()
	k.docs = make(map[string]keywordDoc, len(docs))
	k.mu.Unlock()
	for _, d := range docs {
		if err := k.Index(ctx, d.ID, d.Text, d.Meta); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op.
func (k *KeywordIndex) Close() error { return nil }

// Len returns the number of indexed documents.
func (k *KeywordIndex) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.docs)
}
