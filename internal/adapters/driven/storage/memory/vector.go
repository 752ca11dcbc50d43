package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driven"
	"github.com/custodia-labs/precedent/internal/vectormath"
)

var _ driven.VectorIndex = (*VectorIndex)(nil)

type vectorEntry struct {
	vector []float32
	meta   domain.IndexMetadata
}

// VectorIndex is an in-memory driven.VectorIndex using exact cosine scan.
type VectorIndex struct {
	mu      sync.RWMutex
	entries map[string]vectorEntry
}

// NewVectorIndex creates an empty vector index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{entries: make(map[string]vectorEntry)}
}

// Upsert inserts or replaces the vector for id.
func (v *VectorIndex) Upsert(_ context.Context, id string, vector []float32, meta domain.IndexMetadata) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector for %s", domain.ErrInvalidInput, id)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries[id] = vectorEntry{vector: append([]float32(nil), vector...), meta: meta}
	return nil
}

// Query filters first, then ranks by cosine similarity.
func (v *VectorIndex) Query(
	_ context.Context, vector []float32, k int, filter domain.IndexFilter,
) ([]driven.VectorHit, error) {
	hits := []driven.VectorHit{}
	if k <= 0 || len(vector) == 0 {
		return hits, nil
	}

	v.mu.RLock()
	for id, e := range v.entries {
		if len(e.vector) != len(vector) || !filter.Matches(e.meta) {
			continue
		}
		hits = append(hits, driven.VectorHit{ID: id, Similarity: vectormath.Cosine(vector, e.vector), Meta: e.meta})
	}
	v.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Delete removes one entry.
func (v *VectorIndex) Delete(_ context.Context, id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.entries, id)
	return nil
}

// DeleteWhere removes every entry matching filter.
func (v *VectorIndex) DeleteWhere(_ context.Context, filter domain.IndexFilter) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for id, e := range v.entries {
		if filter.Matches(e.meta) {
			delete(v.entries, id)
			n++
		}
	}
	return n, nil
}

// Count returns the number of entries matching filter.
func (v *VectorIndex) Count(_ context.Context, filter domain.IndexFilter) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	n := 0
	for _, e := range v.entries {
		if filter.Matches(e.meta) {
			n++
		}
	}
	return n, nil
}

// Close is a no-op.
func (v *VectorIndex) Close() error { return nil }
