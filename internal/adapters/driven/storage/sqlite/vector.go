package sqlite

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driven"
	"github.com/custodia-labs/precedent/internal/vectormath"
)

// ==================== Vector Index ====================

// vectorIndex implements driven.VectorIndex as an exact scan over
// float32 blobs. The filter is applied in SQL before ranking.
type vectorIndex struct {
	store *Store
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

// Upsert inserts or replaces the vector for id.
func (v *vectorIndex) Upsert(ctx context.Context, id string, vector []float32, meta domain.IndexMetadata) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector for %s", domain.ErrInvalidInput, id)
	}

	_, err := v.store.db.ExecContext(ctx, `
		INSERT INTO vectors (id, kind, message_id, decision_id, sender_category, model, dims, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			message_id = excluded.message_id,
			decision_id = excluded.decision_id,
			sender_category = excluded.sender_category,
			model = excluded.model,
			dims = excluded.dims,
			vector = excluded.vector
	`, id, string(meta.Kind), meta.MessageID, meta.DecisionID, string(meta.SenderCategory),
		meta.Model, len(vector), float32SliceToBytes(vector))
	if err != nil {
		return fmt.Errorf("upserting vector: %w", err)
	}
	return nil
}

// Query returns the k most similar entries that match filter.
func (v *vectorIndex) Query(
	ctx context.Context, vector []float32, k int, filter domain.IndexFilter,
) ([]driven.VectorHit, error) {
	if k <= 0 || len(vector) == 0 {
		return []driven.VectorHit{}, nil
	}

	where, args := filterClause("v", filter)
	args = append(args, len(vector))

	rows, err := v.store.db.QueryContext(ctx, `
		SELECT v.id, v.kind, v.message_id, v.decision_id, v.sender_category, v.model, v.vector
		FROM vectors v
		WHERE `+where+` AND v.dims = ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	hits := []driven.VectorHit{}
	for rows.Next() {
		var hit driven.VectorHit
		var kind, category string
		var blob []byte
		if err := rows.Scan(&hit.ID, &kind, &hit.Meta.MessageID, &hit.Meta.DecisionID,
			&category, &hit.Meta.Model, &blob); err != nil {
			return nil, fmt.Errorf("scanning vector: %w", err)
		}
		hit.Meta.Kind = domain.IndexKind(kind)
		hit.Meta.SenderCategory = domain.SenderCategory(category)
		hit.Similarity = vectormath.Cosine(vector, bytesToFloat32Slice(blob))
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
	}

	sortVectorHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Delete removes one entry.
func (v *vectorIndex) Delete(ctx context.Context, id string) error {
	if _, err := v.store.db.ExecContext(ctx, "DELETE FROM vectors WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting vector: %w", err)
	}
	return nil
}

// DeleteWhere removes every entry matching filter.
func (v *vectorIndex) DeleteWhere(ctx context.Context, filter domain.IndexFilter) (int, error) {
	where, args := filterClause("vectors", filter)
	res, err := v.store.db.ExecContext(ctx, "DELETE FROM vectors WHERE "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting vectors: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Count returns the number of entries matching filter.
func (v *vectorIndex) Count(ctx context.Context, filter domain.IndexFilter) (int, error) {
	where, args := filterClause("v", filter)
	var n int
	if err := v.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors v WHERE "+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting vectors: %w", err)
	}
	return n, nil
}

// Close is a no-op; the Store owns the connection.
func (v *vectorIndex) Close() error {
	return nil
}

// sortVectorHits orders by similarity descending, then id.
func sortVectorHits(hits []driven.VectorHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ID < hits[j].ID
	})
}
