package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driven"
	"github.com/custodia-labs/precedent/internal/textindex"
)

// ==================== Keyword Index ====================

// keywordIndex implements driven.KeywordIndex as an inverted index of
// term postings. Writes touch only the postings of one document.
type keywordIndex struct {
	store *Store
	bm25  textindex.BM25
}

var _ driven.KeywordIndex = (*keywordIndex)(nil)

func newKeywordIndex(s *Store) *keywordIndex {
	return &keywordIndex{store: s, bm25: textindex.DefaultBM25()}
}

// Index adds or replaces the document for id.
func (k *keywordIndex) Index(ctx context.Context, id, text string, meta domain.IndexMetadata) error {
	tx, err := k.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := indexDocument(ctx, tx, id, text, meta); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func indexDocument(ctx context.Context, tx *sql.Tx, id, text string, meta domain.IndexMetadata) error {
	tokens := textindex.Tokenize(text)

	if _, err := tx.ExecContext(ctx, "DELETE FROM keyword_postings WHERE doc_id = ?", id); err != nil {
		return fmt.Errorf("clearing postings: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO keyword_docs (id, kind, message_id, decision_id, sender_category, length)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			message_id = excluded.message_id,
			decision_id = excluded.decision_id,
			sender_category = excluded.sender_category,
			length = excluded.length
	`, id, string(meta.Kind), meta.MessageID, meta.DecisionID, string(meta.SenderCategory), len(tokens)); err != nil {
		return fmt.Errorf("saving keyword doc: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO keyword_postings (term, doc_id, tf) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for term, tf := range textindex.TermFrequencies(tokens) {
		if _, err := stmt.ExecContext(ctx, term, id, tf); err != nil {
			return fmt.Errorf("saving posting: %w", err)
		}
	}
	return nil
}

// Search ranks documents matching filter by BM25. Corpus statistics are
// computed over the filtered documents only.
func (k *keywordIndex) Search(
	ctx context.Context, query string, limit int, filter domain.IndexFilter,
) ([]driven.KeywordHit, error) {
	terms := textindex.Terms(query)
	if limit <= 0 || len(terms) == 0 {
		return []driven.KeywordHit{}, nil
	}

	where, filterArgs := filterClause("d", withoutModel(filter))

	stats := textindex.Stats{DocFreq: make(map[string]int, len(terms))}
	if err := k.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(AVG(d.length), 0) FROM keyword_docs d WHERE "+where, filterArgs...,
	).Scan(&stats.N, &stats.AvgDocLen); err != nil {
		return nil, fmt.Errorf("reading corpus stats: %w", err)
	}
	if stats.N == 0 {
		return []driven.KeywordHit{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(terms)), ",")
	args := make([]any, 0, len(terms)+len(filterArgs))
	for _, t := range terms {
		args = append(args, t)
	}
	args = append(args, filterArgs...)

	rows, err := k.store.db.QueryContext(ctx, `
		SELECT p.doc_id, p.term, p.tf, d.length, d.kind, d.message_id, d.decision_id, d.sender_category
		FROM keyword_postings p
		JOIN keyword_docs d ON d.id = p.doc_id
		WHERE p.term IN (`+placeholders+`) AND `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("querying postings: %w", err)
	}
	defer rows.Close()

	type docEntry struct {
		meta   domain.IndexMetadata
		length int
		tf     map[string]int
	}
	docs := make(map[string]*docEntry)
	for rows.Next() {
		var docID, term, kind, category string
		var tf, length int
		var meta domain.IndexMetadata
		if err := rows.Scan(&docID, &term, &tf, &length, &kind, &meta.MessageID, &meta.DecisionID, &category); err != nil {
			return nil, fmt.Errorf("scanning posting: %w", err)
		}
		entry, ok := docs[docID]
		if !ok {
			meta.Kind = domain.IndexKind(kind)
			meta.SenderCategory = domain.SenderCategory(category)
			entry = &docEntry{meta: meta, length: length, tf: make(map[string]int)}
			docs[docID] = entry
		}
		entry.tf[term] = tf
		stats.DocFreq[term]++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating postings: %w", err)
	}

	hits := make([]driven.KeywordHit, 0, len(docs))
	for id, entry := range docs {
		score := k.bm25.Score(terms, entry.tf, entry.length, stats)
		if score <= 0 {
			continue
		}
		hits = append(hits, driven.KeywordHit{ID: id, Score: score, Meta: entry.meta})
	}

	sortKeywordHits(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Delete removes one document and its postings.
func (k *keywordIndex) Delete(ctx context.Context, id string) error {
	tx, err := k.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM keyword_postings WHERE doc_id = ?", id); err != nil {
		return fmt.Errorf("deleting postings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM keyword_docs WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting keyword doc: %w", err)
	}
	return tx.Commit()
}

// DeleteWhere removes every document matching filter.
func (k *keywordIndex) DeleteWhere(ctx context.Context, filter domain.IndexFilter) (int, error) {
	where, args := filterClause("keyword_docs", withoutModel(filter))

	tx, err := k.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM keyword_postings WHERE doc_id IN (SELECT id FROM keyword_docs WHERE "+where+")", args...,
	); err != nil {
		return 0, fmt.Errorf("deleting postings: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM keyword_docs WHERE "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting keyword docs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Rebuild discards the index and indexes docs in one transaction.
func (k *keywordIndex) Rebuild(ctx context.Context, docs []domain.IndexDocument) error {
	tx, err := k.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range []string{"DELETE FROM keyword_postings", "DELETE FROM keyword_docs"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clearing keyword index: %w", err)
		}
	}
	for _, doc := range docs {
		if err := indexDocument(ctx, tx, doc.ID, doc.Text, doc.Meta); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Close is a no-op; the Store owns the connection.
func (k *keywordIndex) Close() error {
	return nil
}

// sortKeywordHits orders by score descending, then id.
func sortKeywordHits(hits []driven.KeywordHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}

// withoutModel clears the model field; keyword documents carry none.
func withoutModel(filter domain.IndexFilter) domain.IndexFilter {
	filter.Model = ""
	return filter
}
