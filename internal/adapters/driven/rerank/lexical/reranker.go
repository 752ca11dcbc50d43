// Package lexical scores candidates by weighted query term coverage.
package lexical

import (
	"context"

	"github.com/custodia-labs/precedent/internal/core/ports/driven"
	"github.com/custodia-labs/precedent/internal/textindex"
)

var _ driven.Reranker = (*Reranker)(nil)

// bigramBonus is the weight of matched query bigrams relative to coverage.
const bigramBonus = 0.25

// Reranker rewards documents that cover the query's rarer terms and
// repeat its phrasing. Term rarity is measured within the candidate set,
// so a term every candidate shares contributes little.
// Scores are in [0, 1+bigramBonus] and deterministic.
type Reranker struct {
	bm25 textindex.BM25
}

// New creates a lexical reranker.
func New() *Reranker {
	return &Reranker{bm25: textindex.DefaultBM25()}
}

// Name returns "lexical".
func (r *Reranker) Name() string {
	return "lexical"
}

// Score returns one score per doc.
func (r *Reranker) Score(_ context.Context, query string, docs []string) ([]float64, error) {
	scores := make([]float64, len(docs))
	qTokens := textindex.Tokenize(query)
	qTerms := textindex.Unique(qTokens)
	if len(qTerms) == 0 || len(docs) == 0 {
		return scores, nil
	}
	qBigrams := textindex.Unique(textindex.Bigrams(qTokens))

	termSets := make([]map[string]bool, len(docs))
	bigramSets := make([]map[string]bool, len(docs))
	df := make(map[string]int, len(qTerms))
	for i, doc := range docs {
		tokens := textindex.Tokenize(doc)
		termSets[i] = toSet(tokens)
		bigramSets[i] = toSet(textindex.Bigrams(tokens))
		for _, t := range qTerms {
			if termSets[i][t] {
				df[t]++
			}
		}
	}

	weights := make(map[string]float64, len(qTerms))
	var total float64
	for _, t := range qTerms {
		weights[t] = r.bm25.IDF(len(docs), df[t])
		total += weights[t]
	}

	for i := range docs {
		var covered float64
		for _, t := range qTerms {
			if termSets[i][t] {
				covered += weights[t]
			}
		}
		if total > 0 {
			scores[i] = covered / total
		}
		if len(qBigrams) > 0 {
			matched := 0
			for _, b := range qBigrams {
				if bigramSets[i][b] {
					matched++
				}
			}
			scores[i] += bigramBonus * float64(matched) / float64(len(qBigrams))
		}
	}
	return scores, nil
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}
