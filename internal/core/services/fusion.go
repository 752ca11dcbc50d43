package services

import (
	"context"
	"sort"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driven"
	"github.com/custodia-labs/precedent/internal/logger"
)

// DefaultRRFConstant dampens rank-1 dominance in reciprocal rank fusion.
const DefaultRRFConstant = 60

// Fuse merges ranked lists with reciprocal rank fusion:
// score = sum over lists of 1/(k+rank), rank 1-based.
// Within one list a key keeps its best rank, so several chunks of one
// message count once. Ties break by best single rank, then key.
func Fuse(lists map[domain.RetrievalSource][]domain.RankedHit, k int) []domain.Candidate {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	byKey := make(map[string]*domain.Candidate)
	for _, src := range domain.AllRetrievalSources() {
		best := make(map[string]domain.RankedHit)
		for _, h := range lists[src] {
			key := h.Key()
			if key == "" {
				continue
			}
			if prev, ok := best[key]; !ok || h.Rank < prev.Rank {
				best[key] = h
			}
		}

		for key, h := range best {
			c, ok := byKey[key]
			if !ok {
				c = &domain.Candidate{
					Key:          key,
					Kind:         h.Kind,
					MessageID:    h.MessageID,
					DecisionID:   h.DecisionID,
					SourceRanks:  make(map[domain.RetrievalSource]int),
					SourceScores: make(map[domain.RetrievalSource]float64),
				}
				byKey[key] = c
			}
			c.SourceRanks[src] = h.Rank
			c.SourceScores[src] = h.Score
			c.FusedScore += 1.0 / float64(k+h.Rank)
		}
	}

	out := make([]domain.Candidate, 0, len(byKey))
	for _, c := range byKey {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		bi, bj := out[i].BestRank(), out[j].BestRank()
		if bi != bj {
			return bi < bj
		}
		return out[i].Key < out[j].Key
	})
	for i := range out {
		out[i].FusedRank = i + 1
	}
	return out
}

// Rerank scores the first topN candidates against query, re-sorts them by
// rerank score with fused rank as the stable tiebreak, and returns topK.
// On reranker failure the fused order is kept.
func Rerank(
	ctx context.Context, reranker driven.Reranker, query string,
	candidates []domain.Candidate, topN, topK int,
) []domain.Candidate {
	if topN <= 0 || topN > len(candidates) {
		topN = len(candidates)
	}
	head := candidates[:topN]

	if reranker != nil && len(head) > 0 {
		docs := make([]string, len(head))
		for i, c := range head {
			docs[i] = c.Text
		}
		scores, err := reranker.Score(ctx, query, docs)
		switch {
		case err != nil:
			logger.Warn("rerank (%s) failed, keeping fused order: %v", reranker.Name(), err)
		case len(scores) != len(head):
			logger.Warn("rerank (%s) returned %d scores for %d candidates, keeping fused order",
				reranker.Name(), len(scores), len(head))
		default:
			head = append([]domain.Candidate(nil), head...)
			for i := range head {
				head[i].RerankScore = scores[i]
			}
			sort.SliceStable(head, func(i, j int) bool {
				return head[i].RerankScore > head[j].RerankScore
			})
		}
	}

	if topK > 0 && topK < len(head) {
		head = head[:topK]
	}
	return head
}
