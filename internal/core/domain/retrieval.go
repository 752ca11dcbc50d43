package domain

import "sort"

// RetrievalSource names one of the independent retrieval backends.
type RetrievalSource string

// Retrieval sources.
const (
	SourceVector  RetrievalSource = "vector"
	SourceKeyword RetrievalSource = "keyword"
	SourceGraph   RetrievalSource = "graph"
)

// AllRetrievalSources returns the sources in canonical order.
func AllRetrievalSources() []RetrievalSource {
	return []RetrievalSource{SourceVector, SourceKeyword, SourceGraph}
}

// RankedHit is one entry in a single source's ranked list.
type RankedHit struct {
	// ID is the index entry id (chunk id or decision id).
	ID string

	Kind       IndexKind
	MessageID  string
	DecisionID string

	// Score is the source-native score (cosine, BM25, recency).
	Score float64

	// Rank is 1-based.
	Rank int
}

// Key returns the fusion key. Chunk hits collapse onto their message so
// several passages of one message count once per list.
func (h RankedHit) Key() string {
	if h.Kind == IndexKindDecision {
		return h.DecisionID
	}
	return h.MessageID
}

// Candidate is a fused retrieval result.
type Candidate struct {
	// Key is the decision id for decision candidates, else the message id.
	Key        string    `json:"key"`
	Kind       IndexKind `json:"kind"`
	MessageID  string    `json:"message_id"`
	DecisionID string    `json:"decision_id,omitempty"`

	// Text is the hydrated candidate text used for reranking.
	Text string `json:"text"`

	// SourceRanks and SourceScores record provenance per source.
	SourceRanks  map[RetrievalSource]int     `json:"source_ranks"`
	SourceScores map[RetrievalSource]float64 `json:"source_scores"`

	FusedScore  float64 `json:"fused_score"`
	FusedRank   int     `json:"fused_rank"`
	RerankScore float64 `json:"rerank_score"`
}

// Sources returns the sources that surfaced this candidate, in canonical order.
func (c *Candidate) Sources() []RetrievalSource {
	out := make([]RetrievalSource, 0, len(c.SourceRanks))
	for src := range c.SourceRanks {
		out = append(out, src)
	}
	order := map[RetrievalSource]int{SourceVector: 0, SourceKeyword: 1, SourceGraph: 2}
	sort.Slice(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out
}

// BestRank returns the best single-source rank, or 0 if none.
func (c *Candidate) BestRank() int {
	best := 0
	for _, r := range c.SourceRanks {
		if best == 0 || r < best {
			best = r
		}
	}
	return best
}

// RetrieveOptions configures a retrieval request.
type RetrieveOptions struct {
	// Query is the text to search for.
	Query string

	// SenderCategory scopes all three sources. The graph source returns
	// nothing without it.
	SenderCategory SenderCategory

	// Kind restricts vector and keyword hits. Empty means both kinds.
	Kind IndexKind

	// TopK caps the final result. Zero uses the configured default.
	TopK int

	// ExcludeMessageID keeps a message and its decisions out of every
	// source before ranking.
	ExcludeMessageID string
}

// RetrievalResult is a fused and reranked candidate list with provenance.
type RetrievalResult struct {
	Candidates  []Candidate       `json:"candidates"`
	SourcesUsed []RetrievalSource `json:"sources_used"`
	Reranker    string            `json:"reranker,omitempty"`
}
