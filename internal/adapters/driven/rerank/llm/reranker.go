// Package llm scores candidates by asking the LLM for relevance.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/precedent/internal/core/ports/driven"
)

var _ driven.Reranker = (*Reranker)(nil)

// maxDocChars truncates each candidate in the prompt.
const maxDocChars = 600

// ErrMalformedScores is returned when the model output is not a JSON array
// with one number per document.
var ErrMalformedScores = errors.New("malformed rerank scores")

// Reranker sends all candidates in one chat call and parses a JSON array of
// scores. Any error leaves the caller's order untouched.
type Reranker struct {
	llm     driven.LLMService
	prompts driven.PromptStore
}

// New creates an LLM reranker. prompts may be nil.
func New(llm driven.LLMService, prompts driven.PromptStore) *Reranker {
	return &Reranker{llm: llm, prompts: prompts}
}

// Name returns "llm".
func (r *Reranker) Name() string {
	return "llm"
}

type rerankInput struct {
	Query     string        `json:"query"`
	Documents []rerankEntry `json:"documents"`
}

type rerankEntry struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Score returns one score per doc.
func (r *Reranker) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	if len(docs) == 0 {
		return []float64{}, nil
	}
	if r.llm == nil {
		return nil, errors.New("llm reranker: no LLM service")
	}

	in := rerankInput{Query: query, Documents: make([]rerankEntry, len(docs))}
	for i, d := range docs {
		if len(d) > maxDocChars {
			d = d[:maxDocChars]
		}
		in.Documents[i] = rerankEntry{Index: i, Text: d}
	}
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode rerank input: %w", err)
	}

	out, err := r.llm.Chat(ctx, []driven.ChatMessage{
		{Role: "system", Content: r.prompt()},
		{Role: "user", Content: string(body)},
	}, driven.ChatOptions{Temperature: 0})
	if err != nil {
		return nil, fmt.Errorf("llm rerank: %w", err)
	}

	return parseScores(out, len(docs))
}

func (r *Reranker) prompt() string {
	if r.prompts != nil {
		if p, err := r.prompts.Load(driven.PromptRerank); err == nil {
			return p
		}
	}
	return driven.DefaultPrompts[driven.PromptRerank]
}

// parseScores extracts the outermost JSON array from out. Models often wrap
// the answer in prose or code fences.
func parseScores(out string, n int) ([]float64, error) {
	start := strings.Index(out, "[")
	end := strings.LastIndex(out, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no array in %q", ErrMalformedScores, truncate(out))
	}

	var scores []float64
	if err := json.Unmarshal([]byte(out[start:end+1]), &scores); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedScores, err)
	}
	if len(scores) != n {
		return nil, fmt.Errorf("%w: got %d scores for %d documents", ErrMalformedScores, len(scores), n)
	}
	return scores, nil
}

func truncate(s string) string {
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}
