package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

func TestSuggestCmd_Use(t *testing.T) {
	assert.Equal(t, "suggest [message-id]", suggestCmd.Use)
	assert.Contains(t, suggestCmd.Long, "precedent")
}

func TestSuggestCmd_RequiresExactlyOneArg(t *testing.T) {
	_, err := execute(t, "", "suggest")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSuggestCmd_PrintsSuggestion(t *testing.T) {
	_, restore := setupTestServices()
	defer restore()

	out, err := execute(t, "", "suggest", "m1")

	require.NoError(t, err)
	assert.Contains(t, out, "reply_now/warm")
	assert.Contains(t, out, "precedent")
	assert.Contains(t, out, "Based on 3 prior investor decisions")
	assert.Contains(t, out, "dec-1, dec-2, dec-3")
	assert.Contains(t, out, "keyword, graph")
	assert.Contains(t, out, "funding")
	assert.Contains(t, out, "Thanks for the update")
}

func TestSuggestCmd_JSON(t *testing.T) {
	_, restore := setupTestServices()
	defer restore()

	out, err := execute(t, "", "suggest", "--json", "m1")

	require.NoError(t, err)
	assert.Contains(t, out, `"message_id": "m1"`)
	assert.Contains(t, out, `"tier": "precedent"`)
	assert.Contains(t, out, `"action": "reply_now"`)
}

func TestSuggestCmd_Error(t *testing.T) {
	ts, restore := setupTestServices()
	defer restore()
	ts.suggestion.err = errors.New("message m9: not found")

	_, err := execute(t, "", "suggest", "m9")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "suggest failed")
}

func TestRetrieveCmd_PrintsCandidates(t *testing.T) {
	ts, restore := setupTestServices()
	defer restore()

	out, err := execute(t, "", "retrieve", "seed round", "-c", "investor", "-k", "chunk", "-n", "3")

	require.NoError(t, err)
	assert.Equal(t, domain.RetrieveOptions{
		Query:          "seed round",
		SenderCategory: domain.SenderInvestor,
		Kind:           domain.IndexKindChunk,
		TopK:           3,
	}, ts.retrieval.opts)
	assert.Contains(t, out, "[1] chunk chunk:m1_0")
	assert.Contains(t, out, "keyword #1, vector #2")
	assert.Contains(t, out, "Sources: vector, keyword")
	assert.Contains(t, out, "Reranker: lexical")
}

func TestRetrieveCmd_Empty(t *testing.T) {
	ts, restore := setupTestServices()
	defer restore()
	ts.retrieval.result = &domain.RetrievalResult{}

	out, err := execute(t, "", "retrieve", "nothing")

	require.NoError(t, err)
	assert.Contains(t, out, "No candidates found.")
}

func TestFormatRanks(t *testing.T) {
	got := formatRanks(map[domain.RetrievalSource]int{
		domain.SourceVector:  3,
		domain.SourceGraph:   1,
		domain.SourceKeyword: 2,
	})
	assert.Equal(t, "graph #1, keyword #2, vector #3", got)
}
