package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/precedent/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/precedent/internal/core/domain"
)

type stubRetriever struct {
	source domain.RetrievalSource
	hits   []domain.RankedHit
	err    error
	delay  time.Duration
}

func (s stubRetriever) Source() domain.RetrievalSource { return s.source }

func (s stubRetriever) Search(ctx context.Context, _ Query, _ int) ([]domain.RankedHit, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.hits, s.err
}

func seedRetrieval(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, harnessOptions{})
	h.ingest(t, "m1", domain.SenderInvestor, "Seed round", "Following up on the seed round term sheet")
	h.ingest(t, "m2", domain.SenderInvestor, "Board deck", "Please send the board deck by Friday")
	h.ingest(t, "m3", domain.SenderSales, "Demo", "We would like a demo of the seed product")
	return h
}

func TestRetrievalService_Retrieve(t *testing.T) {
	h := seedRetrieval(t)

	res, err := h.retrieval.Retrieve(context.Background(), domain.RetrieveOptions{
		Query:          "seed round term sheet",
		SenderCategory: domain.SenderInvestor,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, "m1", res.Candidates[0].Key)
	assert.Equal(t, "lexical", res.Reranker)
	assert.Contains(t, res.SourcesUsed, domain.SourceKeyword)
	assert.Contains(t, res.SourcesUsed, domain.SourceVector)
	assert.NotContains(t, res.SourcesUsed, domain.SourceGraph)

	for _, c := range res.Candidates {
		assert.NotEqual(t, "m3", c.MessageID, "category filter leaked")
		assert.NotEmpty(t, c.Text)
		assert.NotEmpty(t, c.SourceRanks)
	}
}

func TestRetrievalService_IncludesDecisions(t *testing.T) {
	h := seedRetrieval(t)
	d := h.confirm(t, "m1", replyNowWarm)

	res, err := h.retrieval.Retrieve(context.Background(), domain.RetrieveOptions{
		Query:          "seed round",
		SenderCategory: domain.SenderInvestor,
		Kind:           domain.IndexKindDecision,
	})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	c := res.Candidates[0]
	assert.Equal(t, d.ID, c.Key)
	assert.Equal(t, "m1", c.MessageID)
	assert.Contains(t, c.Text, "reply_now/warm")
	assert.Equal(t, []domain.RetrievalSource{domain.SourceVector, domain.SourceKeyword, domain.SourceGraph}, c.Sources())
}

func TestRetrievalService_RejectsBadOptions(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	_, err := h.retrieval.Retrieve(context.Background(), domain.RetrieveOptions{Query: "x", Kind: "memo"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = h.retrieval.Retrieve(context.Background(), domain.RetrieveOptions{Query: "x", SenderCategory: "vip"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRetrievalService_EmptyQuery(t *testing.T) {
	h := seedRetrieval(t)
	res, err := h.retrieval.Retrieve(context.Background(), domain.RetrieveOptions{Query: "   "})
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
	assert.Empty(t, res.SourcesUsed)
}

func TestRetrievalService_FailingSourcesContributeNothing(t *testing.T) {
	messages := memory.NewMessageStore()
	require.NoError(t, messages.SaveMessage(context.Background(), &domain.Message{
		ID: "m1", SenderCategory: domain.SenderSupport, Body: "export broken", CreatedAt: time.Now(),
	}))

	settings := domain.DefaultAppSettings().Retrieval
	settings.SourceTimeout = 30 * time.Millisecond
	svc := NewRetrievalService([]Retriever{
		stubRetriever{source: domain.SourceVector, err: errors.New("index corrupt")},
		stubRetriever{source: domain.SourceKeyword, hits: []domain.RankedHit{chunkHit("m1", 0, 1)}},
		stubRetriever{source: domain.SourceGraph, delay: time.Second, hits: []domain.RankedHit{decisionHit("d1", 1)}},
	}, messages, memory.NewPrecedentGraph(), nil, settings)

	start := time.Now()
	res, err := svc.Retrieve(context.Background(), domain.RetrieveOptions{Query: "export"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, []domain.RetrievalSource{domain.SourceKeyword}, res.SourcesUsed)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "m1", res.Candidates[0].Key)
	assert.Empty(t, res.Reranker)
}

func TestRetrievalService_SkipsDanglingEntries(t *testing.T) {
	messages := memory.NewMessageStore()
	require.NoError(t, messages.SaveMessage(context.Background(), &domain.Message{
		ID: "m1", SenderCategory: domain.SenderSupport, Body: "export broken", CreatedAt: time.Now(),
	}))
	svc := NewRetrievalService([]Retriever{
		stubRetriever{source: domain.SourceKeyword, hits: []domain.RankedHit{
			chunkHit("gone", 0, 1),
			decisionHit("purged", 2),
			chunkHit("m1", 0, 3),
		}},
	}, messages, memory.NewPrecedentGraph(), nil, domain.DefaultAppSettings().Retrieval)

	res, err := svc.Retrieve(context.Background(), domain.RetrieveOptions{Query: "export"})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "m1", res.Candidates[0].Key)
	assert.Equal(t, 1, res.Candidates[0].FusedRank)
}

func TestGraphRetriever(t *testing.T) {
	h := seedRetrieval(t)
	first := h.confirm(t, "m1", replyNowWarm)
	second := h.confirm(t, "m2", replyLaterFormal)

	r := NewGraphRetriever(h.graph)
	hits, err := r.Search(context.Background(), Query{SenderCategory: domain.SenderInvestor}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, second.ID, hits[0].DecisionID)
	assert.Equal(t, first.ID, hits[1].DecisionID)
	assert.Equal(t, 2, hits[1].Rank)

	hits, err = r.Search(context.Background(), Query{Text: "seed"}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = r.Search(context.Background(), Query{SenderCategory: domain.SenderInvestor, Kind: domain.IndexKindChunk}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestVectorRetriever_MatchesQueryModel(t *testing.T) {
	h := seedRetrieval(t)

	// A healthy primary embeds queries in a space nothing was indexed in.
	primary := &countingEmbedding{}
	r := NewVectorRetriever(NewEmbedder(primary, h.embedder.fallback, 0, time.Second), h.vectors)
	hits, err := r.Search(context.Background(), Query{Text: "seed round"}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = NewVectorRetriever(h.embedder, h.vectors).Search(context.Background(), Query{Text: "seed round"}, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}
