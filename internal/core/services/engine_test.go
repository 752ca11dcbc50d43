package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

const analysisReply = `{"intent": "request information", "topics": ["seed round"], "urgency": "medium"}`

// seedInvestorHistory confirms reply_now/warm for n investor messages.
func seedInvestorHistory(t *testing.T, h *harness, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("inv-%d", i)
		h.ingest(t, id, domain.SenderInvestor, "Seed round update",
			fmt.Sprintf("Checking in on the seed round, update %d on the term sheet", i))
		ids = append(ids, h.confirm(t, id, replyNowWarm).ID)
	}
	return ids
}

func TestDecisionEngine_DefaultTierPerCategory(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	for _, category := range domain.AllSenderCategories() {
		t.Run(string(category), func(t *testing.T) {
			msg := h.ingest(t, "msg-"+string(category), category, "Hello", "A first message from this sender")

			s, err := h.engine.Suggest(context.Background(), msg.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.TierDefault, s.Tier)
			assert.Equal(t, domain.DefaultActionTone(category), s.ActionTone())
			assert.Equal(t, 0, s.PrecedentCount)
			assert.Empty(t, s.PrecedentIDs)
			assert.Contains(t, s.Reasoning, "No prior "+string(category)+" decisions")
			assert.Nil(t, s.Draft)
			assert.Equal(t, msg.ID, s.MessageID)
		})
	}
}

func TestDecisionEngine_LearnsFromPrecedent(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	history := seedInvestorHistory(t, h, 4)
	h.ingest(t, "inv-5", domain.SenderInvestor, "Seed round update", "Any news on the seed round term sheet?")

	s, err := h.engine.Suggest(context.Background(), "inv-5")
	require.NoError(t, err)
	assert.Equal(t, domain.TierPrecedent, s.Tier)
	assert.Equal(t, replyNowWarm, s.ActionTone())
	assert.Equal(t, 4, s.PrecedentCount)
	assert.ElementsMatch(t, history, s.PrecedentIDs)
	assert.Equal(t, "Based on 4 prior investor decisions, you usually chose reply_now/warm.", s.Reasoning)
	assert.Contains(t, s.SourcesUsed, domain.SourceGraph)
	assert.Equal(t, "heuristic", s.Analysis.Source)
}

func TestDecisionEngine_CategoriesDoNotMix(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	seedInvestorHistory(t, h, 3)
	h.ingest(t, "sales-1", domain.SenderSales, "Seed round update", "Checking in on the seed round term sheet")

	s, err := h.engine.Suggest(context.Background(), "sales-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TierDefault, s.Tier)
	assert.Equal(t, domain.DefaultActionTone(domain.SenderSales), s.ActionTone())
}

func TestDecisionEngine_OwnDecisionIsNotPrecedent(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	seedInvestorHistory(t, h, 2)

	s, err := h.engine.Suggest(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, 1, s.PrecedentCount)
	assert.Equal(t, "Based on 1 prior investor decision, you usually chose reply_now/warm.", s.Reasoning)
}

func TestDecisionEngine_OwnDecisionDoesNotTakeTopKSlot(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	history := seedInvestorHistory(t, h, 5)
	h.ingest(t, "inv-x", domain.SenderInvestor, "Seed round update", "Checking in on the seed round term sheet")
	h.confirm(t, "inv-x", replyLaterFormal)

	s, err := h.engine.Suggest(context.Background(), "inv-x")
	require.NoError(t, err)
	assert.Equal(t, 5, s.PrecedentCount)
	assert.ElementsMatch(t, history, s.PrecedentIDs)
	assert.Equal(t, replyNowWarm, s.ActionTone())
}

func TestDecisionEngine_SQLiteScenarios(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessOptions{sqlite: true})
	history := seedInvestorHistory(t, h, 4)
	h.ingest(t, "inv-5", domain.SenderInvestor, "Seed round update", "Any news on the seed round term sheet?")

	s, err := h.engine.Suggest(ctx, "inv-5")
	require.NoError(t, err)
	assert.Equal(t, domain.TierPrecedent, s.Tier)
	assert.Equal(t, replyNowWarm, s.ActionTone())
	assert.Equal(t, 4, s.PrecedentCount)
	assert.ElementsMatch(t, history, s.PrecedentIDs)
	assert.Contains(t, s.SourcesUsed, domain.SourceGraph)

	n, err := h.ingestion.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	after, err := h.engine.Suggest(ctx, "inv-5")
	require.NoError(t, err)
	assert.Equal(t, domain.TierDefault, after.Tier)
	assert.Equal(t, 0, after.PrecedentCount)
	assert.Equal(t, domain.DefaultActionTone(domain.SenderInvestor), after.ActionTone())
}

func TestDecisionEngine_ResetForgetsPrecedent(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	seedInvestorHistory(t, h, 3)
	h.ingest(t, "inv-next", domain.SenderInvestor, "Seed round update", "Seed round term sheet again")

	before, err := h.engine.Suggest(context.Background(), "inv-next")
	require.NoError(t, err)
	require.Equal(t, 3, before.PrecedentCount)

	n, err := h.ingestion.Reset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	after, err := h.engine.Suggest(context.Background(), "inv-next")
	require.NoError(t, err)
	assert.Equal(t, 0, after.PrecedentCount)
	assert.Equal(t, domain.TierDefault, after.Tier)
}

func TestDecisionEngine_Idempotent(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	seedInvestorHistory(t, h, 3)
	h.ingest(t, "inv-next", domain.SenderInvestor, "Seed round update", "Seed round term sheet again")

	first, err := h.engine.Suggest(context.Background(), "inv-next")
	require.NoError(t, err)
	second, err := h.engine.Suggest(context.Background(), "inv-next")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDecisionEngine_EmbeddingUnavailable(t *testing.T) {
	h := newHarness(t, harnessOptions{embedding: &failingEmbedding{}})
	seedInvestorHistory(t, h, 2)
	h.ingest(t, "inv-next", domain.SenderInvestor, "Seed round update", "Seed round term sheet again")

	s, err := h.engine.Suggest(context.Background(), "inv-next")
	require.NoError(t, err)
	assert.Equal(t, domain.TierPrecedent, s.Tier)
	assert.Equal(t, 2, s.PrecedentCount)
	assert.Contains(t, s.SourcesUsed, domain.SourceKeyword)
	assert.Contains(t, s.SourcesUsed, domain.SourceGraph)
}

func TestDecisionEngine_ReasonedTierWithDraft(t *testing.T) {
	llm := &mockLLM{replies: []string{
		analysisReply,
		`Sure: {"action": "Reply_Now", "tone": "warm", "reasoning": "They always get a quick, friendly answer."}`,
		"  Hi, thanks for checking in. The term sheet is on its way.  ",
	}}
	h := newHarness(t, harnessOptions{llm: llm})
	seedInvestorHistory(t, h, 2)
	h.ingest(t, "inv-next", domain.SenderInvestor, "Seed round update", "Seed round term sheet again")

	s, err := h.engine.Suggest(context.Background(), "inv-next")
	require.NoError(t, err)
	assert.Equal(t, domain.TierReasoned, s.Tier)
	assert.Equal(t, replyNowWarm, s.ActionTone())
	assert.Equal(t, "They always get a quick, friendly answer.", s.Reasoning)
	require.NotNil(t, s.Draft)
	assert.Equal(t, "Hi, thanks for checking in. The term sheet is on its way.", *s.Draft)
	assert.Equal(t, "llm", s.Analysis.Source)
	assert.Equal(t, "request information", s.Analysis.Intent)
	assert.Equal(t, 2, s.PrecedentCount)
}

func TestDecisionEngine_NoDraftWhenIgnoring(t *testing.T) {
	llm := &mockLLM{replies: []string{
		analysisReply,
		`{"action": "ignore", "tone": "neutral", "reasoning": "Nothing to answer."}`,
	}, reply: "should not be used"}
	h := newHarness(t, harnessOptions{llm: llm})
	seedInvestorHistory(t, h, 1)
	h.ingest(t, "inv-next", domain.SenderInvestor, "FYI", "Seed round term sheet for your records")

	s, err := h.engine.Suggest(context.Background(), "inv-next")
	require.NoError(t, err)
	assert.Equal(t, domain.TierReasoned, s.Tier)
	assert.Equal(t, ignoreNeutral, s.ActionTone())
	assert.Nil(t, s.Draft)
}

func TestDecisionEngine_InvalidLLMChoiceFallsBack(t *testing.T) {
	llm := &mockLLM{replies: []string{
		analysisReply,
		`{"action": "archive", "tone": "warm", "reasoning": "Archive it."}`,
	}}
	h := newHarness(t, harnessOptions{llm: llm})
	seedInvestorHistory(t, h, 2)
	h.ingest(t, "inv-next", domain.SenderInvestor, "Seed round update", "Seed round term sheet again")

	s, err := h.engine.Suggest(context.Background(), "inv-next")
	require.NoError(t, err)
	assert.Equal(t, domain.TierPrecedent, s.Tier)
	assert.Equal(t, replyNowWarm, s.ActionTone())
	assert.Nil(t, s.Draft)
}

func TestDecisionEngine_SkipsLLMWithoutPrecedent(t *testing.T) {
	llm := &mockLLM{replies: []string{analysisReply}, reply: `{"action": "ignore", "tone": "formal"}`}
	h := newHarness(t, harnessOptions{llm: llm})
	h.ingest(t, "sup-1", domain.SenderSupport, "Export broken", "The export button spins forever")

	s, err := h.engine.Suggest(context.Background(), "sup-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TierDefault, s.Tier)
	assert.Equal(t, domain.DefaultActionTone(domain.SenderSupport), s.ActionTone())
}

func TestDecisionEngine_RequestCeiling(t *testing.T) {
	settings := domain.DefaultAppSettings().Engine
	settings.RequestCeiling = 50 * time.Millisecond
	llm := &mockLLM{delay: 2 * time.Second, reply: analysisReply}
	h := newHarness(t, harnessOptions{llm: llm, engine: &settings})
	seedInvestorHistory(t, h, 2)
	h.ingest(t, "inv-next", domain.SenderInvestor, "Seed round update", "Seed round term sheet again")

	start := time.Now()
	s, err := h.engine.Suggest(context.Background(), "inv-next")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.NotEqual(t, domain.TierReasoned, s.Tier)
	assert.Equal(t, "heuristic", s.Analysis.Source)
	assert.Nil(t, s.Draft)
}

func TestDecisionEngine_DanglingPrecedentIgnored(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ids := seedInvestorHistory(t, h, 2)
	h.graph.ForgetDecision(ids[0])
	h.ingest(t, "inv-next", domain.SenderInvestor, "Seed round update", "Seed round term sheet again")

	s, err := h.engine.Suggest(context.Background(), "inv-next")
	require.NoError(t, err)
	assert.Equal(t, 1, s.PrecedentCount)
	assert.Equal(t, []string{ids[1]}, s.PrecedentIDs)
}

func TestDecisionEngine_UnknownMessage(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	_, err := h.engine.Suggest(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
