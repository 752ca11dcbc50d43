package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

var graphBase = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

func testDecision(id string, category domain.SenderCategory, minute int, precedents ...string) *domain.Decision {
	return &domain.Decision{
		ID:              id,
		MessageID:       "msg-" + id,
		SenderCategory:  category,
		AgentSuggestion: domain.ActionTone{Action: domain.ActionReplyLater, Tone: domain.ToneNeutral},
		HumanAction:     domain.ActionTone{Action: domain.ActionReplyNow, Tone: domain.ToneWarm},
		PrecedentIDs:    precedents,
		Reasoning:       "because",
		CreatedAt:       graphBase.Add(time.Duration(minute) * time.Minute),
	}
}

func TestPrecedentGraph_RecordAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	g := store.PrecedentGraph()

	d := testDecision("d-1", domain.SenderInvestor, 0)
	require.NoError(t, g.RecordDecision(ctx, d))

	got, err := g.GetDecision(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, d.HumanAction, got.HumanAction)
	assert.Equal(t, d.AgentSuggestion, got.AgentSuggestion)
	assert.Equal(t, domain.SenderInvestor, got.SenderCategory)
	assert.Empty(t, got.PrecedentIDs)
	assert.True(t, d.CreatedAt.Equal(got.CreatedAt))

	assert.ErrorIs(t, g.RecordDecision(ctx, testDecision("d-1", domain.SenderInvestor, 1)), domain.ErrAlreadyExists)

	_, err = g.GetDecision(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPrecedentGraph_RecordCreatesNodesAndEdges(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	g := store.PrecedentGraph()

	require.NoError(t, g.RecordDecision(ctx, testDecision("d-1", domain.SenderInvestor, 0)))
	require.NoError(t, g.RecordDecision(ctx, testDecision("d-2", domain.SenderInvestor, 1, "d-1")))

	snap, err := g.Snapshot(ctx)
	require.NoError(t, err)

	types := map[domain.NodeType]int{}
	for _, n := range snap.Nodes {
		types[n.Type]++
	}
	assert.Equal(t, 2, types[domain.NodeDecision])
	assert.Equal(t, 2, types[domain.NodeMessage])
	assert.Equal(t, 1, types[domain.NodeAction], "label nodes are shared")
	assert.Equal(t, 1, types[domain.NodeTone])
	assert.Equal(t, 1, types[domain.NodeSenderCategory])

	assert.Contains(t, snap.Edges, domain.GraphEdge{
		SourceID: "decision:d-2", TargetID: "decision:d-1", Type: domain.EdgeBasedOnPrecedent, Position: 1,
	})
	assert.Contains(t, snap.Edges, domain.GraphEdge{
		SourceID: "message:msg-d-1", TargetID: "decision:d-1", Type: domain.EdgeHasDecision,
	})
	assert.Len(t, snap.Edges, 9)
}

func TestPrecedentGraph_RejectsForwardPrecedent(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	g := store.PrecedentGraph()

	require.NoError(t, g.RecordDecision(ctx, testDecision("later", domain.SenderSales, 10)))

	err := g.RecordDecision(ctx, testDecision("earlier", domain.SenderSales, 5, "later"))
	assert.ErrorIs(t, err, domain.ErrInvalidPrecedent)

	// Nothing of the rejected decision is visible
	_, err = g.GetDecision(ctx, "earlier")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	snap, err := g.Snapshot(ctx)
	require.NoError(t, err)
	for _, n := range snap.Nodes {
		assert.NotEqual(t, "decision:earlier", n.ID)
	}
	for _, e := range snap.Edges {
		assert.NotEqual(t, "decision:earlier", e.SourceID)
	}
}

func TestPrecedentGraph_RejectsSelfReference(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.PrecedentGraph().RecordDecision(context.Background(), testDecision("d-1", domain.SenderSales, 0, "d-1"))
	assert.ErrorIs(t, err, domain.ErrInvalidPrecedent)
}

func TestPrecedentGraph_DropsUnknownAndDuplicatePrecedents(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	g := store.PrecedentGraph()

	require.NoError(t, g.RecordDecision(ctx, testDecision("d-1", domain.SenderSupport, 0)))
	require.NoError(t, g.RecordDecision(ctx, testDecision("d-2", domain.SenderSupport, 1)))

	d := testDecision("d-3", domain.SenderSupport, 2, "d-2", "ghost", "d-1", "d-2")
	require.NoError(t, g.RecordDecision(ctx, d))
	assert.Equal(t, []string{"d-2", "d-1"}, d.PrecedentIDs)

	got, err := g.GetDecision(ctx, "d-3")
	require.NoError(t, err)
	assert.Equal(t, []string{"d-2", "d-1"}, got.PrecedentIDs)
}

func TestPrecedentGraph_FindByCategoryNewestFirst(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	g := store.PrecedentGraph()

	require.NoError(t, g.RecordDecision(ctx, testDecision("i-1", domain.SenderInvestor, 0)))
	require.NoError(t, g.RecordDecision(ctx, testDecision("s-1", domain.SenderSales, 1)))
	require.NoError(t, g.RecordDecision(ctx, testDecision("i-2", domain.SenderInvestor, 2)))
	require.NoError(t, g.RecordDecision(ctx, testDecision("i-3", domain.SenderInvestor, 3)))

	got, err := g.FindByCategory(ctx, domain.SenderInvestor, "", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"i-3", "i-2", "i-1"}, []string{got[0].ID, got[1].ID, got[2].ID})

	limited, err := g.FindByCategory(ctx, domain.SenderInvestor, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := g.FindByCategory(ctx, domain.SenderOther, "", 5)
	require.NoError(t, err)
	assert.Empty(t, none)

	// The excluded message does not consume a slot under the limit.
	excluded, err := g.FindByCategory(ctx, domain.SenderInvestor, "msg-i-3", 2)
	require.NoError(t, err)
	require.Len(t, excluded, 2)
	assert.Equal(t, []string{"i-2", "i-1"}, []string{excluded[0].ID, excluded[1].ID})

	listed, err := g.ListDecisions(ctx, domain.DecisionFilter{ExcludeMessageID: "msg-i-1"})
	require.NoError(t, err)
	assert.Len(t, listed, 3)
}

func TestPrecedentGraph_TraverseSkipsDangling(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	g := store.PrecedentGraph()

	require.NoError(t, g.RecordDecision(ctx, testDecision("d-1", domain.SenderInvestor, 0)))
	require.NoError(t, g.RecordDecision(ctx, testDecision("d-2", domain.SenderInvestor, 1)))
	require.NoError(t, g.RecordDecision(ctx, testDecision("d-3", domain.SenderInvestor, 2, "d-2", "d-1")))

	got, err := g.TraversePrecedents(ctx, "d-3")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "d-2", got[0].ID, "rank order is preserved")

	// Purge one precedent out from under the edge
	_, err = store.db.Exec("DELETE FROM decisions WHERE id = 'd-2'")
	require.NoError(t, err)

	got, err = g.TraversePrecedents(ctx, "d-3")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d-1", got[0].ID)

	_, err = g.TraversePrecedents(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPrecedentGraph_ListDecisions(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	g := store.PrecedentGraph()

	require.NoError(t, g.RecordDecision(ctx, testDecision("a", domain.SenderSales, 0)))
	require.NoError(t, g.RecordDecision(ctx, testDecision("b", domain.SenderSupport, 1)))

	all, err := g.ListDecisions(ctx, domain.DecisionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].ID)

	byMessage, err := g.ListDecisions(ctx, domain.DecisionFilter{MessageID: "msg-a"})
	require.NoError(t, err)
	require.Len(t, byMessage, 1)
	assert.Equal(t, "a", byMessage[0].ID)
}

func TestPrecedentGraph_PurgeKeepsLabelsAndMessages(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	g := store.PrecedentGraph()

	require.NoError(t, g.RecordDecision(ctx, testDecision("d-1", domain.SenderInvestor, 0)))
	require.NoError(t, g.RecordDecision(ctx, testDecision("d-2", domain.SenderInvestor, 1, "d-1")))

	n, err := g.PurgeDecisions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	found, err := g.FindByCategory(ctx, domain.SenderInvestor, "", 10)
	require.NoError(t, err)
	assert.Empty(t, found)

	snap, err := g.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Edges)
	for _, node := range snap.Nodes {
		assert.NotEqual(t, domain.NodeDecision, node.Type)
	}
	assert.NotEmpty(t, snap.Nodes, "message and label nodes survive")
}
