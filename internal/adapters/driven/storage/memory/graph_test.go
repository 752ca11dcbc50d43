package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func decision(id string, category domain.SenderCategory, minute int, precedents ...string) *domain.Decision {
	return &domain.Decision{
		ID:              id,
		MessageID:       "msg-" + id,
		SenderCategory:  category,
		AgentSuggestion: domain.ActionTone{Action: domain.ActionReplyNow, Tone: domain.ToneNeutral},
		HumanAction:     domain.ActionTone{Action: domain.ActionReplyNow, Tone: domain.ToneWarm},
		PrecedentIDs:    precedents,
		CreatedAt:       base.Add(time.Duration(minute) * time.Minute),
	}
}

func TestPrecedentGraph_RecordBuildsEdges(t *testing.T) {
	ctx := context.Background()
	g := NewPrecedentGraph()

	require.NoError(t, g.RecordDecision(ctx, decision("d-1", domain.SenderInvestor, 0)))
	require.NoError(t, g.RecordDecision(ctx, decision("d-2", domain.SenderInvestor, 1, "d-1")))

	snap, err := g.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Edges, 9)
	// two decisions, two messages, one action, one tone, one category
	assert.Len(t, snap.Nodes, 7)

	var precedentEdges []domain.GraphEdge
	for _, e := range snap.Edges {
		if e.Type == domain.EdgeBasedOnPrecedent {
			precedentEdges = append(precedentEdges, e)
		}
		if e.Type == domain.EdgeHasDecision {
			assert.True(t, strings.HasPrefix(e.SourceID, domain.NodeID(domain.NodeMessage, "")))
		}
	}
	require.Len(t, precedentEdges, 1)
	assert.Equal(t, "decision:d-2", precedentEdges[0].SourceID)
	assert.Equal(t, "decision:d-1", precedentEdges[0].TargetID)
	assert.Equal(t, 1, precedentEdges[0].Position)
}

func TestPrecedentGraph_Validation(t *testing.T) {
	ctx := context.Background()
	g := NewPrecedentGraph()
	require.NoError(t, g.RecordDecision(ctx, decision("d-1", domain.SenderSales, 5)))

	err := g.RecordDecision(ctx, decision("d-0", domain.SenderSales, 5, "d-1"))
	assert.ErrorIs(t, err, domain.ErrInvalidPrecedent, "same timestamp is not strictly earlier")

	_, err = g.GetDecision(ctx, "d-0")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = g.RecordDecision(ctx, decision("d-1", domain.SenderSales, 9))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	d := decision("d-2", domain.SenderSales, 6, "d-1", "ghost", "d-1")
	require.NoError(t, g.RecordDecision(ctx, d))
	assert.Equal(t, []string{"d-1"}, d.PrecedentIDs)
}

func TestPrecedentGraph_OrderingAndTraversal(t *testing.T) {
	ctx := context.Background()
	g := NewPrecedentGraph()
	require.NoError(t, g.RecordDecision(ctx, decision("a", domain.SenderSupport, 0)))
	require.NoError(t, g.RecordDecision(ctx, decision("b", domain.SenderSupport, 0)))
	require.NoError(t, g.RecordDecision(ctx, decision("c", domain.SenderSupport, 2, "b", "a")))
	require.NoError(t, g.RecordDecision(ctx, decision("x", domain.SenderSales, 3)))

	found, err := g.FindByCategory(ctx, domain.SenderSupport, "", 0)
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{found[0].ID, found[1].ID, found[2].ID})

	limited, err := g.FindByCategory(ctx, domain.SenderSupport, "msg-c", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, []string{limited[0].ID, limited[1].ID})

	g.ForgetDecision("b")
	prior, err := g.TraversePrecedents(ctx, "c")
	require.NoError(t, err)
	require.Len(t, prior, 1)
	assert.Equal(t, "a", prior[0].ID)

	_, err = g.TraversePrecedents(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPrecedentGraph_Purge(t *testing.T) {
	ctx := context.Background()
	g := NewPrecedentGraph()
	require.NoError(t, g.RecordDecision(ctx, decision("a", domain.SenderOther, 0)))
	require.NoError(t, g.RecordDecision(ctx, decision("b", domain.SenderOther, 1, "a")))

	n, err := g.PurgeDecisions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	snap, err := g.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Edges)
	for _, node := range snap.Nodes {
		assert.NotEqual(t, domain.NodeDecision, node.Type)
	}

	list, err := g.ListDecisions(ctx, domain.DecisionFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}
