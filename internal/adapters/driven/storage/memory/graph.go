package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driven"
	"github.com/custodia-labs/precedent/internal/logger"
)

var _ driven.PrecedentGraph = (*PrecedentGraph)(nil)

// PrecedentGraph is an in-memory driven.PrecedentGraph with the same
// validation rules as the SQLite graph.
type PrecedentGraph struct {
	mu        sync.RWMutex
	decisions map[string]domain.Decision
	seq       map[string]int
	next      int
	nodes     map[string]domain.GraphNode
	edges     []domain.GraphEdge
}

// NewPrecedentGraph creates an empty graph.
func NewPrecedentGraph() *PrecedentGraph {
	return &PrecedentGraph{
		decisions: make(map[string]domain.Decision),
		seq:       make(map[string]int),
		nodes:     make(map[string]domain.GraphNode),
	}
}

// RecordDecision stores the decision and links it into the graph.
func (g *PrecedentGraph) RecordDecision(_ context.Context, d *domain.Decision) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.decisions[d.ID]; ok {
		return fmt.Errorf("decision %s: %w", d.ID, domain.ErrAlreadyExists)
	}

	// Validate everything before mutating so a rejection leaves no trace.
	seen := make(map[string]bool, len(d.PrecedentIDs))
	precedents := make([]string, 0, len(d.PrecedentIDs))
	for _, id := range d.PrecedentIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		prior, ok := g.decisions[id]
		if !ok {
			logger.Warn("precedent graph: %v: decision %s cites unknown precedent %s, dropped",
				domain.ErrIndexInconsistency, d.ID, id)
			continue
		}
		if !prior.CreatedAt.Before(d.CreatedAt) {
			return fmt.Errorf("%w: %s was not created before %s", domain.ErrInvalidPrecedent, id, d.ID)
		}
		precedents = append(precedents, id)
	}

	d.PrecedentIDs = precedents
	stored := *d
	stored.PrecedentIDs = append([]string(nil), precedents...)
	g.decisions[d.ID] = stored
	g.next++
	g.seq[d.ID] = g.next

	decisionNode := domain.NodeID(domain.NodeDecision, d.ID)
	messageNode := domain.NodeID(domain.NodeMessage, d.MessageID)
	actionNode := domain.NodeID(domain.NodeAction, string(d.HumanAction.Action))
	toneNode := domain.NodeID(domain.NodeTone, string(d.HumanAction.Tone))
	categoryNode := domain.NodeID(domain.NodeSenderCategory, string(d.SenderCategory))

	g.addNode(domain.GraphNode{ID: decisionNode, Type: domain.NodeDecision, Label: d.HumanAction.String(), RefID: d.ID})
	g.addNode(domain.GraphNode{ID: messageNode, Type: domain.NodeMessage, Label: d.MessageID, RefID: d.MessageID})
	g.addNode(domain.GraphNode{ID: actionNode, Type: domain.NodeAction, Label: string(d.HumanAction.Action)})
	g.addNode(domain.GraphNode{ID: toneNode, Type: domain.NodeTone, Label: string(d.HumanAction.Tone)})
	g.addNode(domain.GraphNode{ID: categoryNode, Type: domain.NodeSenderCategory, Label: string(d.SenderCategory)})

	g.edges = append(g.edges,
		domain.GraphEdge{SourceID: messageNode, TargetID: decisionNode, Type: domain.EdgeHasDecision},
		domain.GraphEdge{SourceID: decisionNode, TargetID: actionNode, Type: domain.EdgeChoseAction},
		domain.GraphEdge{SourceID: decisionNode, TargetID: toneNode, Type: domain.EdgeChoseTone},
		domain.GraphEdge{SourceID: decisionNode, TargetID: categoryNode, Type: domain.EdgeFromSenderCategory},
	)
	for i, id := range precedents {
		g.edges = append(g.edges, domain.GraphEdge{
			SourceID: decisionNode,
			TargetID: domain.NodeID(domain.NodeDecision, id),
			Type:     domain.EdgeBasedOnPrecedent,
			Position: i + 1,
		})
	}
	return nil
}

func (g *PrecedentGraph) addNode(n domain.GraphNode) {
	if _, ok := g.nodes[n.ID]; !ok {
		g.nodes[n.ID] = n
	}
}

// GetDecision retrieves a decision by ID.
func (g *PrecedentGraph) GetDecision(_ context.Context, id string) (*domain.Decision, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	d, ok := g.decisions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &d, nil
}

// FindByCategory returns decisions for category, newest first.
func (g *PrecedentGraph) FindByCategory(
	ctx context.Context, category domain.SenderCategory, excludeMessageID string, limit int,
) ([]domain.Decision, error) {
	return g.ListDecisions(ctx, domain.DecisionFilter{
		SenderCategory:   category,
		ExcludeMessageID: excludeMessageID,
		Limit:            limit,
	})
}

// TraversePrecedents resolves precedent ids in rank order, skipping dangling ones.
func (g *PrecedentGraph) TraversePrecedents(_ context.Context, decisionID string) ([]domain.Decision, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	d, ok := g.decisions[decisionID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	out := make([]domain.Decision, 0, len(d.PrecedentIDs))
	for _, id := range d.PrecedentIDs {
		prior, ok := g.decisions[id]
		if !ok {
			logger.Warn("precedent graph: %v: decision %s cites missing precedent %s, skipped",
				domain.ErrIndexInconsistency, decisionID, id)
			continue
		}
		out = append(out, prior)
	}
	return out, nil
}

// ListDecisions returns decisions matching filter, newest first.
func (g *PrecedentGraph) ListDecisions(_ context.Context, filter domain.DecisionFilter) ([]domain.Decision, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]domain.Decision, 0, len(g.decisions))
	for _, d := range g.decisions {
		if filter.SenderCategory != "" && d.SenderCategory != filter.SenderCategory {
			continue
		}
		if filter.MessageID != "" && d.MessageID != filter.MessageID {
			continue
		}
		if filter.ExcludeMessageID != "" && d.MessageID == filter.ExcludeMessageID {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return g.seq[out[i].ID] > g.seq[out[j].ID]
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// PurgeDecisions drops decisions, their nodes and every edge touching them.
func (g *PrecedentGraph) PurgeDecisions(_ context.Context) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	prefix := domain.NodeID(domain.NodeDecision, "")
	n := len(g.decisions)

	kept := g.edges[:0]
	for _, e := range g.edges {
		if strings.HasPrefix(e.SourceID, prefix) || strings.HasPrefix(e.TargetID, prefix) {
			continue
		}
		kept = append(kept, e)
	}
	g.edges = kept
	for id, node := range g.nodes {
		if node.Type == domain.NodeDecision {
			delete(g.nodes, id)
		}
	}
	g.decisions = make(map[string]domain.Decision)
	g.seq = make(map[string]int)
	return n, nil
}

// Snapshot returns every node and edge in a stable order.
func (g *PrecedentGraph) Snapshot(_ context.Context) (*domain.Graph, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	graph := &domain.Graph{
		Nodes: make([]domain.GraphNode, 0, len(g.nodes)),
		Edges: append([]domain.GraphEdge(nil), g.edges...),
	}
	for _, n := range g.nodes {
		graph.Nodes = append(graph.Nodes, n)
	}
	sort.Slice(graph.Nodes, func(i, j int) bool {
		if graph.Nodes[i].Type != graph.Nodes[j].Type {
			return graph.Nodes[i].Type < graph.Nodes[j].Type
		}
		return graph.Nodes[i].ID < graph.Nodes[j].ID
	})
	return graph, nil
}

// ForgetDecision removes a decision row but leaves edges pointing at it,
// producing the dangling state a partial restore can leave behind.
func (g *PrecedentGraph) ForgetDecision(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.decisions, id)
}
