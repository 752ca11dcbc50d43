package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driven"
	"github.com/custodia-labs/precedent/internal/logger"
)

// ==================== Precedent Graph ====================

const decisionColumns = `id, message_id, sender_category, suggested_action, suggested_tone,
	human_action, human_tone, precedent_ids, reasoning, created_at`

// precedentGraph implements driven.PrecedentGraph over relational
// node and edge tables.
type precedentGraph struct {
	store *Store
}

var _ driven.PrecedentGraph = (*precedentGraph)(nil)

// RecordDecision writes a decision with its nodes and edges in one transaction.
// On success d.PrecedentIDs holds the precedents actually recorded.
func (g *precedentGraph) RecordDecision(ctx context.Context, d *domain.Decision) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	tx, err := g.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM decisions WHERE id = ?", d.ID).Scan(&exists); err != nil {
		return fmt.Errorf("checking decision: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("decision %s: %w", d.ID, domain.ErrAlreadyExists)
	}

	precedents, err := resolvePrecedents(ctx, tx, d)
	if err != nil {
		return err
	}

	precedentJSON, err := json.Marshal(precedents)
	if err != nil {
		return fmt.Errorf("marshalling precedents: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO decisions (`+decisionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.MessageID, string(d.SenderCategory),
		string(d.AgentSuggestion.Action), string(d.AgentSuggestion.Tone),
		string(d.HumanAction.Action), string(d.HumanAction.Tone),
		string(precedentJSON), d.Reasoning, d.CreatedAt.UnixNano()); err != nil {
		return fmt.Errorf("saving decision: %w", err)
	}

	decisionNode := domain.NodeID(domain.NodeDecision, d.ID)
	nodes := []domain.GraphNode{
		{ID: decisionNode, Type: domain.NodeDecision, Label: d.HumanAction.String(), RefID: d.ID},
		{ID: domain.NodeID(domain.NodeMessage, d.MessageID), Type: domain.NodeMessage, Label: d.MessageID, RefID: d.MessageID},
		{ID: domain.NodeID(domain.NodeAction, string(d.HumanAction.Action)), Type: domain.NodeAction, Label: string(d.HumanAction.Action)},
		{ID: domain.NodeID(domain.NodeTone, string(d.HumanAction.Tone)), Type: domain.NodeTone, Label: string(d.HumanAction.Tone)},
		{ID: domain.NodeID(domain.NodeSenderCategory, string(d.SenderCategory)), Type: domain.NodeSenderCategory, Label: string(d.SenderCategory)},
	}
	for _, n := range nodes {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO graph_nodes (id, node_type, label, ref_id) VALUES (?, ?, ?, ?)
		`, n.ID, string(n.Type), n.Label, n.RefID); err != nil {
			return fmt.Errorf("saving node %s: %w", n.ID, err)
		}
	}

	edges := []domain.GraphEdge{
		{SourceID: nodes[1].ID, TargetID: decisionNode, Type: domain.EdgeHasDecision},
		{SourceID: decisionNode, TargetID: nodes[2].ID, Type: domain.EdgeChoseAction},
		{SourceID: decisionNode, TargetID: nodes[3].ID, Type: domain.EdgeChoseTone},
		{SourceID: decisionNode, TargetID: nodes[4].ID, Type: domain.EdgeFromSenderCategory},
	}
	for i, id := range precedents {
		edges = append(edges, domain.GraphEdge{
			SourceID: decisionNode,
			TargetID: domain.NodeID(domain.NodeDecision, id),
			Type:     domain.EdgeBasedOnPrecedent,
			Position: i + 1,
		})
	}
	for _, e := range edges {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO graph_edges (source_id, target_id, edge_type, position) VALUES (?, ?, ?, ?)
		`, e.SourceID, e.TargetID, string(e.Type), e.Position); err != nil {
			return fmt.Errorf("saving edge %s->%s: %w", e.SourceID, e.TargetID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.PrecedentIDs = precedents
	return nil
}

// resolvePrecedents validates precedent ids against stored decisions.
// Duplicates collapse to their first occurrence; unknown ids are dropped.
func resolvePrecedents(ctx context.Context, tx *sql.Tx, d *domain.Decision) ([]string, error) {
	seen := make(map[string]bool, len(d.PrecedentIDs))
	out := make([]string, 0, len(d.PrecedentIDs))

	for _, id := range d.PrecedentIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		var createdAt int64
		err := tx.QueryRowContext(ctx, "SELECT created_at FROM decisions WHERE id = ?", id).Scan(&createdAt)
		if errors.Is(err, sql.ErrNoRows) {
			logger.Warn("precedent graph: %v: decision %s cites unknown precedent %s, dropped",
				domain.ErrIndexInconsistency, d.ID, id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolving precedent %s: %w", id, err)
		}
		if createdAt >= d.CreatedAt.UnixNano() {
			return nil, fmt.Errorf("%w: %s was not created before %s", domain.ErrInvalidPrecedent, id, d.ID)
		}
		out = append(out, id)
	}

	return out, nil
}

// GetDecision retrieves a decision by ID.
func (g *precedentGraph) GetDecision(ctx context.Context, id string) (*domain.Decision, error) {
	row := g.store.db.QueryRowContext(ctx, `SELECT `+decisionColumns+` FROM decisions WHERE id = ?`, id)

	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return d, err
}

// FindByCategory returns decisions linked to the category node, newest first.
func (g *precedentGraph) FindByCategory(
	ctx context.Context, category domain.SenderCategory, excludeMessageID string, limit int,
) ([]domain.Decision, error) {
	query := `
		SELECT ` + prefixed("d", decisionColumns) + `
		FROM graph_edges e
		JOIN decisions d ON e.source_id = 'decision:' || d.id
		WHERE e.edge_type = ? AND e.target_id = ?`
	args := []any{string(domain.EdgeFromSenderCategory), domain.NodeID(domain.NodeSenderCategory, string(category))}
	if excludeMessageID != "" {
		query += " AND d.message_id <> ?"
		args = append(args, excludeMessageID)
	}
	query += " ORDER BY d.created_at DESC, d.seq DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return g.queryDecisions(ctx, query, args...)
}

// TraversePrecedents follows based_on_precedent edges in rank order.
func (g *precedentGraph) TraversePrecedents(ctx context.Context, decisionID string) ([]domain.Decision, error) {
	if _, err := g.GetDecision(ctx, decisionID); err != nil {
		return nil, err
	}

	rows, err := g.store.db.QueryContext(ctx, `
		SELECT target_id FROM graph_edges
		WHERE source_id = ? AND edge_type = ?
		ORDER BY position
	`, domain.NodeID(domain.NodeDecision, decisionID), string(domain.EdgeBasedOnPrecedent))
	if err != nil {
		return nil, fmt.Errorf("querying precedent edges: %w", err)
	}

	var targets []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning edge: %w", err)
		}
		targets = append(targets, target)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating edges: %w", err)
	}

	prefix := len(domain.NodeID(domain.NodeDecision, ""))
	out := make([]domain.Decision, 0, len(targets))
	for _, target := range targets {
		id := target[prefix:]
		d, err := g.GetDecision(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("precedent graph: %v: decision %s cites missing precedent %s, skipped",
				domain.ErrIndexInconsistency, decisionID, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}

	return out, nil
}

// ListDecisions returns decisions matching filter, newest first.
func (g *precedentGraph) ListDecisions(ctx context.Context, filter domain.DecisionFilter) ([]domain.Decision, error) {
	query := `SELECT ` + decisionColumns + ` FROM decisions WHERE 1 = 1`
	var args []any
	if filter.SenderCategory != "" {
		query += " AND sender_category = ?"
		args = append(args, string(filter.SenderCategory))
	}
	if filter.MessageID != "" {
		query += " AND message_id = ?"
		args = append(args, filter.MessageID)
	}
	if filter.ExcludeMessageID != "" {
		query += " AND message_id <> ?"
		args = append(args, filter.ExcludeMessageID)
	}
	query += " ORDER BY created_at DESC, seq DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return g.queryDecisions(ctx, query, args...)
}

// PurgeDecisions removes decisions, decision nodes and every edge touching them.
func (g *precedentGraph) PurgeDecisions(ctx context.Context) (int, error) {
	tx, err := g.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM decisions").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting decisions: %w", err)
	}

	stmts := []string{
		`DELETE FROM graph_edges WHERE source_id LIKE 'decision:%' OR target_id LIKE 'decision:%'`,
		`DELETE FROM graph_nodes WHERE node_type = 'decision'`,
		`DELETE FROM decisions`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return 0, fmt.Errorf("purging decisions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return count, nil
}

// Snapshot returns every node and edge.
func (g *precedentGraph) Snapshot(ctx context.Context) (*domain.Graph, error) {
	graph := &domain.Graph{Nodes: []domain.GraphNode{}, Edges: []domain.GraphEdge{}}

	rows, err := g.store.db.QueryContext(ctx, `
		SELECT id, node_type, label, ref_id FROM graph_nodes ORDER BY node_type, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	for rows.Next() {
		var n domain.GraphNode
		var nodeType string
		if err := rows.Scan(&n.ID, &nodeType, &n.Label, &n.RefID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning node: %w", err)
		}
		n.Type = domain.NodeType(nodeType)
		graph.Nodes = append(graph.Nodes, n)
	}
	rows.Close()

	rows, err = g.store.db.QueryContext(ctx, `
		SELECT source_id, target_id, edge_type, position FROM graph_edges
		ORDER BY source_id, edge_type, position, target_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e domain.GraphEdge
		var edgeType string
		if err := rows.Scan(&e.SourceID, &e.TargetID, &edgeType, &e.Position); err != nil {
			return nil, fmt.Errorf("scanning edge: %w", err)
		}
		e.Type = domain.EdgeType(edgeType)
		graph.Edges = append(graph.Edges, e)
	}

	return graph, rows.Err()
}

func (g *precedentGraph) queryDecisions(ctx context.Context, query string, args ...any) ([]domain.Decision, error) {
	rows, err := g.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer rows.Close()

	var decisions []domain.Decision //nolint:prealloc // size unknown from query
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating decisions: %w", err)
	}

	return decisions, nil
}

func scanDecision(row rowScanner) (*domain.Decision, error) {
	var d domain.Decision
	var category, sAction, sTone, hAction, hTone, precedentJSON string
	var createdAt int64

	if err := row.Scan(&d.ID, &d.MessageID, &category, &sAction, &sTone,
		&hAction, &hTone, &precedentJSON, &d.Reasoning, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning decision: %w", err)
	}

	if err := json.Unmarshal([]byte(precedentJSON), &d.PrecedentIDs); err != nil {
		return nil, fmt.Errorf("unmarshalling precedents: %w", err)
	}

	d.SenderCategory = domain.SenderCategory(category)
	d.AgentSuggestion = domain.ActionTone{Action: domain.Action(sAction), Tone: domain.Tone(sTone)}
	d.HumanAction = domain.ActionTone{Action: domain.Action(hAction), Tone: domain.Tone(hTone)}
	d.CreatedAt = time.Unix(0, createdAt).UTC()
	return &d, nil
}
