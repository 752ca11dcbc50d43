package driven

import (
	"context"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

// PrecedentGraph stores confirmed decisions as a directed graph of
// message, decision, action, tone and sender-category nodes.
// It is the source of truth for precedent.
type PrecedentGraph interface {
	// RecordDecision writes the decision, its nodes and edges in one
	// transaction. Precedent ids must reference strictly earlier decisions
	// (ErrInvalidPrecedent). Ids that do not resolve are dropped with a
	// warning.
	RecordDecision(ctx context.Context, decision *domain.Decision) error

	// GetDecision retrieves a decision by ID. Returns ErrNotFound if missing.
	GetDecision(ctx context.Context, id string) (*domain.Decision, error)

	// FindByCategory returns decisions for a sender category, newest first.
	// Decisions made for excludeMessageID are skipped before the limit applies.
	FindByCategory(
		ctx context.Context, category domain.SenderCategory, excludeMessageID string, limit int,
	) ([]domain.Decision, error)

	// TraversePrecedents resolves the precedent ids of a decision in rank
	// order. Dangling references are skipped with a warning.
	TraversePrecedents(ctx context.Context, decisionID string) ([]domain.Decision, error)

	// ListDecisions returns decisions matching filter, newest first.
	ListDecisions(ctx context.Context, filter domain.DecisionFilter) ([]domain.Decision, error)

	// PurgeDecisions removes all decisions, their nodes and edges.
	// Message and label nodes are kept. Returns the number purged.
	PurgeDecisions(ctx context.Context) (int, error)

	// Snapshot returns every node and edge.
	Snapshot(ctx context.Context) (*domain.Graph, error)
}
