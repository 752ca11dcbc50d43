package driving

import (
	"context"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

// IngestionService writes messages and confirmed decisions into the stores.
type IngestionService interface {
	// IngestMessage stores a message and indexes its chunks.
	// Index failures are logged, not returned.
	IngestMessage(ctx context.Context, msg *domain.Message) (*domain.Message, error)

	// ConfirmDecision records a human decision in the precedent graph and
	// schedules index writes. Only a graph write failure is returned
	// (ErrStoreWrite, retryable).
	ConfirmDecision(ctx context.Context, input domain.DecisionInput) (*domain.Decision, error)

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, id string) (*domain.Message, error)

	// ListMessages returns stored messages, newest first.
	ListMessages(ctx context.Context, filter domain.MessageFilter) ([]domain.Message, error)

	// ListDecisions returns confirmed decisions, newest first.
	ListDecisions(ctx context.Context, filter domain.DecisionFilter) ([]domain.Decision, error)

	// Precedents resolves the precedent chain of a decision.
	Precedents(ctx context.Context, decisionID string) ([]domain.Decision, error)

	// Graph returns a snapshot of the precedent graph.
	Graph(ctx context.Context) (*domain.Graph, error)

	// Reset purges all decisions from the graph and indices. Messages are kept.
	Reset(ctx context.Context) (int, error)

	// RebuildIndexes re-chunks, re-embeds and re-indexes every message and
	// decision.
	RebuildIndexes(ctx context.Context) (*RebuildStats, error)
}

// RebuildStats reports the work done by RebuildIndexes.
type RebuildStats struct {
	Messages  int
	Chunks    int
	Decisions int
}
