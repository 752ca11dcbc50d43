package driven

import (
	"context"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

// MessageStore persists messages and their chunks.
type MessageStore interface {
	// SaveMessage stores a message. Returns ErrAlreadyExists if the id is taken.
	SaveMessage(ctx context.Context, msg *domain.Message) error

	// GetMessage retrieves a message by ID. Returns ErrNotFound if missing.
	GetMessage(ctx context.Context, id string) (*domain.Message, error)

	// ListMessages returns messages matching filter, newest first.
	ListMessages(ctx context.Context, filter domain.MessageFilter) ([]domain.Message, error)

	// SaveChunks replaces the chunks of a message.
	SaveChunks(ctx context.Context, messageID string, chunks []domain.Chunk) error

	// GetChunks returns the chunks of a message in position order.
	GetChunks(ctx context.Context, messageID string) ([]domain.Chunk, error)
}
