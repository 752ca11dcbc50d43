package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driven"
)

var _ driven.MessageStore = (*MessageStore)(nil)

// MessageStore is an in-memory driven.MessageStore for tests.
type MessageStore struct {
	mu       sync.RWMutex
	messages map[string]domain.Message
	order    []string
	chunks   map[string][]domain.Chunk
}

// NewMessageStore creates an empty message store.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make(map[string]domain.Message),
		chunks:   make(map[string][]domain.Chunk),
	}
}

// SaveMessage stores a copy of msg.
func (s *MessageStore) SaveMessage(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[msg.ID]; ok {
		return fmt.Errorf("message %s: %w", msg.ID, domain.ErrAlreadyExists)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.messages[msg.ID] = *msg
	s.order = append(s.order, msg.ID)
	return nil
}

// GetMessage retrieves a message by ID.
func (s *MessageStore) GetMessage(_ context.Context, id string) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &msg, nil
}

// ListMessages returns messages newest first; insertion order breaks ties.
func (s *MessageStore) ListMessages(_ context.Context, filter domain.MessageFilter) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Message, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		msg := s.messages[s.order[i]]
		if filter.SenderCategory != "" && msg.SenderCategory != filter.SenderCategory {
			continue
		}
		out = append(out, msg)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// SaveChunks replaces the chunks of a message.
func (s *MessageStore) SaveChunks(_ context.Context, messageID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[messageID]; !ok {
		return fmt.Errorf("chunks for %s: %w", messageID, domain.ErrNotFound)
	}
	s.chunks[messageID] = append([]domain.Chunk(nil), chunks...)
	return nil
}

// GetChunks returns the chunks of a message in position order.
func (s *MessageStore) GetChunks(_ context.Context, messageID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]domain.Chunk(nil), s.chunks[messageID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}
