package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driven"
)

// ==================== Message Store ====================

// messageStore implements driven.MessageStore.
type messageStore struct {
	store *Store
}

var _ driven.MessageStore = (*messageStore)(nil)

// SaveMessage stores a message. Messages are immutable.
func (s *messageStore) SaveMessage(ctx context.Context, msg *domain.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender_name, sender_category, channel, subject, body, content_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.SenderName, string(msg.SenderCategory), string(msg.Channel),
		msg.Subject, msg.Body, string(msg.ContentType), msg.CreatedAt.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("message %s: %w", msg.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("saving message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by ID.
func (s *messageStore) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, sender_name, sender_category, channel, subject, body, content_type, created_at
		FROM messages WHERE id = ?
	`, id)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return msg, err
}

// ListMessages returns messages newest first.
func (s *messageStore) ListMessages(ctx context.Context, filter domain.MessageFilter) ([]domain.Message, error) {
	query := `
		SELECT id, sender_name, sender_category, channel, subject, body, content_type, created_at
		FROM messages`
	var args []any
	if filter.SenderCategory != "" {
		query += " WHERE sender_category = ?"
		args = append(args, string(filter.SenderCategory))
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message //nolint:prealloc // size unknown from query
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return msgs, nil
}

// SaveChunks replaces the chunks of a message.
func (s *messageStore) SaveChunks(ctx context.Context, messageID string, chunks []domain.Chunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE message_id = ?", messageID); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, message_id, position, text, span_start, span_end)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, messageID, c.Position, c.Text,
			c.Span.Start, c.Span.End); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetChunks returns the chunks of a message in position order.
func (s *messageStore) GetChunks(ctx context.Context, messageID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, message_id, position, text, span_start, span_end
		FROM chunks WHERE message_id = ?
		ORDER BY position
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.MessageID, &c.Position, &c.Text,
			&c.Span.Start, &c.Span.End); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	var msg domain.Message
	var category, channel, contentType string
	var createdAt int64

	if err := row.Scan(&msg.ID, &msg.SenderName, &category, &channel, &msg.Subject,
		&msg.Body, &contentType, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning message: %w", err)
	}

	msg.SenderCategory = domain.SenderCategory(category)
	msg.Channel = domain.Channel(channel)
	msg.ContentType = domain.ContentType(contentType)
	msg.CreatedAt = time.Unix(0, createdAt).UTC()
	return &msg, nil
}

// isUniqueViolation reports whether err is a primary key or unique conflict.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
