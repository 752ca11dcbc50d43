package domain

import (
	"fmt"
	"strings"
	"time"
)

// SenderCategory is the closed-set classification of a message's originator.
// It scopes precedent search.
type SenderCategory string

// Known sender categories.
const (
	SenderInvestor SenderCategory = "investor"
	SenderSales    SenderCategory = "sales"
	SenderSupport  SenderCategory = "support"
	SenderOther    SenderCategory = "other"
)

// IsValid returns true if the category is recognised.
func (c SenderCategory) IsValid() bool {
	switch c {
	case SenderInvestor, SenderSales, SenderSupport, SenderOther:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (c SenderCategory) String() string {
	return string(c)
}

// AllSenderCategories returns every known sender category.
func AllSenderCategories() []SenderCategory {
	return []SenderCategory{SenderInvestor, SenderSales, SenderSupport, SenderOther}
}

// Channel identifies where a message arrived.
type Channel string

// Common channels. Any non-empty channel is accepted.
const (
	ChannelEmail   Channel = "email"
	ChannelSlack   Channel = "slack"
	ChannelDiscord Channel = "discord"
)

// ContentType describes the encoding of a message body.
type ContentType string

// Supported body content types.
const (
	ContentTypePlain ContentType = "text/plain"
	ContentTypeHTML  ContentType = "text/html"
)

// Message is an inbound message awaiting a suggestion.
// Messages are immutable once created.
type Message struct {
	// ID uniquely identifies this message.
	ID string `json:"id"`

	// SenderName is the display name or address of the sender.
	SenderName string `json:"sender_name"`

	// SenderCategory scopes precedent search.
	SenderCategory SenderCategory `json:"sender_category"`

	// Channel is where the message arrived (email, slack, ...).
	Channel Channel `json:"channel"`

	// Subject is optional.
	Subject string `json:"subject,omitempty"`

	// Body is the message content.
	Body string `json:"body"`

	// ContentType is the encoding of Body. Empty means plain text.
	ContentType ContentType `json:"content_type,omitempty"`

	// CreatedAt is when the message was received.
	CreatedAt time.Time `json:"created_at"`
}

// Text returns the retrieval text of the message.
func (m *Message) Text() string {
	if m.Subject == "" {
		return m.Body
	}
	return m.Subject + "\n" + m.Body
}

// Validate checks that the message can be stored.
func (m *Message) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("%w: message id is required", ErrInvalidInput)
	}
	if !m.SenderCategory.IsValid() {
		return fmt.Errorf("%w: unknown sender category %q", ErrInvalidInput, m.SenderCategory)
	}
	if strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("%w: message body is required", ErrInvalidInput)
	}
	return nil
}

// MessageFilter selects messages in list queries.
type MessageFilter struct {
	// SenderCategory restricts results to one category when set.
	SenderCategory SenderCategory

	// Limit caps the number of results. Zero means no limit.
	Limit int
}

// Span is a half-open byte range [Start, End) into the processed message text.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered.
func (s Span) Len() int {
	return s.End - s.Start
}

// Chunk is a retrieval-sized passage of a message.
// Chunks are owned by their message and never mutated.
type Chunk struct {
	// ID is "<message id>#<position>".
	ID string

	// MessageID references the parent message.
	MessageID string

	// Position is the zero-based order within the message.
	Position int

	// Text is the passage content.
	Text string

	// Span locates Text within the processed message text.
	Span Span
}

// ChunkID returns the deterministic id of the chunk at position.
func ChunkID(messageID string, position int) string {
	return fmt.Sprintf("%s#%d", messageID, position)
}

// ProcessedMessage is the output of the post-processor pipeline.
type ProcessedMessage struct {
	// Message is the source message.
	Message *Message

	// Text is the normalised retrieval text.
	Text string

	// Chunks are the passages produced from Text.
	Chunks []Chunk
}
