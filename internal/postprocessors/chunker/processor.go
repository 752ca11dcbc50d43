// Package chunker provides a token-budget text chunking processor.
package chunker

import (
	"context"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

// DefaultMaxTokens is the default budget per chunk.
const DefaultMaxTokens = 500

// DefaultOverlap is the default number of tokens shared by consecutive chunks.
const DefaultOverlap = 50

// Processor splits message text into chunks of at most maxTokens units.
// It implements the PostProcessor interface.
type Processor struct {
	maxTokens int
	overlap   int
	tokenizer Tokenizer
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithMaxTokens sets the budget per chunk.
func WithMaxTokens(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxTokens = n
		}
	}
}

// WithOverlap sets the overlap between chunks in tokens.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// WithTokenizer sets the budget counter.
func WithTokenizer(t Tokenizer) Option {
	return func(p *Processor) {
		if t != nil {
			p.tokenizer = t
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		maxTokens: DefaultMaxTokens,
		overlap:   DefaultOverlap,
		tokenizer: WordTokenizer{},
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.maxTokens {
		p.overlap = p.maxTokens / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process replaces pm.Chunks with chunks of pm.Text.
// Text within the budget yields exactly one chunk spanning the whole text.
func (p *Processor) Process(_ context.Context, pm *domain.ProcessedMessage) (*domain.ProcessedMessage, error) {
	pm.Chunks = p.Split(pm.Message.ID, pm.Text)
	return pm, nil
}

// Split chunks text for the given message id. The result is deterministic
// and every chunk's Text equals text[Span.Start:Span.End].
func (p *Processor) Split(messageID, text string) []domain.Chunk {
	units := p.tokenizer.Split(text)
	if len(units) == 0 {
		return nil
	}

	if len(units) <= p.maxTokens {
		return []domain.Chunk{{
			ID:        domain.ChunkID(messageID, 0),
			MessageID: messageID,
			Position:  0,
			Text:      text,
			Span:      domain.Span{Start: 0, End: len(text)},
		}}
	}

	step := p.maxTokens - p.overlap
	chunks := make([]domain.Chunk, 0, len(units)/step+1)

	for start := 0; start < len(units); start += step {
		end := start + p.maxTokens
		if end > len(units) {
			end = len(units)
		}

		span := domain.Span{Start: units[start][0], End: units[end-1][1]}
		position := len(chunks)
		chunks = append(chunks, domain.Chunk{
			ID:        domain.ChunkID(messageID, position),
			MessageID: messageID,
			Position:  position,
			Text:      text[span.Start:span.End],
			Span:      span,
		})

		if end == len(units) {
			break
		}
	}

	return chunks
}
