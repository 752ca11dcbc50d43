// Package hashed provides a local, deterministic embedding service based on
// feature hashing. It needs no network and is the fallback whenever the
// configured provider is missing or unreachable.
package hashed

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/custodia-labs/precedent/internal/core/ports/driven"
	"github.com/custodia-labs/precedent/internal/textindex"
	"github.com/custodia-labs/precedent/internal/vectormath"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultDimensions is used when no size is configured.
const DefaultDimensions = 256

// bigramWeight scales bigram features relative to unigrams.
const bigramWeight = 0.5

// EmbeddingService hashes unigrams and bigrams into a fixed-size signed
// vector, then L2-normalises it.
type EmbeddingService struct {
	dimensions int
}

// NewEmbeddingService creates a hashed embedder of the given size.
func NewEmbeddingService(dimensions int) *EmbeddingService {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &EmbeddingService{dimensions: dimensions}
}

// Embed returns the feature-hashed vector for text. Text without any
// indexable token yields the zero vector.
func (s *EmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, s.dimensions)
	tokens := textindex.Tokenize(text)

	for _, tok := range tokens {
		s.add(vec, tok, 1)
	}
	for _, bg := range textindex.Bigrams(tokens) {
		s.add(vec, bg, bigramWeight)
	}

	return vectormath.Normalize(vec), nil
}

// add hashes feature into a bucket; one bit of the hash picks the sign so
// collisions tend to cancel.
func (s *EmbeddingService) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	idx := int(sum % uint64(s.dimensions))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

// EmbedBatch embeds each text.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns "hashed-<dimensions>".
func (s *EmbeddingService) ModelName() string {
	return fmt.Sprintf("hashed-%d", s.dimensions)
}

// Ping always succeeds.
func (s *EmbeddingService) Ping(context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
