package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driven"
	"github.com/custodia-labs/precedent/internal/logger"
)

// Embedding is a vector together with the model that produced it.
type Embedding struct {
	Vector []float32
	Model  string
}

// Embedder wraps an optional primary embedding service with a local
// fallback and a bounded cache. It never fails: any primary error is
// logged and the fallback vector returned instead.
type Embedder struct {
	primary  driven.EmbeddingService
	fallback driven.EmbeddingService
	timeout  time.Duration

	mu       sync.Mutex
	cache    map[string][]float32
	order    []string
	capacity int
}

// NewEmbedder creates an embedder. primary may be nil; fallback must not be.
// A zero cacheSize disables caching.
func NewEmbedder(
	primary, fallback driven.EmbeddingService, cacheSize int, timeout time.Duration,
) *Embedder {
	if fallback == nil {
		panic("services: embedder needs a fallback embedding service")
	}
	return &Embedder{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
		cache:    make(map[string][]float32),
		capacity: cacheSize,
	}
}

// Model returns the model new vectors will be tagged with when the
// primary is healthy.
func (e *Embedder) Model() string {
	if e.primary != nil {
		return e.primary.ModelName()
	}
	return e.fallback.ModelName()
}

// Dimensions returns the vector size of Model.
func (e *Embedder) Dimensions() int {
	if e.primary != nil {
		return e.primary.Dimensions()
	}
	return e.fallback.Dimensions()
}

// Embed returns a vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) Embedding {
	if e.primary != nil {
		model := e.primary.ModelName()
		if v, ok := e.cached(model, text); ok {
			return Embedding{Vector: v, Model: model}
		}
		v, err := e.callPrimary(ctx, func(ctx context.Context) ([][]float32, error) {
			v, err := e.primary.Embed(ctx, text)
			return [][]float32{v}, err
		})
		if err == nil {
			e.store(model, text, v[0])
			return Embedding{Vector: v[0], Model: model}
		}
		logger.Warn("embedder: %v, using %s", err, e.fallback.ModelName())
	}
	return e.embedFallback(ctx, text)
}

// EmbedBatch returns one vector per text, all from the same model.
// A primary failure moves the whole batch to the fallback.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, string) {
	vecs, model, err := e.EmbedBatchPrimary(ctx, texts)
	if err == nil {
		return vecs, model
	}
	logger.Warn("embedder: %v, using %s", err, e.fallback.ModelName())
	return e.EmbedBatchFallback(ctx, texts)
}

// EmbedBatchPrimary embeds with the primary only and returns
// ErrEmbeddingUnavailable instead of falling back. Without a primary the
// fallback is the model of record and is used directly.
func (e *Embedder) EmbedBatchPrimary(ctx context.Context, texts []string) ([][]float32, string, error) {
	if len(texts) == 0 {
		return [][]float32{}, e.Model(), nil
	}
	if e.primary == nil {
		vecs, model := e.EmbedBatchFallback(ctx, texts)
		return vecs, model, nil
	}

	model := e.primary.ModelName()
	vecs := make([][]float32, len(texts))
	var missing []int
	for i, t := range texts {
		if v, ok := e.cached(model, t); ok {
			vecs[i] = v
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return vecs, model, nil
	}

	pending := make([]string, len(missing))
	for j, i := range missing {
		pending[j] = texts[i]
	}
	got, err := e.callPrimary(ctx, func(ctx context.Context) ([][]float32, error) {
		return e.primary.EmbedBatch(ctx, pending)
	})
	if err != nil {
		return nil, "", err
	}
	if len(got) != len(pending) {
		return nil, "", fmt.Errorf("%w: got %d vectors for %d texts",
			domain.ErrEmbeddingUnavailable, len(got), len(pending))
	}
	for j, i := range missing {
		vecs[i] = got[j]
		e.store(model, texts[i], got[j])
	}
	return vecs, model, nil
}

// EmbedBatchFallback embeds every text with the fallback model.
func (e *Embedder) EmbedBatchFallback(ctx context.Context, texts []string) ([][]float32, string) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vecs[i] = e.embedFallback(ctx, t).Vector
	}
	return vecs, e.fallback.ModelName()
}

func (e *Embedder) callPrimary(
	ctx context.Context, call func(context.Context) ([][]float32, error),
) ([][]float32, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	vecs, err := call(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	return vecs, nil
}

func (e *Embedder) embedFallback(ctx context.Context, text string) Embedding {
	model := e.fallback.ModelName()
	if v, ok := e.cached(model, text); ok {
		return Embedding{Vector: v, Model: model}
	}
	v, err := e.fallback.Embed(ctx, text)
	if err != nil {
		// The hashed embedder does not fail; keep the contract anyway.
		logger.Error("embedder: fallback failed: %v", err)
		v = make([]float32, e.fallback.Dimensions())
	}
	e.store(model, text, v)
	return Embedding{Vector: v, Model: model}
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return model + "\x00" + hex.EncodeToString(sum[:])
}

func (e *Embedder) cached(model, text string) ([]float32, bool) {
	if e.capacity <= 0 {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.cache[cacheKey(model, text)]
	return v, ok
}

// store inserts with FIFO eviction.
func (e *Embedder) store(model, text string, v []float32) {
	if e.capacity <= 0 {
		return
	}
	key := cacheKey(model, text)
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.cache[key]; ok {
		return
	}
	if len(e.order) >= e.capacity {
		oldest := e.order[0]
		e.order = e.order[1:]
		delete(e.cache, oldest)
	}
	e.cache[key] = v
	e.order = append(e.order, key)
}
