package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

func fastIndexer(attempts, workers int) domain.IndexerSettings {
	return domain.IndexerSettings{
		MaxAttempts:    attempts,
		RetryPerSecond: 1000,
		Workers:        workers,
		RetryBackoff:   time.Millisecond,
	}
}

func TestIndexWriter_RetriesTransientFailures(t *testing.T) {
	w := NewIndexWriter(fastIndexer(5, 2))
	defer w.Close()

	var calls atomic.Int32
	w.Submit(IndexJob{Name: "flaky", Run: func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("database is locked")
		}
		return nil
	}})
	w.Flush()

	assert.Equal(t, int32(3), calls.Load())
	stats := w.Stats()
	assert.Equal(t, IndexWriterStats{Submitted: 1, Succeeded: 1, Retries: 2}, stats)
}

func TestIndexWriter_GivesUpAfterMaxAttempts(t *testing.T) {
	w := NewIndexWriter(fastIndexer(3, 1))
	defer w.Close()

	var calls atomic.Int32
	w.Submit(IndexJob{Name: "broken", Run: func(context.Context) error {
		calls.Add(1)
		return errors.New("disk full")
	}})
	w.Flush()

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int64(1), w.Stats().Failed)
}

func TestIndexWriter_FallbackAfterLastAttempt(t *testing.T) {
	w := NewIndexWriter(fastIndexer(3, 1))
	defer w.Close()

	var calls, fallbacks atomic.Int32
	w.Submit(IndexJob{
		Name: "embed",
		Run: func(context.Context) error {
			calls.Add(1)
			return domain.ErrEmbeddingUnavailable
		},
		Fallback: func(context.Context) error {
			fallbacks.Add(1)
			return nil
		},
	})
	w.Submit(IndexJob{
		Name: "both broken",
		Run:  func(context.Context) error { return errors.New("disk full") },
		Fallback: func(context.Context) error {
			fallbacks.Add(1)
			return errors.New("disk still full")
		},
	})
	w.Flush()

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int32(2), fallbacks.Load())
	stats := w.Stats()
	assert.Equal(t, int64(1), stats.Succeeded)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestIndexWriter_FlushWhileSubmitting(t *testing.T) {
	w := NewIndexWriter(fastIndexer(1, 4))
	defer w.Close()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 50 {
				w.Submit(IndexJob{Name: "job", Run: func(context.Context) error { return nil }})
			}
		}()
		go func() {
			defer wg.Done()
			for range 50 {
				w.Flush()
			}
		}()
	}
	wg.Wait()
	w.Flush()

	assert.Equal(t, int64(200), w.Stats().Submitted)
	assert.Equal(t, int64(200), w.Stats().Succeeded)
}

func TestIndexWriter_BoundsConcurrency(t *testing.T) {
	w := NewIndexWriter(fastIndexer(1, 2))
	defer w.Close()

	var running, peak atomic.Int32
	var mu sync.Mutex
	for range 10 {
		w.Submit(IndexJob{Name: "job", Run: func(context.Context) error {
			n := running.Add(1)
			mu.Lock()
			if n > peak.Load() {
				peak.Store(n)
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		}})
	}
	w.Flush()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, int64(10), w.Stats().Succeeded)
}

func TestIndexWriter_SubmitDoesNotBlock(t *testing.T) {
	w := NewIndexWriter(fastIndexer(1, 1))
	defer w.Close()

	release := make(chan struct{})
	start := time.Now()
	for range 3 {
		w.Submit(IndexJob{Name: "slow", Run: func(context.Context) error {
			<-release
			return nil
		}})
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	close(release)
	w.Flush()
	assert.Equal(t, int64(3), w.Stats().Succeeded)
}

func TestIndexWriter_CloseDrainsThenDrops(t *testing.T) {
	w := NewIndexWriter(fastIndexer(1, 1))

	var ran atomic.Bool
	w.Submit(IndexJob{Name: "pending", Run: func(context.Context) error {
		time.Sleep(10 * time.Millisecond)
		ran.Store(true)
		return nil
	}})
	assert.NoError(t, w.Close())
	assert.True(t, ran.Load())

	w.Submit(IndexJob{Name: "late", Run: func(context.Context) error {
		t.Error("job ran after Close")
		return nil
	}})
	w.Flush()
	assert.Equal(t, int64(1), w.Stats().Submitted)
}

func TestNewIndexWriter_Defaults(t *testing.T) {
	w := NewIndexWriter(domain.IndexerSettings{})
	defer w.Close()
	def := domain.DefaultAppSettings().Indexer
	assert.Equal(t, def.MaxAttempts, w.maxAttempts)
	assert.Equal(t, def.RetryBackoff, w.backoff)
}
