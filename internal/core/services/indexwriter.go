package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/logger"
)

// maxBackoff caps the retry delay.
const maxBackoff = 5 * time.Second

// IndexJob is one idempotent index write.
type IndexJob struct {
	// Name identifies the write in logs.
	Name string

	Run func(ctx context.Context) error

	// Fallback, when set, runs once after the last attempt of Run fails.
	Fallback func(ctx context.Context) error
}

// IndexWriterStats counts job outcomes.
type IndexWriterStats struct {
	Submitted int64
	Succeeded int64
	Failed    int64
	Retries   int64
}

// IndexWriter applies index writes in the background. The first attempt
// runs as soon as a worker is free; retries back off exponentially and are
// paced by a shared rate limiter so a struggling index is not hammered.
// Jobs must be idempotent.
type IndexWriter struct {
	sem         *semaphore.Weighted
	limiter     *rate.Limiter
	maxAttempts int
	backoff     time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	// pending counts submitted jobs that have not finished. idle is
	// broadcast whenever it drops to zero.
	mu      sync.Mutex
	idle    *sync.Cond
	pending int
	closed  bool

	submitted, succeeded, failed, retries atomic.Int64
}

// NewIndexWriter creates a writer from settings. Zero fields take defaults.
func NewIndexWriter(settings domain.IndexerSettings) *IndexWriter {
	def := domain.DefaultAppSettings().Indexer
	if settings.Workers <= 0 {
		settings.Workers = def.Workers
	}
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = def.MaxAttempts
	}
	if settings.RetryPerSecond <= 0 {
		settings.RetryPerSecond = def.RetryPerSecond
	}
	if settings.RetryBackoff <= 0 {
		settings.RetryBackoff = def.RetryBackoff
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &IndexWriter{
		sem:         semaphore.NewWeighted(int64(settings.Workers)),
		limiter:     rate.NewLimiter(rate.Limit(settings.RetryPerSecond), settings.Workers),
		maxAttempts: settings.MaxAttempts,
		backoff:     settings.RetryBackoff,
		ctx:         ctx,
		cancel:      cancel,
	}
	w.idle = sync.NewCond(&w.mu)
	return w
}

// Submit queues a job without blocking the caller. Jobs submitted after
// Close are dropped with a warning.
func (w *IndexWriter) Submit(job IndexJob) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		logger.Warn("index writer closed, dropping %s", job.Name)
		return
	}
	w.pending++
	w.mu.Unlock()

	w.submitted.Add(1)
	go w.run(job)
}

func (w *IndexWriter) done() {
	w.mu.Lock()
	w.pending--
	if w.pending == 0 {
		w.idle.Broadcast()
	}
	w.mu.Unlock()
}

func (w *IndexWriter) run(job IndexJob) {
	defer w.done()

	if err := w.sem.Acquire(w.ctx, 1); err != nil {
		w.failed.Add(1)
		logger.Warn("index write %s abandoned: %v", job.Name, err)
		return
	}
	defer w.sem.Release(1)

	delay := w.backoff
	for attempt := 1; ; attempt++ {
		err := job.Run(w.ctx)
		if err == nil {
			w.succeeded.Add(1)
			if attempt > 1 {
				logger.Info("index write %s succeeded after %d attempts", job.Name, attempt)
			}
			return
		}
		if attempt >= w.maxAttempts || w.ctx.Err() != nil {
			w.giveUp(job, attempt, err)
			return
		}

		logger.Debug("index write %s attempt %d failed, retrying in %s: %v", job.Name, attempt, delay, err)
		w.retries.Add(1)
		if !w.wait(delay) {
			w.failed.Add(1)
			logger.Warn("index write %s abandoned during backoff", job.Name)
			return
		}
		delay = min(delay*2, maxBackoff)
	}
}

func (w *IndexWriter) giveUp(job IndexJob, attempts int, err error) {
	if job.Fallback != nil && w.ctx.Err() == nil {
		ferr := job.Fallback(w.ctx)
		if ferr == nil {
			w.succeeded.Add(1)
			logger.Warn("index write %s used its fallback after %d attempts: %v", job.Name, attempts, err)
			return
		}
		err = fmt.Errorf("%w; fallback: %w", err, ferr)
	}
	w.failed.Add(1)
	logger.Error("index write %s failed after %d attempts: %v", job.Name, attempts, err)
}

// wait sleeps for the backoff, then takes a token from the retry limiter.
func (w *IndexWriter) wait(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-w.ctx.Done():
		return false
	}
	return w.limiter.Wait(w.ctx) == nil
}

// Flush blocks until no job is pending. It is safe to call while other
// goroutines submit.
func (w *IndexWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.pending > 0 {
		w.idle.Wait()
	}
}

// Close drains pending jobs and stops accepting new ones.
func (w *IndexWriter) Close() error {
	w.mu.Lock()
	w.closed = true
	for w.pending > 0 {
		w.idle.Wait()
	}
	w.mu.Unlock()

	w.cancel()
	return nil
}

// Stats returns a snapshot of job counters.
func (w *IndexWriter) Stats() IndexWriterStats {
	return IndexWriterStats{
		Submitted: w.submitted.Load(),
		Succeeded: w.succeeded.Load(),
		Failed:    w.failed.Load(),
		Retries:   w.retries.Load(),
	}
}
