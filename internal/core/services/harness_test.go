package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/precedent/internal/adapters/driven/embedding/hashed"
	"github.com/custodia-labs/precedent/internal/adapters/driven/rerank/lexical"
	"github.com/custodia-labs/precedent/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/precedent/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driven"
	"github.com/custodia-labs/precedent/internal/postprocessors"
)

// testClock advances one minute per call so every record is strictly
// later than the previous one.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

// harness wires every service over the in-memory stores, or over a
// temporary SQLite store when sqlite is set. The memory fields are nil in
// the SQLite case.
type harness struct {
	messages  *memory.MessageStore
	graph     *memory.PrecedentGraph
	vectors   *memory.VectorIndex
	keywords  *memory.KeywordIndex
	embedder  *Embedder
	writer    *IndexWriter
	ingestion *IngestionService
	retrieval *RetrievalService
	engine    *DecisionEngine
}

type harnessOptions struct {
	embedding driven.EmbeddingService
	llm       driven.LLMService
	engine    *domain.EngineSettings
	vectors   driven.VectorIndex
	sqlite    bool
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	settings := domain.DefaultAppSettings()
	settings.Indexer.RetryBackoff = time.Millisecond
	settings.Indexer.RetryPerSecond = 1000
	if opts.engine != nil {
		settings.Engine = *opts.engine
	}

	h := &harness{}
	var (
		messages driven.MessageStore
		graph    driven.PrecedentGraph
		vectors  driven.VectorIndex
		keywords driven.KeywordIndex
	)
	if opts.sqlite {
		store, err := sqlite.NewStore(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		messages, graph = store.MessageStore(), store.PrecedentGraph()
		vectors, keywords = store.VectorIndex(), store.KeywordIndex()
	} else {
		h.messages = memory.NewMessageStore()
		h.graph = memory.NewPrecedentGraph()
		h.vectors = memory.NewVectorIndex()
		h.keywords = memory.NewKeywordIndex()
		messages, graph, vectors, keywords = h.messages, h.graph, h.vectors, h.keywords
	}
	if opts.vectors != nil {
		vectors = opts.vectors
	}

	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry)
	pipeline, err := postprocessors.Build(registry, domain.PipelineConfigFromSettings(settings.Chunker))
	require.NoError(t, err)

	h.embedder = NewEmbedder(opts.embedding, hashed.NewEmbeddingService(64), 128, time.Second)
	h.writer = NewIndexWriter(settings.Indexer)
	t.Cleanup(func() { _ = h.writer.Close() })

	h.ingestion = NewIngestionService(messages, graph, vectors, keywords, pipeline, h.embedder, h.writer)
	h.ingestion.SetClock(newTestClock().Now)

	h.retrieval = NewRetrievalService(
		[]Retriever{
			NewVectorRetriever(h.embedder, vectors),
			NewKeywordRetriever(keywords),
			NewGraphRetriever(graph),
		},
		messages, graph, lexical.New(), settings.Retrieval,
	)
	analyzer := NewAnalyzer(opts.llm, nil, settings.Engine.ServiceTimeout)
	h.engine = NewDecisionEngine(messages, h.retrieval, analyzer, opts.llm, nil, settings.Engine)
	return h
}

func (h *harness) ingest(t *testing.T, id string, category domain.SenderCategory, subject, body string) *domain.Message {
	t.Helper()
	m, err := h.ingestion.IngestMessage(context.Background(), &domain.Message{
		ID:             id,
		SenderName:     "sender-" + id,
		SenderCategory: category,
		Subject:        subject,
		Body:           body,
	})
	require.NoError(t, err)
	h.writer.Flush()
	return m
}

func (h *harness) confirm(t *testing.T, messageID string, human domain.ActionTone, precedents ...string) *domain.Decision {
	t.Helper()
	d, err := h.ingestion.ConfirmDecision(context.Background(), domain.DecisionInput{
		MessageID:       messageID,
		AgentSuggestion: human,
		HumanAction:     human,
		PrecedentIDs:    precedents,
	})
	require.NoError(t, err)
	h.writer.Flush()
	return d
}

var (
	replyNowWarm     = domain.ActionTone{Action: domain.ActionReplyNow, Tone: domain.ToneWarm}
	replyLaterFormal = domain.ActionTone{Action: domain.ActionReplyLater, Tone: domain.ToneFormal}
	ignoreNeutral    = domain.ActionTone{Action: domain.ActionIgnore, Tone: domain.ToneNeutral}
)

// mockLLM answers Chat calls from a queue of replies, or with reply when
// the queue is empty.
type mockLLM struct {
	mu      sync.Mutex
	replies []string
	reply   string
	err     error
	delay   time.Duration
	calls   []driven.ChatMessage
}

func (m *mockLLM) Generate(ctx context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	return m.Chat(ctx, []driven.ChatMessage{{Role: "user", Content: prompt}}, driven.ChatOptions{})
}

func (m *mockLLM) Chat(ctx context.Context, msgs []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, msgs...)
	reply := m.reply
	if len(m.replies) > 0 {
		reply, m.replies = m.replies[0], m.replies[1:]
	}
	delay, err := m.delay, m.err
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return reply, err
}

func (m *mockLLM) ModelName() string          { return "mock-llm" }
func (m *mockLLM) Ping(context.Context) error { return nil }
func (m *mockLLM) Close() error               { return nil }

// failingEmbedding is an embedding service that is always down.
type failingEmbedding struct{ calls atomic.Int32 }

func (f *failingEmbedding) Embed(context.Context, string) ([]float32, error) {
	f.calls.Add(1)
	return nil, errors.New("connection refused")
}

func (f *failingEmbedding) EmbedBatch(context.Context, []string) ([][]float32, error) {
	f.calls.Add(1)
	return nil, errors.New("connection refused")
}

// stallingEmbedding fails its first failures batch calls, and blocks every
// call until release is closed or the context ends.
type stallingEmbedding struct {
	release  chan struct{}
	failures atomic.Int32
	calls    atomic.Int32
}

func (s *stallingEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *stallingEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls.Add(1)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.failures.Add(-1) >= 0 {
		return nil, errors.New("connection reset")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func (s *stallingEmbedding) Dimensions() int            { return 4 }
func (s *stallingEmbedding) ModelName() string          { return "remote-4" }
func (s *stallingEmbedding) Ping(context.Context) error { return nil }
func (s *stallingEmbedding) Close() error               { return nil }

func (f *failingEmbedding) Dimensions() int            { return 8 }
func (f *failingEmbedding) ModelName() string          { return "remote-8" }
func (f *failingEmbedding) Ping(context.Context) error { return errors.New("down") }
func (f *failingEmbedding) Close() error               { return nil }
