package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driven"
	"github.com/custodia-labs/precedent/internal/core/ports/driving"
	"github.com/custodia-labs/precedent/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// IngestionService writes messages and decisions. The record store and the
// precedent graph are written synchronously; index writes go through the
// IndexWriter and are best effort.
type IngestionService struct {
	messages driven.MessageStore
	graph    driven.PrecedentGraph
	vectors  driven.VectorIndex
	keywords driven.KeywordIndex
	pipeline driven.PostProcessorPipeline
	embedder *Embedder
	writer   *IndexWriter
	now      func() time.Time
}

// NewIngestionService creates an ingestion service.
func NewIngestionService(
	messages driven.MessageStore,
	graph driven.PrecedentGraph,
	vectors driven.VectorIndex,
	keywords driven.KeywordIndex,
	pipeline driven.PostProcessorPipeline,
	embedder *Embedder,
	writer *IndexWriter,
) *IngestionService {
	return &IngestionService{
		messages: messages,
		graph:    graph,
		vectors:  vectors,
		keywords: keywords,
		pipeline: pipeline,
		embedder: embedder,
		writer:   writer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source for new records.
func (s *IngestionService) SetClock(now func() time.Time) {
	s.now = now
}

// IngestMessage stores a message and schedules its chunk index writes.
// A missing id is generated and a missing time set to now.
func (s *IngestionService) IngestMessage(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", domain.ErrInvalidInput)
	}
	m := *msg
	if strings.TrimSpace(m.ID) == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	if m.Channel == "" {
		m.Channel = domain.ChannelEmail
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	if err := s.messages.SaveMessage(ctx, &m); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	logger.Info("Ingested message %s (%s)", m.ID, m.SenderCategory)

	docs, err := s.chunkMessage(ctx, &m)
	if err != nil {
		logger.Warn("index message %s: %v", m.ID, err)
		return &m, nil
	}
	s.submitWrites("message "+m.ID, docs)
	return &m, nil
}

// chunkMessage runs the pipeline, saves the chunks and returns one index
// document per chunk. Model is set by whichever write embeds them.
func (s *IngestionService) chunkMessage(ctx context.Context, msg *domain.Message) ([]domain.IndexDocument, error) {
	pm, err := s.pipeline.Process(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("process: %w", err)
	}
	if err := s.messages.SaveChunks(ctx, msg.ID, pm.Chunks); err != nil {
		return nil, fmt.Errorf("save chunks: %w", err)
	}

	docs := make([]domain.IndexDocument, len(pm.Chunks))
	for i, c := range pm.Chunks {
		docs[i] = domain.IndexDocument{
			ID:   c.ID,
			Text: c.Text,
			Meta: domain.IndexMetadata{
				Kind:           domain.IndexKindChunk,
				MessageID:      msg.ID,
				SenderCategory: msg.SenderCategory,
			},
		}
	}
	return docs, nil
}

// submitWrites schedules one keyword write per document and a single
// vector write for the batch. Embedding happens inside the vector job:
// every attempt asks the primary model, and the fallback model is used
// only once the attempts are exhausted.
func (s *IngestionService) submitWrites(name string, docs []domain.IndexDocument) {
	if len(docs) == 0 {
		return
	}
	for _, doc := range docs {
		s.writer.Submit(IndexJob{
			Name: "keyword " + doc.ID,
			Run: func(ctx context.Context) error {
				return s.keywords.Index(ctx, doc.ID, doc.Text, doc.Meta)
			},
		})
	}

	texts := documentTexts(docs)
	s.writer.Submit(IndexJob{
		Name: "vector " + name,
		Run: func(ctx context.Context) error {
			vecs, model, err := s.embedder.EmbedBatchPrimary(ctx, texts)
			if err != nil {
				return err
			}
			return s.upsertVectors(ctx, docs, vecs, model)
		},
		Fallback: func(ctx context.Context) error {
			vecs, model := s.embedder.EmbedBatchFallback(ctx, texts)
			return s.upsertVectors(ctx, docs, vecs, model)
		},
	})
}

// upsertVectors writes vecs under model. Upserts are idempotent so a
// retried batch rewrites what an earlier attempt stored.
func (s *IngestionService) upsertVectors(
	ctx context.Context, docs []domain.IndexDocument, vecs [][]float32, model string,
) error {
	for i, doc := range docs {
		meta := doc.Meta
		meta.Model = model
		if err := s.vectors.Upsert(ctx, doc.ID, vecs[i], meta); err != nil {
			return fmt.Errorf("upsert %s: %w", doc.ID, err)
		}
	}
	logger.Debug("Embedded %d entries with %s", len(docs), model)
	return nil
}

func documentTexts(docs []domain.IndexDocument) []string {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	return texts
}

// ConfirmDecision records the human decision. Only the graph write can
// fail the call; index writes are scheduled afterwards.
func (s *IngestionService) ConfirmDecision(
	ctx context.Context, input domain.DecisionInput,
) (*domain.Decision, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	msg, err := s.messages.GetMessage(ctx, input.MessageID)
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", input.MessageID, err)
	}

	d := &domain.Decision{
		ID:              uuid.NewString(),
		MessageID:       msg.ID,
		SenderCategory:  msg.SenderCategory,
		AgentSuggestion: input.AgentSuggestion,
		HumanAction:     input.HumanAction,
		PrecedentIDs:    append([]string(nil), input.PrecedentIDs...),
		Reasoning:       input.Reasoning,
		CreatedAt:       s.now(),
	}
	if err := s.graph.RecordDecision(ctx, d); err != nil {
		if errors.Is(err, domain.ErrInvalidPrecedent) || errors.Is(err, domain.ErrInvalidInput) ||
			errors.Is(err, domain.ErrInvalidSuggestion) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: record decision: %w", domain.ErrStoreWrite, err)
	}
	logger.Info("Recorded decision %s for %s: %s (agent %s)", d.ID, msg.ID, d.HumanAction, d.AgentSuggestion)

	s.submitWrites("decision "+d.ID, []domain.IndexDocument{decisionDocument(msg, d)})
	return d, nil
}

func decisionDocument(msg *domain.Message, d *domain.Decision) domain.IndexDocument {
	return domain.IndexDocument{
		ID:   d.ID,
		Text: DecisionText(msg, d),
		Meta: domain.IndexMetadata{
			Kind:           domain.IndexKindDecision,
			MessageID:      msg.ID,
			DecisionID:     d.ID,
			SenderCategory: d.SenderCategory,
		},
	}
}

// GetMessage retrieves a message by ID.
func (s *IngestionService) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	return s.messages.GetMessage(ctx, id)
}

// ListMessages returns stored messages, newest first.
func (s *IngestionService) ListMessages(ctx context.Context, filter domain.MessageFilter) ([]domain.Message, error) {
	return s.messages.ListMessages(ctx, filter)
}

// ListDecisions returns confirmed decisions, newest first.
func (s *IngestionService) ListDecisions(
	ctx context.Context, filter domain.DecisionFilter,
) ([]domain.Decision, error) {
	return s.graph.ListDecisions(ctx, filter)
}

// Precedents resolves the precedent chain of a decision.
func (s *IngestionService) Precedents(ctx context.Context, decisionID string) ([]domain.Decision, error) {
	return s.graph.TraversePrecedents(ctx, decisionID)
}

// Graph returns a snapshot of the precedent graph.
func (s *IngestionService) Graph(ctx context.Context) (*domain.Graph, error) {
	return s.graph.Snapshot(ctx)
}

// Reset purges every decision from the graph and both indices.
// Messages, chunks and their index entries are kept.
func (s *IngestionService) Reset(ctx context.Context) (int, error) {
	s.writer.Flush()

	n, err := s.graph.PurgeDecisions(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: purge decisions: %w", domain.ErrStoreWrite, err)
	}

	decisions := domain.IndexFilter{Kind: domain.IndexKindDecision}
	if removed, err := s.vectors.DeleteWhere(ctx, decisions); err != nil {
		logger.Warn("reset: vector index: %v", err)
	} else {
		logger.Debug("Reset removed %d decision vectors", removed)
	}
	if removed, err := s.keywords.DeleteWhere(ctx, decisions); err != nil {
		logger.Warn("reset: keyword index: %v", err)
	} else {
		logger.Debug("Reset removed %d decision keyword entries", removed)
	}

	logger.Info("Reset purged %d decisions", n)
	return n, nil
}

// RebuildIndexes re-chunks, re-embeds and re-indexes everything from the
// record store and the graph. Writes are synchronous and errors returned.
func (s *IngestionService) RebuildIndexes(ctx context.Context) (*driving.RebuildStats, error) {
	s.writer.Flush()
	logger.Section("Index Rebuild")

	msgs, err := s.messages.ListMessages(ctx, domain.MessageFilter{})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	decisions, err := s.graph.ListDecisions(ctx, domain.DecisionFilter{})
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}

	if _, err := s.vectors.DeleteWhere(ctx, domain.IndexFilter{}); err != nil {
		return nil, fmt.Errorf("clear vector index: %w", err)
	}

	// Rebuild embeds inline with the usual fallback.
	embed := func(ctx context.Context, docs []domain.IndexDocument) error {
		vecs, model := s.embedder.EmbedBatch(ctx, documentTexts(docs))
		return s.upsertVectors(ctx, docs, vecs, model)
	}

	stats := &driving.RebuildStats{}
	byID := make(map[string]*domain.Message, len(msgs))
	var docs []domain.IndexDocument
	for i := range msgs {
		m := &msgs[i]
		byID[m.ID] = m
		chunkDocs, err := s.chunkMessage(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("index message %s: %w", m.ID, err)
		}
		if err := embed(ctx, chunkDocs); err != nil {
			return nil, fmt.Errorf("index message %s: %w", m.ID, err)
		}
		docs = append(docs, chunkDocs...)
		stats.Messages++
		stats.Chunks += len(chunkDocs)
	}

	var decisionDocs []domain.IndexDocument
	for i := range decisions {
		d := &decisions[i]
		m, ok := byID[d.MessageID]
		if !ok {
			logger.Warn("rebuild: %v: decision %s references missing message %s, skipped",
				domain.ErrIndexInconsistency, d.ID, d.MessageID)
			continue
		}
		decisionDocs = append(decisionDocs, decisionDocument(m, d))
		stats.Decisions++
	}
	if len(decisionDocs) > 0 {
		if err := embed(ctx, decisionDocs); err != nil {
			return nil, fmt.Errorf("index decisions: %w", err)
		}
	}
	docs = append(docs, decisionDocs...)

	if err := s.keywords.Rebuild(ctx, docs); err != nil {
		return nil, fmt.Errorf("rebuild keyword index: %w", err)
	}

	logger.Info("Rebuilt indices: %d messages, %d chunks, %d decisions", stats.Messages, stats.Chunks, stats.Decisions)
	return stats, nil
}
