package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driven"
	"github.com/custodia-labs/precedent/internal/core/ports/driving"
	"github.com/custodia-labs/precedent/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// RetrievalService runs the retrievers concurrently, fuses their lists and
// reranks the result. A failing or slow source contributes nothing.
type RetrievalService struct {
	retrievers []Retriever
	messages   driven.MessageStore
	graph      driven.PrecedentGraph
	reranker   driven.Reranker
	settings   domain.RetrievalSettings
}

// NewRetrievalService creates a retrieval service. reranker may be nil.
func NewRetrievalService(
	retrievers []Retriever,
	messages driven.MessageStore,
	graph driven.PrecedentGraph,
	reranker driven.Reranker,
	settings domain.RetrievalSettings,
) *RetrievalService {
	return &RetrievalService{
		retrievers: retrievers,
		messages:   messages,
		graph:      graph,
		reranker:   reranker,
		settings:   settings,
	}
}

// Retrieve returns fused, reranked candidates with per-source provenance.
func (s *RetrievalService) Retrieve(
	ctx context.Context, opts domain.RetrieveOptions,
) (*domain.RetrievalResult, error) {
	if opts.Kind != "" && !opts.Kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidInput, opts.Kind)
	}
	if opts.SenderCategory != "" && !opts.SenderCategory.IsValid() {
		return nil, fmt.Errorf("%w: unknown sender category %q", domain.ErrInvalidInput, opts.SenderCategory)
	}

	res, _ := s.retrieve(ctx, opts)
	return res, nil
}

// retrieve also returns the hydrated decisions of decision candidates, in
// candidate order, so the engine does not read them twice.
func (s *RetrievalService) retrieve(
	ctx context.Context, opts domain.RetrieveOptions,
) (*domain.RetrievalResult, []domain.Decision) {
	logger.Section("Retrieval")
	res := &domain.RetrievalResult{
		Candidates:  []domain.Candidate{},
		SourcesUsed: []domain.RetrievalSource{},
	}
	if s.reranker != nil {
		res.Reranker = s.reranker.Name()
	}

	query := strings.TrimSpace(opts.Query)
	if query == "" && opts.SenderCategory == "" {
		logger.Debug("Empty query without category, returning no candidates")
		return res, nil
	}

	q := Query{
		Text:             query,
		SenderCategory:   opts.SenderCategory,
		Kind:             opts.Kind,
		ExcludeMessageID: opts.ExcludeMessageID,
	}
	lists := s.searchAll(ctx, q)
	for _, src := range domain.AllRetrievalSources() {
		if len(lists[src]) > 0 {
			res.SourcesUsed = append(res.SourcesUsed, src)
		}
	}

	fused := Fuse(lists, s.settings.RRFConstant)
	logger.Debug("Fused %d candidates from %v", len(fused), res.SourcesUsed)

	hydrated, decisions := s.hydrate(ctx, fused, opts.ExcludeMessageID)

	topK := opts.TopK
	if topK <= 0 {
		topK = s.settings.TopK
	}
	final := Rerank(ctx, s.reranker, query, hydrated, s.settings.RerankTopN, topK)

	kept := make([]domain.Decision, 0, len(final))
	for _, c := range final {
		if d, ok := decisions[c.Key]; ok && c.Kind == domain.IndexKindDecision {
			kept = append(kept, d)
		}
	}

	res.Candidates = final
	logger.Info("Retrieved %d candidates", len(final))
	return res, kept
}

// searchAll issues every retriever concurrently with its own timeout.
// Errors never cancel sibling searches.
func (s *RetrievalService) searchAll(
	ctx context.Context, q Query,
) map[domain.RetrievalSource][]domain.RankedHit {
	limit := s.settings.PerSourceLimit
	if limit <= 0 {
		limit = domain.DefaultAppSettings().Retrieval.PerSourceLimit
	}

	var mu sync.Mutex
	lists := make(map[domain.RetrievalSource][]domain.RankedHit, len(s.retrievers))

	var g errgroup.Group
	for _, r := range s.retrievers {
		g.Go(func() error {
			hits := s.searchOne(ctx, r, q, limit)
			mu.Lock()
			lists[r.Source()] = hits
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return lists
}

func (s *RetrievalService) searchOne(
	ctx context.Context, r Retriever, q Query, limit int,
) []domain.RankedHit {
	if s.settings.SourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.SourceTimeout)
		defer cancel()
	}

	start := time.Now()
	type result struct {
		hits []domain.RankedHit
		err  error
	}
	done := make(chan result, 1)
	go func() {
		hits, err := r.Search(ctx, q, limit)
		done <- result{hits, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			logger.Warn("%s retrieval failed, contributing no results: %v", r.Source(), res.err)
			return nil
		}
		logger.Debug("%s retrieval: %d hits in %s", r.Source(), len(res.hits), time.Since(start))
		return res.hits
	case <-ctx.Done():
		logger.Warn("%s retrieval abandoned after %s: %v", r.Source(), time.Since(start), ctx.Err())
		return nil
	}
}

// hydrate attaches text to candidates. Candidates whose message or
// decision no longer exists are dropped with a consistency warning.
func (s *RetrievalService) hydrate(
	ctx context.Context, candidates []domain.Candidate, excludeMessageID string,
) ([]domain.Candidate, map[string]domain.Decision) {
	out := make([]domain.Candidate, 0, len(candidates))
	decisions := make(map[string]domain.Decision)
	msgCache := make(map[string]*domain.Message)

	getMessage := func(id string) (*domain.Message, error) {
		if m, ok := msgCache[id]; ok {
			return m, nil
		}
		m, err := s.messages.GetMessage(ctx, id)
		if err != nil {
			return nil, err
		}
		msgCache[id] = m
		return m, nil
	}

	for _, c := range candidates {
		var decision *domain.Decision
		if c.Kind == domain.IndexKindDecision {
			d, err := s.graph.GetDecision(ctx, c.DecisionID)
			if err != nil {
				logDangling("decision", c.DecisionID, err)
				continue
			}
			decision = d
			c.MessageID = d.MessageID
		}
		if excludeMessageID != "" && c.MessageID == excludeMessageID {
			continue
		}

		msg, err := getMessage(c.MessageID)
		if err != nil {
			logDangling("message", c.MessageID, err)
			continue
		}

		if decision != nil {
			c.Text = DecisionText(msg, decision)
			decisions[c.Key] = *decision
		} else {
			c.Text = msg.Text()
		}
		out = append(out, c)
	}

	// Fused ranks stay contiguous after drops.
	for i := range out {
		out[i].FusedRank = i + 1
	}
	return out, decisions
}

func logDangling(kind, id string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("retrieval: %v: indexed %s %s has no record, skipped", domain.ErrIndexInconsistency, kind, id)
		return
	}
	logger.Warn("retrieval: cannot read %s %s, skipped: %v", kind, id, err)
}

// DecisionText is the indexed text of a decision: the message it was made
// for plus the human choice.
func DecisionText(msg *domain.Message, d *domain.Decision) string {
	return fmt.Sprintf("%s\nDecision: %s (%s)", msg.Text(), d.HumanAction, d.SenderCategory)
}
