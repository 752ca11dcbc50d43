package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driving"
)

type mockSuggestionService struct {
	suggestion *domain.Suggestion
	err        error
}

func (m *mockSuggestionService) Suggest(_ context.Context, messageID string) (*domain.Suggestion, error) {
	if m.err != nil {
		return nil, m.err
	}
	s := *m.suggestion
	s.MessageID = messageID
	return &s, nil
}

type mockRetrievalService struct {
	result *domain.RetrievalResult
	opts   domain.RetrieveOptions
}

func (m *mockRetrievalService) Retrieve(_ context.Context, opts domain.RetrieveOptions) (*domain.RetrievalResult, error) {
	m.opts = opts
	return m.result, nil
}

// fakeIngestionService keeps messages and decisions in memory.
type fakeIngestionService struct {
	messages  []domain.Message
	decisions []domain.Decision
	confirmed []domain.DecisionInput
	rebuilt   bool
	err       error
}

func (f *fakeIngestionService) IngestMessage(_ context.Context, msg *domain.Message) (*domain.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := *msg
	if out.ID == "" {
		out.ID = fmt.Sprintf("msg-%d", len(f.messages)+1)
	}
	for _, m := range f.messages {
		if m.ID == out.ID {
			return nil, fmt.Errorf("%w: message %s", domain.ErrAlreadyExists, out.ID)
		}
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	}
	f.messages = append(f.messages, out)
	return &out, nil
}

func (f *fakeIngestionService) ConfirmDecision(_ context.Context, in domain.DecisionInput) (*domain.Decision, error) {
	if f.err != nil {
		return nil, f.err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	f.confirmed = append(f.confirmed, in)
	d := domain.Decision{
		ID:              fmt.Sprintf("dec-%d", len(f.decisions)+1),
		MessageID:       in.MessageID,
		SenderCategory:  domain.SenderInvestor,
		AgentSuggestion: in.AgentSuggestion,
		HumanAction:     in.HumanAction,
		PrecedentIDs:    in.PrecedentIDs,
		CreatedAt:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	f.decisions = append(f.decisions, d)
	return &d, nil
}

func (f *fakeIngestionService) GetMessage(_ context.Context, id string) (*domain.Message, error) {
	for i := range f.messages {
		if f.messages[i].ID == id {
			return &f.messages[i], nil
		}
	}
	return nil, fmt.Errorf("%w: message %s", domain.ErrNotFound, id)
}

func (f *fakeIngestionService) ListMessages(_ context.Context, filter domain.MessageFilter) ([]domain.Message, error) {
	var out []domain.Message
	for _, m := range f.messages {
		if filter.SenderCategory == "" || m.SenderCategory == filter.SenderCategory {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeIngestionService) ListDecisions(_ context.Context, filter domain.DecisionFilter) ([]domain.Decision, error) {
	var out []domain.Decision
	for _, d := range f.decisions {
		if filter.MessageID != "" && d.MessageID != filter.MessageID {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeIngestionService) Precedents(_ context.Context, decisionID string) ([]domain.Decision, error) {
	for _, d := range f.decisions {
		if d.ID != decisionID {
			continue
		}
		var chain []domain.Decision
		for _, p := range d.PrecedentIDs {
			for _, c := range f.decisions {
				if c.ID == p {
					chain = append(chain, c)
				}
			}
		}
		return chain, nil
	}
	return nil, fmt.Errorf("%w: decision %s", domain.ErrNotFound, decisionID)
}

func (f *fakeIngestionService) Graph(context.Context) (*domain.Graph, error) {
	g := &domain.Graph{}
	for _, d := range f.decisions {
		g.Nodes = append(g.Nodes,
			domain.GraphNode{ID: domain.NodeID(domain.NodeMessage, d.MessageID), Type: domain.NodeMessage},
			domain.GraphNode{ID: domain.NodeID(domain.NodeDecision, d.ID), Type: domain.NodeDecision},
		)
		g.Edges = append(g.Edges, domain.GraphEdge{
			SourceID: domain.NodeID(domain.NodeMessage, d.MessageID),
			TargetID: domain.NodeID(domain.NodeDecision, d.ID),
			Type:     domain.EdgeHasDecision,
		})
	}
	return g, nil
}

func (f *fakeIngestionService) Reset(context.Context) (int, error) {
	n := len(f.decisions)
	f.decisions = nil
	return n, nil
}

func (f *fakeIngestionService) RebuildIndexes(context.Context) (*driving.RebuildStats, error) {
	f.rebuilt = true
	return &driving.RebuildStats{Messages: len(f.messages), Chunks: 2 * len(f.messages), Decisions: len(f.decisions)}, nil
}

type mockSettingsService struct {
	settings      domain.AppSettings
	embedProvider domain.AIProvider
	embedModel    string
	llmProvider   domain.AIProvider
	llmAPIKey     string
	reranker      domain.RerankerKind
	validateErr   error
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(s *domain.AppSettings) error {
	m.settings = *s
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(p domain.AIProvider, model, _ string) error {
	m.embedProvider, m.embedModel = p, model
	return nil
}

func (m *mockSettingsService) SetLLMProvider(p domain.AIProvider, _, apiKey string) error {
	m.llmProvider, m.llmAPIKey = p, apiKey
	return nil
}

func (m *mockSettingsService) SetReranker(kind domain.RerankerKind) error {
	m.reranker = kind
	return nil
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) ValidateEmbeddingConfig() error { return m.validateErr }

func (m *mockSettingsService) ValidateLLMConfig() error { return m.validateErr }

type testServices struct {
	suggestion *mockSuggestionService
	retrieval  *mockRetrievalService
	ingestion  *fakeIngestionService
	settings   *mockSettingsService
}

// setupTestServices installs fresh fakes and returns them with a restore func.
func setupTestServices() (*testServices, func()) {
	draft := "Thanks for the update, happy to talk this week."
	ts := &testServices{
		suggestion: &mockSuggestionService{suggestion: &domain.Suggestion{
			Action:         domain.ActionReplyNow,
			Tone:           domain.ToneWarm,
			Reasoning:      "Based on 3 prior investor decisions, you usually chose reply_now/warm.",
			PrecedentIDs:   []string{"dec-1", "dec-2", "dec-3"},
			PrecedentCount: 3,
			SourcesUsed:    []domain.RetrievalSource{domain.SourceKeyword, domain.SourceGraph},
			Draft:          &draft,
			Tier:           domain.TierPrecedent,
			Analysis:       domain.Analysis{Intent: "update", Topics: []string{"funding"}, Urgency: domain.UrgencyMedium, Source: "heuristic"},
		}},
		retrieval: &mockRetrievalService{result: &domain.RetrievalResult{
			Candidates: []domain.Candidate{{
				Key:         "chunk:m1_0",
				Kind:        domain.IndexKindChunk,
				MessageID:   "m1",
				Text:        "Seed round update from Priya",
				SourceRanks: map[domain.RetrievalSource]int{domain.SourceVector: 2, domain.SourceKeyword: 1},
				FusedScore:  0.0325,
				FusedRank:   1,
			}},
			SourcesUsed: []domain.RetrievalSource{domain.SourceVector, domain.SourceKeyword},
			Reranker:    "lexical",
		}},
		ingestion: &fakeIngestionService{},
		settings:  &mockSettingsService{settings: domain.DefaultAppSettings()},
	}

	SetServices(Services{
		Suggestion: ts.suggestion,
		Retrieval:  ts.retrieval,
		Ingestion:  ts.ingestion,
		Settings:   ts.settings,
	})
	return ts, func() { SetServices(Services{}) }
}
