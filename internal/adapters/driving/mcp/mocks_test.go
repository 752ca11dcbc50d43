package mcp

import (
	"context"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driving"
)

// mockSuggestionService is a mock implementation of driving.SuggestionService.
type mockSuggestionService struct {
	suggestion *domain.Suggestion
	err        error
	calledWith string
}

func (m *mockSuggestionService) Suggest(_ context.Context, messageID string) (*domain.Suggestion, error) {
	m.calledWith = messageID
	return m.suggestion, m.err
}

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	result *domain.RetrievalResult
	err    error
	opts   domain.RetrieveOptions
}

func (m *mockRetrievalService) Retrieve(_ context.Context, opts domain.RetrieveOptions) (*domain.RetrievalResult, error) {
	m.opts = opts
	return m.result, m.err
}

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	message    *domain.Message
	decision   *domain.Decision
	decisions  []domain.Decision
	graph      *domain.Graph
	err        error
	ingested   *domain.Message
	confirmed  domain.DecisionInput
	resetCount int
}

func (m *mockIngestionService) IngestMessage(_ context.Context, msg *domain.Message) (*domain.Message, error) {
	m.ingested = msg
	if m.err != nil {
		return nil, m.err
	}
	out := *msg
	if out.ID == "" {
		out.ID = "generated-id"
	}
	return &out, nil
}

func (m *mockIngestionService) ConfirmDecision(_ context.Context, input domain.DecisionInput) (*domain.Decision, error) {
	m.confirmed = input
	return m.decision, m.err
}

func (m *mockIngestionService) GetMessage(_ context.Context, _ string) (*domain.Message, error) {
	return m.message, m.err
}

func (m *mockIngestionService) ListMessages(_ context.Context, _ domain.MessageFilter) ([]domain.Message, error) {
	if m.message == nil {
		return nil, m.err
	}
	return []domain.Message{*m.message}, m.err
}

func (m *mockIngestionService) ListDecisions(_ context.Context, _ domain.DecisionFilter) ([]domain.Decision, error) {
	return m.decisions, m.err
}

func (m *mockIngestionService) Precedents(_ context.Context, _ string) ([]domain.Decision, error) {
	return m.decisions, m.err
}

func (m *mockIngestionService) Graph(_ context.Context) (*domain.Graph, error) {
	return m.graph, m.err
}

func (m *mockIngestionService) Reset(_ context.Context) (int, error) {
	return m.resetCount, m.err
}

func (m *mockIngestionService) RebuildIndexes(_ context.Context) (*driving.RebuildStats, error) {
	return &driving.RebuildStats{}, m.err
}

func validPorts() *Ports {
	return &Ports{
		Suggestion: &mockSuggestionService{},
		Ingestion:  &mockIngestionService{},
		Retrieval:  &mockRetrievalService{},
	}
}
