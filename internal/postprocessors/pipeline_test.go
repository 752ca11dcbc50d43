package postprocessors

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

// mockProcessor is a test processor that rewrites text or sets chunks.
type mockProcessor struct {
	name   string
	text   string
	chunks []domain.Chunk
	err    error
}

func (m *mockProcessor) Name() string {
	return m.name
}

func (m *mockProcessor) Process(_ context.Context, pm *domain.ProcessedMessage) (*domain.ProcessedMessage, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.text != "" {
		pm.Text = m.text
	}
	if m.chunks != nil {
		pm.Chunks = m.chunks
	}
	return pm, nil
}

func testMessage() *domain.Message {
	return &domain.Message{ID: "m-1", Subject: "Subject", Body: "test content"}
}

func TestNewPipeline(t *testing.T) {
	p := NewPipeline()
	if p == nil {
		t.Fatal("expected non-nil pipeline")
	}
	if p.Len() != 0 {
		t.Errorf("expected 0 processors, got %d", p.Len())
	}
}

func TestPipeline_Add(t *testing.T) {
	p := NewPipeline()
	p.Add(&mockProcessor{name: "test"})

	if p.Len() != 1 {
		t.Errorf("expected 1 processor, got %d", p.Len())
	}
}

func TestPipeline_Process_NilMessage(t *testing.T) {
	_, err := NewPipeline().Process(context.Background(), nil)
	if err == nil {
		t.Error("expected error for nil message")
	}
}

func TestPipeline_Process_EmptyPipeline(t *testing.T) {
	pm, err := NewPipeline().Process(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pm.Text != "Subject\ntest content" {
		t.Errorf("expected message text, got %q", pm.Text)
	}
	if pm.Chunks != nil {
		t.Errorf("expected nil chunks from empty pipeline, got %v", pm.Chunks)
	}
}

func TestPipeline_Process_MultipleProcessors(t *testing.T) {
	chunks := []domain.Chunk{{ID: "m-1#0", Text: "normalised"}}

	p := NewPipeline(
		&mockProcessor{name: "normaliser", text: "normalised"},
		&mockProcessor{name: "chunker", chunks: chunks},
	)

	pm, err := p.Process(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pm.Text != "normalised" {
		t.Errorf("expected normalised text, got %q", pm.Text)
	}
	if len(pm.Chunks) != 1 {
		t.Errorf("expected 1 chunk, got %d", len(pm.Chunks))
	}
}

func TestPipeline_Process_ProcessorError(t *testing.T) {
	expectedErr := errors.New("processor failed")

	p := NewPipeline(&mockProcessor{name: "failing", err: expectedErr})

	_, err := p.Process(context.Background(), testMessage())
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected wrapped error, got: %v", err)
	}
}

func TestBuild_DefaultPipeline(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	p, err := Build(r, domain.DefaultPipelineConfig())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if p.Len() != 2 {
		t.Fatalf("expected 2 processors, got %d", p.Len())
	}

	msg := &domain.Message{
		ID:          "m-html",
		Body:        "<p>" + strings.Repeat("metrics ", 600) + "</p>",
		ContentType: domain.ContentTypeHTML,
	}
	pm, err := p.Process(context.Background(), msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(pm.Text, "<p>") {
		t.Error("expected html to be normalised")
	}
	if len(pm.Chunks) != 2 {
		t.Errorf("expected 2 chunks for 600 words, got %d", len(pm.Chunks))
	}
}

func TestBuild_UnknownProcessor(t *testing.T) {
	r := NewRegistry()
	_, err := Build(r, domain.PipelineConfig{Processors: []string{"stemmer"}})
	if !errors.Is(err, domain.ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
}
