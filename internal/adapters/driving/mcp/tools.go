package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

// SuggestInput is the input schema for the suggest tool.
type SuggestInput struct {
	MessageID string `json:"message_id" jsonschema:"id of a stored message"`
}

// SuggestOutput is the output schema for the suggest tool.
type SuggestOutput struct {
	MessageID      string   `json:"message_id"`
	Action         string   `json:"action"`
	Tone           string   `json:"tone"`
	Reasoning      string   `json:"reasoning"`
	Tier           string   `json:"tier"`
	PrecedentIDs   []string `json:"precedent_ids"`
	PrecedentCount int      `json:"precedent_count"`
	SourcesUsed    []string `json:"sources_used"`
	Draft          string   `json:"draft,omitempty"`
	Intent         string   `json:"intent"`
	Topics         []string `json:"topics"`
	Urgency        string   `json:"urgency"`
}

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query          string `json:"query" jsonschema:"text to search for"`
	SenderCategory string `json:"sender_category,omitempty" jsonschema:"investor, sales, support or other"`
	Kind           string `json:"kind,omitempty" jsonschema:"chunk or decision; empty searches both"`
	Limit          int    `json:"limit,omitempty" jsonschema:"maximum number of candidates (default 5)"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Candidates  []CandidateOutput `json:"candidates"`
	SourcesUsed []string          `json:"sources_used"`
	Reranker    string            `json:"reranker,omitempty"`
	Count       int               `json:"count"`
}

// CandidateOutput is one fused retrieval candidate.
type CandidateOutput struct {
	Key         string         `json:"key"`
	Kind        string         `json:"kind"`
	MessageID   string         `json:"message_id"`
	DecisionID  string         `json:"decision_id,omitempty"`
	Text        string         `json:"text"`
	FusedRank   int            `json:"fused_rank"`
	FusedScore  float64        `json:"fused_score"`
	RerankScore float64        `json:"rerank_score"`
	SourceRanks map[string]int `json:"source_ranks"`
}

// ConfirmDecisionInput is the input schema for the confirm_decision tool.
type ConfirmDecisionInput struct {
	MessageID    string   `json:"message_id" jsonschema:"id of the message the decision is for"`
	Action       string   `json:"action" jsonschema:"chosen action: reply_now, reply_later or ignore"`
	Tone         string   `json:"tone" jsonschema:"chosen tone: warm, neutral or formal"`
	AgentAction  string   `json:"agent_action,omitempty" jsonschema:"action that was suggested; defaults to the chosen action"`
	AgentTone    string   `json:"agent_tone,omitempty" jsonschema:"tone that was suggested; defaults to the chosen tone"`
	PrecedentIDs []string `json:"precedent_ids,omitempty" jsonschema:"decision ids shown as precedent, in rank order"`
	Reasoning    string   `json:"reasoning,omitempty" jsonschema:"explanation shown with the suggestion"`
}

// DecisionOutput is the output schema for the confirm_decision tool.
type DecisionOutput struct {
	DecisionID     string   `json:"decision_id"`
	MessageID      string   `json:"message_id"`
	SenderCategory string   `json:"sender_category"`
	Action         string   `json:"action"`
	Tone           string   `json:"tone"`
	Overridden     bool     `json:"overridden"`
	PrecedentIDs   []string `json:"precedent_ids"`
	CreatedAt      string   `json:"created_at"`
}

// IngestMessageInput is the input schema for the ingest_message tool.
type IngestMessageInput struct {
	ID             string `json:"id,omitempty" jsonschema:"message id; generated when empty"`
	SenderName     string `json:"sender_name" jsonschema:"display name or address of the sender"`
	SenderCategory string `json:"sender_category" jsonschema:"investor, sales, support or other"`
	Channel        string `json:"channel,omitempty" jsonschema:"where the message arrived (default email)"`
	Subject        string `json:"subject,omitempty"`
	Body           string `json:"body" jsonschema:"message content"`
	ContentType    string `json:"content_type,omitempty" jsonschema:"text/plain or text/html"`
	ReceivedAt     string `json:"received_at,omitempty" jsonschema:"RFC 3339 receive time; defaults to now"`
}

// IngestMessageOutput is the output schema for the ingest_message tool.
type IngestMessageOutput struct {
	MessageID      string `json:"message_id"`
	SenderCategory string `json:"sender_category"`
	CreatedAt      string `json:"created_at"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "suggest",
		Description: "Suggest an action and tone for a stored message, explained by prior decisions",
	}, s.handleSuggest)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "confirm_decision",
		Description: "Record the action and tone the user chose for a message",
	}, s.handleConfirmDecision)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_message",
		Description: "Store and index an inbound message",
	}, s.handleIngestMessage)

	if s.ports.Retrieval != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "retrieve",
			Description: "Fused vector, keyword and graph retrieval over messages and decisions",
		}, s.handleRetrieve)
	}
}

func (s *Server) handleSuggest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SuggestInput,
) (*mcp.CallToolResult, SuggestOutput, error) {
	if strings.TrimSpace(input.MessageID) == "" {
		return nil, SuggestOutput{}, fmt.Errorf("%w: message_id is required", domain.ErrInvalidInput)
	}

	sug, err := s.ports.Suggestion.Suggest(ctx, input.MessageID)
	if err != nil {
		return nil, SuggestOutput{}, err
	}

	out := SuggestOutput{
		MessageID:      sug.MessageID,
		Action:         string(sug.Action),
		Tone:           string(sug.Tone),
		Reasoning:      sug.Reasoning,
		Tier:           string(sug.Tier),
		PrecedentIDs:   nonNil(sug.PrecedentIDs),
		PrecedentCount: sug.PrecedentCount,
		SourcesUsed:    sourceNames(sug.SourcesUsed),
		Intent:         sug.Analysis.Intent,
		Topics:         nonNil(sug.Analysis.Topics),
		Urgency:        string(sug.Analysis.Urgency),
	}
	if sug.Draft != nil {
		out.Draft = *sug.Draft
	}
	return nil, out, nil
}

func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	res, err := s.ports.Retrieval.Retrieve(ctx, domain.RetrieveOptions{
		Query:          input.Query,
		SenderCategory: domain.SenderCategory(input.SenderCategory),
		Kind:           domain.IndexKind(input.Kind),
		TopK:           input.Limit,
	})
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	out := RetrieveOutput{
		Candidates:  make([]CandidateOutput, len(res.Candidates)),
		SourcesUsed: sourceNames(res.SourcesUsed),
		Reranker:    res.Reranker,
		Count:       len(res.Candidates),
	}
	for i, c := range res.Candidates {
		ranks := make(map[string]int, len(c.SourceRanks))
		for src, r := range c.SourceRanks {
			ranks[string(src)] = r
		}
		out.Candidates[i] = CandidateOutput{
			Key:         c.Key,
			Kind:        string(c.Kind),
			MessageID:   c.MessageID,
			DecisionID:  c.DecisionID,
			Text:        c.Text,
			FusedRank:   c.FusedRank,
			FusedScore:  c.FusedScore,
			RerankScore: c.RerankScore,
			SourceRanks: ranks,
		}
	}
	return nil, out, nil
}

func (s *Server) handleConfirmDecision(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ConfirmDecisionInput,
) (*mcp.CallToolResult, DecisionOutput, error) {
	human := domain.ActionTone{Action: domain.Action(input.Action), Tone: domain.Tone(input.Tone)}
	agent := human
	if input.AgentAction != "" {
		agent.Action = domain.Action(input.AgentAction)
	}
	if input.AgentTone != "" {
		agent.Tone = domain.Tone(input.AgentTone)
	}

	d, err := s.ports.Ingestion.ConfirmDecision(ctx, domain.DecisionInput{
		MessageID:       input.MessageID,
		AgentSuggestion: agent,
		HumanAction:     human,
		PrecedentIDs:    input.PrecedentIDs,
		Reasoning:       input.Reasoning,
	})
	if err != nil {
		return nil, DecisionOutput{}, err
	}

	return nil, DecisionOutput{
		DecisionID:     d.ID,
		MessageID:      d.MessageID,
		SenderCategory: string(d.SenderCategory),
		Action:         string(d.HumanAction.Action),
		Tone:           string(d.HumanAction.Tone),
		Overridden:     d.Overridden(),
		PrecedentIDs:   nonNil(d.PrecedentIDs),
		CreatedAt:      d.CreatedAt.Format(time.RFC3339),
	}, nil
}

func (s *Server) handleIngestMessage(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestMessageInput,
) (*mcp.CallToolResult, IngestMessageOutput, error) {
	msg := &domain.Message{
		ID:             input.ID,
		SenderName:     input.SenderName,
		SenderCategory: domain.SenderCategory(input.SenderCategory),
		Channel:        domain.Channel(input.Channel),
		Subject:        input.Subject,
		Body:           input.Body,
		ContentType:    domain.ContentType(input.ContentType),
	}
	if input.ReceivedAt != "" {
		at, err := time.Parse(time.RFC3339, input.ReceivedAt)
		if err != nil {
			return nil, IngestMessageOutput{}, fmt.Errorf("%w: received_at: %w", domain.ErrInvalidInput, err)
		}
		msg.CreatedAt = at.UTC()
	}

	stored, err := s.ports.Ingestion.IngestMessage(ctx, msg)
	if err != nil {
		return nil, IngestMessageOutput{}, err
	}
	return nil, IngestMessageOutput{
		MessageID:      stored.ID,
		SenderCategory: string(stored.SenderCategory),
		CreatedAt:      stored.CreatedAt.Format(time.RFC3339),
	}, nil
}

func sourceNames(sources []domain.RetrievalSource) []string {
	out := make([]string, len(sources))
	for i, src := range sources {
		out[i] = string(src)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
