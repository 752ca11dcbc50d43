package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driven"
	"github.com/custodia-labs/precedent/internal/core/ports/driving"
	"github.com/custodia-labs/precedent/internal/logger"
)

// Ensure DecisionEngine implements the interface.
var _ driving.SuggestionService = (*DecisionEngine)(nil)

// DecisionEngine turns a message into a suggestion through ordered tiers.
type DecisionEngine struct {
	messages  driven.MessageStore
	retrieval *RetrievalService
	analyzer  *Analyzer
	llm       driven.LLMService
	prompts   driven.PromptStore
	settings  domain.EngineSettings
}

// NewDecisionEngine creates a decision engine. llm and prompts may be nil.
func NewDecisionEngine(
	messages driven.MessageStore,
	retrieval *RetrievalService,
	analyzer *Analyzer,
	llm driven.LLMService,
	prompts driven.PromptStore,
	settings domain.EngineSettings,
) *DecisionEngine {
	return &DecisionEngine{
		messages:  messages,
		retrieval: retrieval,
		analyzer:  analyzer,
		llm:       llm,
		prompts:   prompts,
		settings:  settings,
	}
}

// request is the state of one suggestion.
type request struct {
	msg        *domain.Message
	analysis   domain.Analysis
	sources    []domain.RetrievalSource
	precedents []domain.Decision
	tally      Tally
}

// tier produces a complete suggestion or declines.
type tier struct {
	name   domain.Tier
	decide func(ctx context.Context, req *request) (*domain.Suggestion, bool)
}

func (e *DecisionEngine) tiers() []tier {
	return []tier{
		{name: domain.TierReasoned, decide: e.reasoned},
		{name: domain.TierPrecedent, decide: e.precedent},
		{name: domain.TierDefault, decide: e.fallback},
	}
}

// Suggest returns a suggestion for the stored message. Only a failure to
// read the message is returned.
func (e *DecisionEngine) Suggest(ctx context.Context, messageID string) (*domain.Suggestion, error) {
	msg, err := e.messages.GetMessage(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", messageID, err)
	}

	logger.Section("Suggestion")
	logger.Debug("Message %s from %s (%s)", msg.ID, msg.SenderName, msg.SenderCategory)

	if e.settings.RequestCeiling > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.settings.RequestCeiling)
		defer cancel()
	}

	req := &request{msg: msg}
	req.analysis = e.analyzer.Analyze(ctx, msg)
	logger.Debug("Analysis (%s): intent=%q urgency=%s topics=%v",
		req.analysis.Source, req.analysis.Intent, req.analysis.Urgency, req.analysis.Topics)

	// A message is never its own precedent. Its decisions are excluded
	// inside each source so they cannot take a top-K slot.
	res, decisions := e.retrieval.retrieve(ctx, domain.RetrieveOptions{
		Query:            msg.Text(),
		SenderCategory:   msg.SenderCategory,
		Kind:             domain.IndexKindDecision,
		ExcludeMessageID: msg.ID,
	})
	req.sources = res.SourcesUsed
	for _, d := range decisions {
		if d.SenderCategory != msg.SenderCategory {
			continue
		}
		req.precedents = append(req.precedents, d)
	}
	req.tally = Aggregate(req.precedents)

	for _, t := range e.tiers() {
		s, ok := t.decide(ctx, req)
		if !ok {
			logger.Debug("Tier %s declined", t.name)
			continue
		}
		s.Tier = t.name
		s.MessageID = msg.ID
		s.PrecedentIDs = req.tally.DecisionIDs
		s.PrecedentCount = req.tally.Count
		s.SourcesUsed = req.sources
		s.Analysis = req.analysis
		logger.Info("Suggestion for %s: %s (%s tier, %d precedents)", msg.ID, s.ActionTone(), t.name, s.PrecedentCount)
		return s, nil
	}

	// The default tier never declines.
	return nil, errors.New("decision engine: no tier produced a suggestion")
}

type reasonPayload struct {
	Message   messagePayload   `json:"message"`
	Analysis  domain.Analysis  `json:"analysis"`
	Precedent precedentPayload `json:"precedent"`
}

type precedentPayload struct {
	Count       int                   `json:"count"`
	Majority    domain.ActionTone     `json:"majority"`
	ActionVotes map[domain.Action]int `json:"action_votes"`
	ToneVotes   map[domain.Tone]int   `json:"tone_votes"`
	Examples    []precedentExample    `json:"examples"`
}

type precedentExample struct {
	Decided string            `json:"decided"`
	Choice  domain.ActionTone `json:"choice"`
}

type reasonResponse struct {
	Action    string `json:"action"`
	Tone      string `json:"tone"`
	Reasoning string `json:"reasoning"`
}

// reasoned asks the LLM for the final choice. It declines without an LLM,
// without precedent, past the request ceiling, or on any invalid answer.
func (e *DecisionEngine) reasoned(ctx context.Context, req *request) (*domain.Suggestion, bool) {
	if e.llm == nil || req.tally.Count == 0 || ctx.Err() != nil {
		return nil, false
	}

	payload := reasonPayload{
		Message:  messageContext(req.msg),
		Analysis: req.analysis,
		Precedent: precedentPayload{
			Count:       req.tally.Count,
			Majority:    req.tally.Majority,
			ActionVotes: req.tally.ActionVotes,
			ToneVotes:   req.tally.ToneVotes,
		},
	}
	for _, d := range req.precedents {
		payload.Precedent.Examples = append(payload.Precedent.Examples, precedentExample{
			Decided: d.CreatedAt.Format(time.RFC3339),
			Choice:  d.HumanAction,
		})
	}

	out, err := chatJSON(ctx, e.llm, e.settings.ServiceTimeout, loadPrompt(e.prompts, driven.PromptReason), payload)
	if err != nil {
		logger.Warn("reasoning: %v", err)
		return nil, false
	}
	var parsed reasonResponse
	if err := decodeJSONObject(out, &parsed); err != nil {
		logger.Warn("reasoning: %v", err)
		return nil, false
	}

	choice := domain.ActionTone{
		Action: domain.Action(strings.ToLower(strings.TrimSpace(parsed.Action))),
		Tone:   domain.Tone(strings.ToLower(strings.TrimSpace(parsed.Tone))),
	}
	if err := choice.Validate(); err != nil {
		logger.Warn("reasoning: discarded: %v", err)
		return nil, false
	}

	reasoning := strings.TrimSpace(parsed.Reasoning)
	if reasoning == "" {
		reasoning = req.tally.Reasoning(req.msg.SenderCategory)
	}
	s := &domain.Suggestion{Action: choice.Action, Tone: choice.Tone, Reasoning: reasoning}
	if e.settings.Drafts && choice.Action.ImpliesReply() {
		s.Draft = e.draft(ctx, req.msg, choice.Tone)
	}
	return s, true
}

// precedent reports the tally majority.
func (e *DecisionEngine) precedent(_ context.Context, req *request) (*domain.Suggestion, bool) {
	if req.tally.Count == 0 {
		return nil, false
	}
	return &domain.Suggestion{
		Action:    req.tally.Majority.Action,
		Tone:      req.tally.Majority.Tone,
		Reasoning: req.tally.Reasoning(req.msg.SenderCategory),
	}, true
}

// fallback uses the fixed table for the sender category.
func (e *DecisionEngine) fallback(_ context.Context, req *request) (*domain.Suggestion, bool) {
	def := domain.DefaultActionTone(req.msg.SenderCategory)
	return &domain.Suggestion{
		Action: def.Action,
		Tone:   def.Tone,
		Reasoning: fmt.Sprintf("No prior %s decisions yet, so this is the default for %s senders: %s.",
			req.msg.SenderCategory, req.msg.SenderCategory, def),
	}, true
}

// draft returns nil on any failure.
func (e *DecisionEngine) draft(ctx context.Context, msg *domain.Message, tone domain.Tone) *string {
	if ctx.Err() != nil {
		return nil
	}
	prompt := loadPrompt(e.prompts, driven.PromptDraft)
	if strings.Contains(prompt, "%s") {
		prompt = fmt.Sprintf(prompt, tone)
	} else {
		prompt += "\nTone: " + string(tone)
	}

	out, err := chat(ctx, e.llm, e.settings.ServiceTimeout, prompt, msg.Text(), false)
	if err != nil {
		logger.Warn("draft: %v", err)
		return nil
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return nil
	}
	return &out
}
