package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driven"
	"github.com/custodia-labs/precedent/internal/logger"
	"github.com/custodia-labs/precedent/internal/textindex"
)

const maxTopics = 5

// Analyzer extracts intent, topics and urgency from a message. The LLM is
// tried first; the keyword heuristic always answers.
type Analyzer struct {
	llm     driven.LLMService
	prompts driven.PromptStore
	timeout time.Duration
}

// NewAnalyzer creates an analyzer. llm and prompts may be nil.
func NewAnalyzer(llm driven.LLMService, prompts driven.PromptStore, timeout time.Duration) *Analyzer {
	return &Analyzer{llm: llm, prompts: prompts, timeout: timeout}
}

// Analyze never fails.
func (a *Analyzer) Analyze(ctx context.Context, msg *domain.Message) domain.Analysis {
	if a.llm != nil {
		analysis, err := a.analyzeLLM(ctx, msg)
		if err == nil {
			return analysis
		}
		logger.Warn("analysis: %v, using heuristic", err)
	}
	return HeuristicAnalysis(msg)
}

type llmAnalysis struct {
	Intent  string   `json:"intent"`
	Topics  []string `json:"topics"`
	Urgency string   `json:"urgency"`
}

func (a *Analyzer) analyzeLLM(ctx context.Context, msg *domain.Message) (domain.Analysis, error) {
	out, err := chatJSON(ctx, a.llm, a.timeout, loadPrompt(a.prompts, driven.PromptAnalyse), messageContext(msg))
	if err != nil {
		return domain.Analysis{}, err
	}

	var parsed llmAnalysis
	if err := decodeJSONObject(out, &parsed); err != nil {
		return domain.Analysis{}, err
	}
	urgency := domain.Urgency(strings.ToLower(strings.TrimSpace(parsed.Urgency)))
	if !urgency.IsValid() || strings.TrimSpace(parsed.Intent) == "" {
		return domain.Analysis{}, fmt.Errorf("%w: incomplete analysis %q", domain.ErrLLMUnavailable, out)
	}

	topics := make([]string, 0, len(parsed.Topics))
	for _, t := range parsed.Topics {
		if t = strings.TrimSpace(t); t != "" && len(topics) < maxTopics {
			topics = append(topics, t)
		}
	}
	return domain.Analysis{
		Intent:  strings.TrimSpace(parsed.Intent),
		Topics:  topics,
		Urgency: urgency,
		Source:  "llm",
	}, nil
}

// intentRules are checked in order; the first rule with a matching term wins.
var intentRules = []struct {
	intent string
	terms  []string
}{
	{"report a problem", []string{"error", "bug", "broken", "crash", "issue", "spins", "fails", "failing", "down"}},
	{"request a meeting", []string{"meeting", "demo", "call", "sync", "schedule", "chat", "chatting", "available"}},
	{"request information", []string{"share", "send", "update", "metrics", "dashboard", "deck", "report", "numbers"}},
	{"request a feature", []string{"feature", "request", "add", "support", "could"}},
	{"promotion", []string{"webinar", "register", "newsletter", "digest", "unsubscribe", "offer", "invited"}},
	{"offer help", []string{"intro", "intros", "help", "congrats", "coverage"}},
}

var urgentTerms = map[string]bool{
	"urgent": true, "asap": true, "immediately": true, "today": true, "tonight": true,
	"deadline": true, "critical": true, "outage": true, "down": true, "broken": true,
	"emergency": true,
}

var soonTerms = map[string]bool{
	"tomorrow": true, "friday": true, "week": true, "soon": true, "error": true,
	"meeting": true, "board": true, "weeks": true, "monday": true,
}

// HeuristicAnalysis classifies a message from its words alone.
func HeuristicAnalysis(msg *domain.Message) domain.Analysis {
	tokens := textindex.Tokenize(msg.Text())
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}

	intent := "general"
rules:
	for _, rule := range intentRules {
		for _, term := range rule.terms {
			if set[term] {
				intent = rule.intent
				break rules
			}
		}
	}

	urgency := domain.UrgencyLow
	for t := range set {
		if urgentTerms[t] {
			urgency = domain.UrgencyHigh
			break
		}
		if soonTerms[t] {
			urgency = domain.UrgencyMedium
		}
	}

	return domain.Analysis{
		Intent:  intent,
		Topics:  topTerms(tokens, maxTopics),
		Urgency: urgency,
		Source:  "heuristic",
	}
}

// topTerms returns the n most frequent tokens, ties by first appearance.
func topTerms(tokens []string, n int) []string {
	tf := textindex.TermFrequencies(tokens)
	terms := textindex.Unique(tokens)
	sort.SliceStable(terms, func(i, j int) bool { return tf[terms[i]] > tf[terms[j]] })
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}
