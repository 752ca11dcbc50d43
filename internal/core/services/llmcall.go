package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driven"
)

// loadPrompt returns the stored template or the built-in one.
func loadPrompt(store driven.PromptStore, name string) string {
	if store != nil {
		if p, err := store.Load(name); err == nil && strings.TrimSpace(p) != "" {
			return p
		}
	}
	return driven.DefaultPrompts[name]
}

// chatJSON sends instructions as the system message and the structured
// context as the user message, bounded by timeout. Every failure wraps
// ErrLLMUnavailable.
func chatJSON(
	ctx context.Context, llm driven.LLMService, timeout time.Duration, instructions string, payload any,
) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode llm context: %w", err)
	}
	return chat(ctx, llm, timeout, instructions, string(body), true)
}

func chat(
	ctx context.Context, llm driven.LLMService, timeout time.Duration, system, user string, jsonMode bool,
) (string, error) {
	if llm == nil {
		return "", domain.ErrLLMUnavailable
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	out, err := llm.Chat(ctx, []driven.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, driven.ChatOptions{Temperature: 0, JSON: jsonMode})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	return out, nil
}

// decodeJSONObject parses the outermost JSON object in out.
func decodeJSONObject(out string, v any) error {
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start < 0 || end < start {
		return fmt.Errorf("%w: no JSON object in response", domain.ErrLLMUnavailable)
	}
	if err := json.Unmarshal([]byte(out[start:end+1]), v); err != nil {
		return fmt.Errorf("%w: malformed JSON: %w", domain.ErrLLMUnavailable, err)
	}
	return nil
}

type messagePayload struct {
	Sender         string `json:"sender"`
	SenderCategory string `json:"sender_category"`
	Channel        string `json:"channel"`
	Subject        string `json:"subject,omitempty"`
	Body           string `json:"body"`
}

func messageContext(msg *domain.Message) messagePayload {
	return messagePayload{
		Sender:         msg.SenderName,
		SenderCategory: string(msg.SenderCategory),
		Channel:        string(msg.Channel),
		Subject:        msg.Subject,
		Body:           msg.Body,
	}
}
