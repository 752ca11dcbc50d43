package domain

import (
	"fmt"
	"strings"
	"time"
)

// Action is what the user does with a message.
type Action string

// Available actions.
const (
	ActionReplyNow   Action = "reply_now"
	ActionReplyLater Action = "reply_later"
	ActionIgnore     Action = "ignore"
)

// IsValid returns true if the action is recognised.
func (a Action) IsValid() bool {
	switch a {
	case ActionReplyNow, ActionReplyLater, ActionIgnore:
		return true
	default:
		return false
	}
}

// ImpliesReply returns true if the action results in a reply being written.
func (a Action) ImpliesReply() bool {
	return a == ActionReplyNow || a == ActionReplyLater
}

// String returns the string representation.
func (a Action) String() string {
	return string(a)
}

// Tone is the register of a reply.
type Tone string

// Available tones.
const (
	ToneWarm    Tone = "warm"
	ToneNeutral Tone = "neutral"
	ToneFormal  Tone = "formal"
)

// IsValid returns true if the tone is recognised.
func (t Tone) IsValid() bool {
	switch t {
	case ToneWarm, ToneNeutral, ToneFormal:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t Tone) String() string {
	return string(t)
}

// AllActions returns every action.
func AllActions() []Action {
	return []Action{ActionReplyNow, ActionReplyLater, ActionIgnore}
}

// AllTones returns every tone.
func AllTones() []Tone {
	return []Tone{ToneWarm, ToneNeutral, ToneFormal}
}

// ActionTone is an (action, tone) pair.
type ActionTone struct {
	Action Action `json:"action"`
	Tone   Tone   `json:"tone"`
}

// Validate returns ErrInvalidSuggestion unless both fields are enumerated values.
func (p ActionTone) Validate() error {
	if !p.Action.IsValid() {
		return fmt.Errorf("%w: action %q", ErrInvalidSuggestion, p.Action)
	}
	if !p.Tone.IsValid() {
		return fmt.Errorf("%w: tone %q", ErrInvalidSuggestion, p.Tone)
	}
	return nil
}

// String renders the pair as "action/tone".
func (p ActionTone) String() string {
	return string(p.Action) + "/" + string(p.Tone)
}

// DefaultActionTone returns the fixed suggestion for a category with no
// precedent. It never fails.
func DefaultActionTone(category SenderCategory) ActionTone {
	switch category {
	case SenderInvestor:
		return ActionTone{Action: ActionReplyNow, Tone: ToneNeutral}
	case SenderSupport:
		return ActionTone{Action: ActionReplyNow, Tone: ToneWarm}
	case SenderSales:
		return ActionTone{Action: ActionReplyLater, Tone: ToneFormal}
	default:
		return ActionTone{Action: ActionReplyLater, Tone: ToneNeutral}
	}
}

// Decision is a confirmed human choice for one message.
// Decisions are created once and never mutated.
type Decision struct {
	// ID uniquely identifies this decision.
	ID string `json:"id"`

	// MessageID is the message the decision was made for.
	MessageID string `json:"message_id"`

	// SenderCategory is copied from the message at confirmation time.
	SenderCategory SenderCategory `json:"sender_category"`

	// AgentSuggestion is what the engine proposed.
	AgentSuggestion ActionTone `json:"agent_suggestion"`

	// HumanAction is what the user chose.
	HumanAction ActionTone `json:"human_action"`

	// PrecedentIDs are earlier decisions used as evidence, in rank order.
	PrecedentIDs []string `json:"precedent_ids"`

	// Reasoning is the explanation shown with the suggestion.
	Reasoning string `json:"reasoning,omitempty"`

	// CreatedAt is the confirmation time.
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the pairs, ids and precedent list.
// Temporal ordering of precedents is enforced by the graph store.
func (d *Decision) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: decision id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(d.MessageID) == "" {
		return fmt.Errorf("%w: message id is required", ErrInvalidInput)
	}
	if err := d.AgentSuggestion.Validate(); err != nil {
		return fmt.Errorf("agent suggestion: %w", err)
	}
	if err := d.HumanAction.Validate(); err != nil {
		return fmt.Errorf("human action: %w", err)
	}
	for _, id := range d.PrecedentIDs {
		if id == d.ID {
			return fmt.Errorf("%w: decision %s references itself", ErrInvalidPrecedent, d.ID)
		}
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: empty precedent id", ErrInvalidPrecedent)
		}
	}
	return nil
}

// Overridden returns true if the human chose differently from the agent.
func (d *Decision) Overridden() bool {
	return d.AgentSuggestion != d.HumanAction
}

// DecisionInput is the confirmation payload from the presentation layer.
type DecisionInput struct {
	MessageID       string     `json:"message_id"`
	AgentSuggestion ActionTone `json:"agent_suggestion"`
	HumanAction     ActionTone `json:"human_action"`
	PrecedentIDs    []string   `json:"precedent_ids,omitempty"`
	Reasoning       string     `json:"reasoning,omitempty"`
}

// Validate checks the payload before a decision is built from it.
func (in DecisionInput) Validate() error {
	if strings.TrimSpace(in.MessageID) == "" {
		return fmt.Errorf("%w: message id is required", ErrInvalidInput)
	}
	if err := in.AgentSuggestion.Validate(); err != nil {
		return fmt.Errorf("agent suggestion: %w", err)
	}
	if err := in.HumanAction.Validate(); err != nil {
		return fmt.Errorf("human action: %w", err)
	}
	return nil
}

// DecisionFilter selects decisions in list queries.
type DecisionFilter struct {
	// SenderCategory restricts results to one category when set.
	SenderCategory SenderCategory

	// MessageID restricts results to one message when set.
	MessageID string

	// ExcludeMessageID drops decisions made for that message.
	ExcludeMessageID string

	// Limit caps the number of results. Zero means no limit.
	Limit int
}
