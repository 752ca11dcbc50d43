// Package fixtures loads seed inboxes from YAML for demos and tests.
package fixtures

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

//go:embed inbox.yaml
var defaultInbox []byte

// MessageFixture is one seeded message.
type MessageFixture struct {
	ID             string    `yaml:"id"`
	SenderName     string    `yaml:"sender_name"`
	SenderCategory string    `yaml:"sender_category"`
	Channel        string    `yaml:"channel"`
	Subject        string    `yaml:"subject"`
	Body           string    `yaml:"body"`
	ContentType    string    `yaml:"content_type"`
	ReceivedAt     time.Time `yaml:"received_at"`
}

// DecisionFixture is one seeded human decision.
type DecisionFixture struct {
	MessageID string `yaml:"message_id"`
	Action    string `yaml:"action"`
	Tone      string `yaml:"tone"`

	// Agent defaults to the human choice when empty.
	AgentAction string `yaml:"agent_action"`
	AgentTone   string `yaml:"agent_tone"`
}

// Seed is the root of a fixture file.
type Seed struct {
	// Start is the receive time of the first message that has none.
	// Later messages without a time are spaced one minute apart.
	Start     time.Time         `yaml:"start"`
	Messages  []MessageFixture  `yaml:"messages"`
	Decisions []DecisionFixture `yaml:"decisions"`
}

// Default returns the built-in demo inbox.
func Default() (*Seed, error) {
	return Parse(defaultInbox)
}

// LoadFile reads a seed file.
func LoadFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Load reads a seed from r.
func Load(r io.Reader) (*Seed, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML. Unknown fields are rejected.
func Parse(data []byte) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return &seed, nil
		}
		return nil, fmt.Errorf("%w: parse seed: %w", domain.ErrInvalidInput, err)
	}
	return &seed, nil
}

// DomainMessages converts and validates the seeded messages.
// Messages without an id get "seed-<n>", 1-based.
func (s *Seed) DomainMessages() ([]domain.Message, error) {
	start := s.Start
	if start.IsZero() {
		start = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	}

	msgs := make([]domain.Message, 0, len(s.Messages))
	seen := make(map[string]bool, len(s.Messages))
	for i, f := range s.Messages {
		m := domain.Message{
			ID:             f.ID,
			SenderName:     f.SenderName,
			SenderCategory: domain.SenderCategory(f.SenderCategory),
			Channel:        domain.Channel(f.Channel),
			Subject:        f.Subject,
			Body:           f.Body,
			ContentType:    domain.ContentType(f.ContentType),
			CreatedAt:      f.ReceivedAt,
		}
		if m.ID == "" {
			m.ID = fmt.Sprintf("seed-%d", i+1)
		}
		if m.Channel == "" {
			m.Channel = domain.ChannelEmail
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = start.Add(time.Duration(i) * time.Minute)
		}
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("message %d: %w", i+1, err)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("%w: duplicate message id %q", domain.ErrInvalidInput, m.ID)
		}
		seen[m.ID] = true
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// DecisionInputs converts and validates the seeded decisions, in file order.
func (s *Seed) DecisionInputs() ([]domain.DecisionInput, error) {
	out := make([]domain.DecisionInput, 0, len(s.Decisions))
	for i, f := range s.Decisions {
		human := domain.ActionTone{Action: domain.Action(f.Action), Tone: domain.Tone(f.Tone)}
		agent := human
		if f.AgentAction != "" {
			agent.Action = domain.Action(f.AgentAction)
		}
		if f.AgentTone != "" {
			agent.Tone = domain.Tone(f.AgentTone)
		}
		in := domain.DecisionInput{MessageID: f.MessageID, AgentSuggestion: agent, HumanAction: human}
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("decision %d: %w", i+1, err)
		}
		out = append(out, in)
	}
	return out, nil
}
