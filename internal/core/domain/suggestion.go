package domain

// Urgency is the analysed urgency of a message.
type Urgency string

// Urgency levels.
const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// IsValid returns true if the urgency is recognised.
func (u Urgency) IsValid() bool {
	return u == UrgencyLow || u == UrgencyMedium || u == UrgencyHigh
}

// Analysis holds intent, topic and urgency signals for a message.
type Analysis struct {
	Intent  string   `json:"intent"`
	Topics  []string `json:"topics"`
	Urgency Urgency  `json:"urgency"`

	// Source is "llm" or "heuristic".
	Source string `json:"source"`
}

// Tier identifies which fallback tier produced a suggestion.
type Tier string

// Fallback tiers, best first.
const (
	TierReasoned  Tier = "reasoned"
	TierPrecedent Tier = "precedent"
	TierDefault   Tier = "default"
)

// Suggestion is the decision engine's output. It is produced for every
// request regardless of tier.
type Suggestion struct {
	MessageID      string            `json:"message_id"`
	Action         Action            `json:"action"`
	Tone           Tone              `json:"tone"`
	Reasoning      string            `json:"reasoning"`
	PrecedentIDs   []string          `json:"precedent_ids"`
	PrecedentCount int               `json:"precedent_count"`
	SourcesUsed    []RetrievalSource `json:"sources_used"`
	Draft          *string           `json:"draft,omitempty"`
	Tier           Tier              `json:"tier"`
	Analysis       Analysis          `json:"analysis"`
}

// ActionTone returns the suggested pair.
func (s *Suggestion) ActionTone() ActionTone {
	return ActionTone{Action: s.Action, Tone: s.Tone}
}
