package services

import (
	"fmt"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

// Tally counts the human choices among a precedent set.
type Tally struct {
	// Count is the number of precedent decisions.
	Count int

	// Majority is the winning action and tone, voted independently.
	Majority domain.ActionTone

	ActionVotes map[domain.Action]int
	ToneVotes   map[domain.Tone]int

	// DecisionIDs lists the precedents in input order.
	DecisionIDs []string
}

// Aggregate tallies human actions and tones. A tie goes to the value of the
// most recent decision among the tied ones. An empty set returns a zero
// Tally.
func Aggregate(decisions []domain.Decision) Tally {
	t := Tally{
		ActionVotes: make(map[domain.Action]int),
		ToneVotes:   make(map[domain.Tone]int),
		DecisionIDs: make([]string, 0, len(decisions)),
	}
	if len(decisions) == 0 {
		return t
	}

	latestAction := make(map[domain.Action]int)
	latestTone := make(map[domain.Tone]int)
	for i, d := range decisions {
		t.Count++
		t.DecisionIDs = append(t.DecisionIDs, d.ID)
		a, tone := d.HumanAction.Action, d.HumanAction.Tone
		t.ActionVotes[a]++
		t.ToneVotes[tone]++
		if j, ok := latestAction[a]; !ok || newer(decisions[i], decisions[j]) {
			latestAction[a] = i
		}
		if j, ok := latestTone[tone]; !ok || newer(decisions[i], decisions[j]) {
			latestTone[tone] = i
		}
	}

	t.Majority.Action = pickMajority(domain.AllActions(), t.ActionVotes, latestAction, decisions)
	t.Majority.Tone = pickMajority(domain.AllTones(), t.ToneVotes, latestTone, decisions)
	return t
}

// newer orders by creation time, then id for identical timestamps.
func newer(a, b domain.Decision) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func pickMajority[T comparable](all []T, votes map[T]int, latest map[T]int, decisions []domain.Decision) T {
	var best T
	bestVotes := 0
	for _, v := range all {
		n := votes[v]
		if n == 0 {
			continue
		}
		if n > bestVotes || (n == bestVotes && newer(decisions[latest[v]], decisions[latest[best]])) {
			best, bestVotes = v, n
		}
	}
	return best
}

// Reasoning renders the precedent-tier explanation.
func (t Tally) Reasoning(category domain.SenderCategory) string {
	noun := "decisions"
	if t.Count == 1 {
		noun = "decision"
	}
	return fmt.Sprintf("Based on %d prior %s %s, you usually chose %s.", t.Count, category, noun, t.Majority)
}
