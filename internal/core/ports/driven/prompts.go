package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Unknown names return an error.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names used throughout the application.
const (
	// PromptAnalyse extracts intent, topics and urgency as JSON.
	// The prompt template has no format placeholders.
	PromptAnalyse = "analyse"

	// PromptReason chooses the final action and tone as JSON.
	// The prompt template has no format placeholders.
	PromptReason = "reason"

	// PromptDraft writes a short reply. It expects %s (tone).
	PromptDraft = "draft"

	// PromptRerank scores candidate relevance as a JSON array.
	// The prompt template has no format placeholders.
	PromptRerank = "rerank"
)

// DefaultPrompts are the built-in templates, used when no PromptStore is
// wired or a user file is missing.
//
//nolint:lll // prompt text
var DefaultPrompts = map[string]string{
	PromptAnalyse: `You triage inbound messages for a busy founder.
Read the message and answer with a single JSON object and nothing else:
{"intent": "<one short phrase>", "topics": ["<topic>", ...], "urgency": "low" | "medium" | "high"}
Use at most five topics.`,

	PromptReason: `You help a founder decide how to handle an inbound message.
You are given the message, an analysis of it, and a tally of the founder's own past decisions for similar senders.
Past decisions are the strongest evidence. Only depart from the majority when the message clearly differs from them.
Valid actions: reply_now, reply_later, ignore. Valid tones: warm, neutral, formal.
Answer with a single JSON object and nothing else:
{"action": "<action>", "tone": "<tone>", "reasoning": "<one or two sentences citing the past decisions>"}`,

	PromptDraft: `Write a short reply to the message below on the founder's behalf.
Use a %s tone. Keep it under 120 words. Do not invent commitments, dates or numbers.
Return only the reply text.`,

	PromptRerank: `Score how relevant each numbered document is to the query, from 0 (unrelated) to 1 (same situation).
Answer with a JSON array of numbers, one per document, in document order, and nothing else.`,
}
