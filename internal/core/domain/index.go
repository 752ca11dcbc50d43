package domain

// IndexKind distinguishes the two kinds of index entry.
type IndexKind string

// Index entry kinds.
const (
	// IndexKindChunk entries hold message chunks.
	IndexKindChunk IndexKind = "chunk"

	// IndexKindDecision entries hold confirmed decisions, keyed by decision id.
	IndexKindDecision IndexKind = "decision"
)

// IsValid returns true if the kind is recognised.
func (k IndexKind) IsValid() bool {
	return k == IndexKindChunk || k == IndexKindDecision
}

// IndexMetadata is stored alongside every vector and keyword entry.
type IndexMetadata struct {
	Kind           IndexKind
	MessageID      string
	DecisionID     string
	SenderCategory SenderCategory

	// Model is the embedding model that produced a vector. Unused by the
	// keyword index.
	Model string
}

// IndexFilter restricts index queries. Zero fields match anything.
type IndexFilter struct {
	Kind           IndexKind
	SenderCategory SenderCategory
	MessageID      string
	Model          string

	// ExcludeMessageID drops every entry belonging to that message.
	ExcludeMessageID string
}

// Matches reports whether meta satisfies the filter.
func (f IndexFilter) Matches(meta IndexMetadata) bool {
	if f.Kind != "" && f.Kind != meta.Kind {
		return false
	}
	if f.SenderCategory != "" && f.SenderCategory != meta.SenderCategory {
		return false
	}
	if f.MessageID != "" && f.MessageID != meta.MessageID {
		return false
	}
	if f.Model != "" && f.Model != meta.Model {
		return false
	}
	if f.ExcludeMessageID != "" && f.ExcludeMessageID == meta.MessageID {
		return false
	}
	return true
}

// IndexDocument is one entry for a keyword rebuild.
type IndexDocument struct {
	ID   string
	Text string
	Meta IndexMetadata
}
