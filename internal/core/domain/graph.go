package domain

// NodeType labels a precedent graph node.
type NodeType string

// Node types.
const (
	NodeMessage        NodeType = "message"
	NodeDecision       NodeType = "decision"
	NodeAction         NodeType = "action"
	NodeTone           NodeType = "tone"
	NodeSenderCategory NodeType = "sender_category"
)

// EdgeType labels a precedent graph edge.
type EdgeType string

// Edge types. has_decision runs from a message node to a decision node;
// every other edge originates at a decision node.
const (
	EdgeHasDecision        EdgeType = "has_decision"
	EdgeChoseAction        EdgeType = "chose_action"
	EdgeChoseTone          EdgeType = "chose_tone"
	EdgeFromSenderCategory EdgeType = "from_sender_category"
	EdgeBasedOnPrecedent   EdgeType = "based_on_precedent"
)

// NodeID returns the id of the node of type t keyed by key.
func NodeID(t NodeType, key string) string {
	return string(t) + ":" + key
}

// GraphNode is a node record.
type GraphNode struct {
	ID    string   `json:"id"`
	Type  NodeType `json:"type"`
	Label string   `json:"label"`

	// RefID is the message or decision id for entity nodes, empty for labels.
	RefID string `json:"ref_id,omitempty"`
}

// GraphEdge is a directed edge record.
type GraphEdge struct {
	SourceID string   `json:"source"`
	TargetID string   `json:"target"`
	Type     EdgeType `json:"type"`

	// Position orders based_on_precedent edges by rank. Zero otherwise.
	Position int `json:"position,omitempty"`
}

// Graph is a snapshot of the precedent graph.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}
