// Package domain defines the core business entities for Precedent.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Message: An inbound message awaiting a suggestion
//   - Chunk: A retrieval-sized passage of a message
//   - Decision: A confirmed human action/tone choice with its precedent trail
//   - Graph: Node and edge records of the precedent graph
//   - Candidate: A fused, reranked retrieval result
//   - Suggestion: The decision engine's output contract
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
