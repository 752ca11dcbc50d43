package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown post-processor or provider type.
	ErrUnsupportedType = errors.New("unsupported type")

	// Dependency Errors.
	// These are always recovered locally by a fallback and never reach the
	// caller of a suggestion request.

	// ErrLLMUnavailable indicates the reasoning service is not configured,
	// unreachable or timed out.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured, unreachable or timed out.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// Consistency Errors.

	// ErrIndexInconsistency indicates a dangling reference between stores,
	// such as a precedent id or indexed id with no backing record.
	// Logged and skipped, never fatal.
	ErrIndexInconsistency = errors.New("index inconsistency")

	// ErrInvalidSuggestion indicates an action/tone pair outside the
	// enumerated set.
	ErrInvalidSuggestion = errors.New("invalid suggestion")

	// ErrInvalidPrecedent indicates a precedent reference that does not point
	// to a strictly earlier decision.
	ErrInvalidPrecedent = errors.New("invalid precedent")

	// ErrStoreWrite indicates the precedent graph could not record a
	// decision. The confirmation may be retried.
	ErrStoreWrite = errors.New("store write failed")
)
