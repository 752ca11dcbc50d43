// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - MessageStore: Message and chunk persistence
//   - PrecedentGraph: Decision records and the precedent graph (source of truth)
//   - VectorIndex: Cosine kNN over chunk and decision embeddings
//   - KeywordIndex: BM25 inverted index over chunk and decision text
//   - PostProcessorPipeline: Message normalisation and chunking
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Without it, hashed pseudo-embeddings are used.
//   - LLMService: Without it, analysis is heuristic, reasoning is
//     synthesised from the precedent tally and drafts are omitted.
//   - Reranker: Without it, fused order is final.
//   - PromptStore: Without it, built-in prompts are used.
//
// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven
