package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// RerankerKind selects the second-pass relevance model.
type RerankerKind string

// Available rerankers.
const (
	// RerankerLexical scores term overlap locally. Deterministic.
	RerankerLexical RerankerKind = "lexical"

	// RerankerLLM asks the LLM to score candidate relevance.
	RerankerLLM RerankerKind = "llm"

	// RerankerNone keeps the fused order.
	RerankerNone RerankerKind = "none"
)

// IsValid returns true if the reranker is recognised.
func (k RerankerKind) IsValid() bool {
	switch k {
	case RerankerLexical, RerankerLLM, RerankerNone:
		return true
	default:
		return false
	}
}

// Description returns a human-readable description of the reranker.
func (k RerankerKind) Description() string {
	switch k {
	case RerankerLexical:
		return "Lexical (local term overlap)"
	case RerankerLLM:
		return "LLM (model-scored relevance)"
	case RerankerNone:
		return "None (fused order)"
	default:
		return unknownDescription
	}
}

// TokenizerKind selects how the chunker counts its budget.
type TokenizerKind string

// Available chunk tokenizers.
const (
	TokenizerWords    TokenizerKind = "words"
	TokenizerTiktoken TokenizerKind = "tiktoken"
)

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// FallbackDimensions is the size of hashed pseudo-embeddings.
	FallbackDimensions int

	// CacheSize bounds the number of cached embeddings.
	CacheSize int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RetrievalSettings holds retrieval and fusion configuration.
type RetrievalSettings struct {
	// RRFConstant dampens rank-1 dominance in reciprocal rank fusion.
	RRFConstant int

	// PerSourceLimit is how many hits each source contributes.
	PerSourceLimit int

	// RerankTopN is how many fused candidates are reranked.
	RerankTopN int

	// TopK is how many candidates are returned.
	TopK int

	// SourceTimeout bounds each source call.
	SourceTimeout time.Duration

	// Reranker selects the second-pass relevance model.
	Reranker RerankerKind
}

// EngineSettings holds decision engine configuration.
type EngineSettings struct {
	// ServiceTimeout bounds each external service call.
	ServiceTimeout time.Duration

	// RequestCeiling bounds the whole suggestion request.
	RequestCeiling time.Duration

	// Drafts enables reply draft generation.
	Drafts bool
}

// ChunkerSettings holds chunker configuration.
type ChunkerSettings struct {
	// MaxTokens is the budget per chunk.
	MaxTokens int

	// Overlap is how many tokens consecutive chunks share.
	Overlap int

	// Tokenizer selects the budget counter.
	Tokenizer TokenizerKind
}

// IndexerSettings holds asynchronous index writer configuration.
type IndexerSettings struct {
	// MaxAttempts bounds retries per write.
	MaxAttempts int

	// RetryPerSecond paces retries.
	RetryPerSecond float64

	// Workers bounds concurrent writes.
	Workers int

	// RetryBackoff is the first retry delay. It doubles per attempt.
	RetryBackoff time.Duration
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Retrieval RetrievalSettings
	Engine    EngineSettings
	Chunker   ChunkerSettings
	Indexer   IndexerSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// AI features (Embedding, LLM) are left unconfigured by default; the
// hashed embedder and heuristic tiers cover them.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			FallbackDimensions: 256,
			CacheSize:          1024,
		},
		LLM: LLMSettings{},
		Retrieval: RetrievalSettings{
			RRFConstant:    60,
			PerSourceLimit: 10,
			RerankTopN:     15,
			TopK:           5,
			SourceTimeout:  2 * time.Second,
			Reranker:       RerankerLexical,
		},
		Engine: EngineSettings{
			ServiceTimeout: 5 * time.Second,
			RequestCeiling: 15 * time.Second,
			Drafts:         true,
		},
		Chunker: ChunkerSettings{
			MaxTokens: 500,
			Overlap:   50,
			Tokenizer: TokenizerWords,
		},
		Indexer: IndexerSettings{
			MaxAttempts:    5,
			RetryPerSecond: 2,
			Workers:        2,
			RetryBackoff:   100 * time.Millisecond,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// PipelineConfig holds post-processor pipeline configuration.
// Uses generic map-based config so new processors can be added
// without modifying this struct.
type PipelineConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration as generic maps.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// PipelineConfigFromSettings returns the pipeline for the given chunker
// settings: HTML normalisation followed by chunking.
func PipelineConfigFromSettings(s ChunkerSettings) PipelineConfig {
	return PipelineConfig{
		Processors: []string{"htmlbody", "chunker"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"max_tokens": s.MaxTokens,
				"overlap":    s.Overlap,
				"tokenizer":  string(s.Tokenizer),
			},
		},
	}
}

// DefaultPipelineConfig returns the default pipeline configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfigFromSettings(DefaultAppSettings().Chunker)
}
