package services

import (
	"fmt"
	"slices"
	"time"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driven"
	"github.com/custodia-labs/precedent/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// defaultOllamaURL is used when a local provider has no base URL.
const defaultOllamaURL = "http://localhost:11434"

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider     = "embedding.provider"
	keyEmbedModel        = "embedding.model"
	keyEmbedBaseURL      = "embedding.base_url"
	keyEmbedAPIKey       = "embedding.api_key"
	keyEmbedFallbackDims = "embedding.fallback_dimensions"
	keyEmbedCacheSize    = "embedding.cache_size"

	keyLLMProvider = "llm.provider"
	keyLLMModel    = "llm.model"
	keyLLMBaseURL  = "llm.base_url"
	keyLLMAPIKey   = "llm.api_key"

	keyRRFConstant     = "retrieval.rrf_constant"
	keyPerSourceLimit  = "retrieval.per_source_limit"
	keyRerankTopN      = "retrieval.rerank_top_n"
	keyTopK            = "retrieval.top_k"
	keySourceTimeoutMS = "retrieval.source_timeout_ms"
	keyReranker        = "retrieval.reranker"

	keyServiceTimeoutMS = "engine.service_timeout_ms"
	keyRequestCeilingMS = "engine.request_ceiling_ms"
	keyDrafts           = "engine.drafts"

	keyChunkMaxTokens = "chunker.max_tokens"
	keyChunkOverlap   = "chunker.overlap"
	keyChunkTokenizer = "chunker.tokenizer"

	keyIndexMaxAttempts    = "indexer.max_attempts"
	keyIndexRetryPerSecond = "indexer.retry_per_second"
	keyIndexWorkers        = "indexer.workers"
	keyIndexRetryBackoffMS = "indexer.retry_backoff_ms"
)

// SettingsService maps config keys onto AppSettings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service. aiValidator may be nil.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings. Missing or invalid keys take
// their defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:           s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:              s.getString(keyEmbedModel, d.Embedding.Model),
			BaseURL:            s.configStore.GetString(keyEmbedBaseURL),
			APIKey:             s.configStore.GetString(keyEmbedAPIKey),
			FallbackDimensions: s.getInt(keyEmbedFallbackDims, d.Embedding.FallbackDimensions),
			CacheSize:          s.getInt(keyEmbedCacheSize, d.Embedding.CacheSize),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, d.LLM.Provider),
			Model:    s.getString(keyLLMModel, d.LLM.Model),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL),
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		Retrieval: domain.RetrievalSettings{
			RRFConstant:    s.getInt(keyRRFConstant, d.Retrieval.RRFConstant),
			PerSourceLimit: s.getInt(keyPerSourceLimit, d.Retrieval.PerSourceLimit),
			RerankTopN:     s.getInt(keyRerankTopN, d.Retrieval.RerankTopN),
			TopK:           s.getInt(keyTopK, d.Retrieval.TopK),
			SourceTimeout:  s.getMillis(keySourceTimeoutMS, d.Retrieval.SourceTimeout),
			Reranker:       s.getReranker(d.Retrieval.Reranker),
		},
		Engine: domain.EngineSettings{
			ServiceTimeout: s.getMillis(keyServiceTimeoutMS, d.Engine.ServiceTimeout),
			RequestCeiling: s.getMillis(keyRequestCeilingMS, d.Engine.RequestCeiling),
			Drafts:         s.getBool(keyDrafts, d.Engine.Drafts),
		},
		Chunker: domain.ChunkerSettings{
			MaxTokens: s.getInt(keyChunkMaxTokens, d.Chunker.MaxTokens),
			Overlap:   s.getInt(keyChunkOverlap, d.Chunker.Overlap),
			Tokenizer: s.getTokenizer(d.Chunker.Tokenizer),
		},
		Indexer: domain.IndexerSettings{
			MaxAttempts:    s.getInt(keyIndexMaxAttempts, d.Indexer.MaxAttempts),
			RetryPerSecond: s.getFloat(keyIndexRetryPerSecond, d.Indexer.RetryPerSecond),
			Workers:        s.getInt(keyIndexWorkers, d.Indexer.Workers),
			RetryBackoff:   s.getMillis(keyIndexRetryBackoffMS, d.Indexer.RetryBackoff),
		},
	}

	return settings, nil
}

// Save persists application settings. Empty API keys are not written so a
// key from the environment is never blanked in the file.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedFallbackDims, settings.Embedding.FallbackDimensions},
		{keyEmbedCacheSize, settings.Embedding.CacheSize},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyRRFConstant, settings.Retrieval.RRFConstant},
		{keyPerSourceLimit, settings.Retrieval.PerSourceLimit},
		{keyRerankTopN, settings.Retrieval.RerankTopN},
		{keyTopK, settings.Retrieval.TopK},
		{keySourceTimeoutMS, settings.Retrieval.SourceTimeout.Milliseconds()},
		{keyReranker, string(settings.Retrieval.Reranker)},
		{keyServiceTimeoutMS, settings.Engine.ServiceTimeout.Milliseconds()},
		{keyRequestCeilingMS, settings.Engine.RequestCeiling.Milliseconds()},
		{keyDrafts, settings.Engine.Drafts},
		{keyChunkMaxTokens, settings.Chunker.MaxTokens},
		{keyChunkOverlap, settings.Chunker.Overlap},
		{keyChunkTokenizer, string(settings.Chunker.Tokenizer)},
		{keyIndexMaxAttempts, settings.Indexer.MaxAttempts},
		{keyIndexRetryPerSecond, settings.Indexer.RetryPerSecond},
		{keyIndexWorkers, settings.Indexer.Workers},
		{keyIndexRetryBackoffMS, settings.Indexer.RetryBackoff.Milliseconds()},
	}
	if settings.Embedding.APIKey != "" {
		values = append(values, struct {
			key   string
			value any
		}{keyEmbedAPIKey, settings.Embedding.APIKey})
	}
	if settings.LLM.APIKey != "" {
		values = append(values, struct {
			key   string
			value any
		}{keyLLMAPIKey, settings.LLM.APIKey})
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: embedding provider %s", domain.ErrUnsupportedType, provider)
	}
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrUnsupportedType, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	settings.Embedding.Model = model
	if model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}
	settings.Embedding.BaseURL = baseURLFor(provider, settings.Embedding.BaseURL)
	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: LLM provider %s", domain.ErrUnsupportedType, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	settings.LLM.Model = model
	if model == "" {
		settings.LLM.Model = domain.DefaultLLMModels()[provider]
	}
	settings.LLM.BaseURL = baseURLFor(provider, settings.LLM.BaseURL)
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// SetReranker selects the second-pass relevance model.
func (s *SettingsService) SetReranker(kind domain.RerankerKind) error {
	if !kind.IsValid() {
		return fmt.Errorf("%w: reranker %s", domain.ErrUnsupportedType, kind)
	}
	return s.configStore.Set(keyReranker, string(kind))
}

// baseURLFor keeps a configured local URL and clears it for cloud providers.
func baseURLFor(provider domain.AIProvider, current string) string {
	if provider != domain.AIProviderOllama {
		return ""
	}
	if current == "" {
		return defaultOllamaURL
	}
	return current
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	val := s.configStore.GetFloat(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getMillis(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return time.Duration(val) * time.Millisecond
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(key))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getReranker(defaultVal domain.RerankerKind) domain.RerankerKind {
	kind := domain.RerankerKind(s.configStore.GetString(keyReranker))
	if !kind.IsValid() {
		return defaultVal
	}
	return kind
}

func (s *SettingsService) getTokenizer(defaultVal domain.TokenizerKind) domain.TokenizerKind {
	switch kind := domain.TokenizerKind(s.configStore.GetString(keyChunkTokenizer)); kind {
	case domain.TokenizerWords, domain.TokenizerTiktoken:
		return kind
	default:
		return defaultVal
	}
}
