package driven

import "github.com/custodia-labs/precedent/internal/core/domain"

// AIConfigValidator validates AI provider configurations by testing
// connectivity to the underlying services.
type AIConfigValidator interface {
	// ValidateEmbedding pings the configured embedding provider.
	// Returns nil if the configuration is valid or not configured.
	ValidateEmbedding(config *domain.EmbeddingSettings) error

	// ValidateLLM pings the configured LLM provider.
	// Returns nil if the configuration is valid or not configured.
	ValidateLLM(config *domain.LLMSettings) error
}
