// Package ai creates and validates the embedding and LLM adapters named in
// settings, degrading to local fallbacks with warnings.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/precedent/internal/adapters/driven/embedding/hashed"
	ollamaembed "github.com/custodia-labs/precedent/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/precedent/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/precedent/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/precedent/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/precedent/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driven"
)

// pingTimeout bounds connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult holds the AI services available to the application.
type InitResult struct {
	// Embedding is the configured provider, or nil when unset or unreachable.
	Embedding driven.EmbeddingService

	// Fallback is the hashed embedder. Always set.
	Fallback driven.EmbeddingService

	// LLM is the configured provider, or nil when unset or unreachable.
	LLM driven.LLMService

	// Warnings lists non-fatal problems that caused a fallback.
	Warnings []string
}

// Close releases all services.
func (r *InitResult) Close() {
	for _, c := range []interface{ Close() error }{r.Embedding, r.Fallback, r.LLM} {
		if c != nil {
			_ = c.Close()
		}
	}
}

// Init creates and pings the configured services. It never fails: any
// problem is recorded as a warning and the service is left nil.
func Init(ctx context.Context, settings *domain.AppSettings) *InitResult {
	res := &InitResult{Fallback: hashed.NewEmbeddingService(settings.Embedding.FallbackDimensions)}

	var err error
	res.Embedding, err = CreateAndValidateEmbeddingService(ctx, &settings.Embedding)
	if err != nil {
		res.Warnings = append(res.Warnings, err.Error())
	}

	res.LLM, err = CreateAndValidateLLMService(ctx, &settings.LLM)
	if err != nil {
		res.Warnings = append(res.Warnings, err.Error())
	}

	return res
}

// CreateAndValidateEmbeddingService creates an embedding service and pings it.
// Unconfigured settings return nil, nil.
func CreateAndValidateEmbeddingService(
	ctx context.Context, settings *domain.EmbeddingSettings,
) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'precedent settings' to fix", domain.ErrEmbeddingUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	if err := ping(ctx, svc); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w), using hashed embeddings",
			domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and pings it.
// Unconfigured settings return nil, nil.
func CreateAndValidateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'precedent settings' to fix", domain.ErrLLMUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	if err := ping(ctx, svc); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w), using precedent-only suggestions",
			domain.ErrLLMUnavailable, err)
	}
	return svc, nil
}

func ping(ctx context.Context, svc interface{ Ping(context.Context) error }) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateEmbeddingService builds the provider's adapter without contacting it.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || settings.Provider == "" {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		dims := domain.EmbeddingDimensions()[settings.Model]
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: dims,
		}), nil

	case domain.AIProviderOpenAI:
		if settings.APIKey == "" {
			return nil, fmt.Errorf("openai embeddings need an API key (PRECEDENT_OPENAI_API_KEY)")
		}
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: domain.EmbeddingDimensions()[settings.Model],
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	case domain.AIProviderAnthropic:
		return nil, fmt.Errorf("anthropic does not support embeddings, use ollama or openai")

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateLLMService builds the provider's adapter without contacting it.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || settings.Provider == "" {
		return nil, nil
	}
	if settings.Provider.RequiresAPIKey() && settings.APIKey == "" {
		return nil, fmt.Errorf("%s needs an API key (PRECEDENT_%s_API_KEY)",
			settings.Provider, strings.ToUpper(string(settings.Provider)))
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		svc, err := openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	case domain.AIProviderAnthropic:
		svc, err := anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}
