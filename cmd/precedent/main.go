// Command precedent suggests how to handle inbound messages from the
// decisions you made before.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/precedent/internal/adapters/driven/ai"
	"github.com/custodia-labs/precedent/internal/adapters/driven/config/file"
	"github.com/custodia-labs/precedent/internal/adapters/driven/rerank/lexical"
	llmrerank "github.com/custodia-labs/precedent/internal/adapters/driven/rerank/llm"
	"github.com/custodia-labs/precedent/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/precedent/internal/adapters/driving/cli"
	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/core/ports/driven"
	"github.com/custodia-labs/precedent/internal/core/services"
	"github.com/custodia-labs/precedent/internal/logger"
	"github.com/custodia-labs/precedent/internal/postprocessors"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	_ = godotenv.Load()

	cli.SetVersion(version)
	cli.OnStart(start)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// start wires every service for one command invocation.
func start(cmd *cobra.Command, opts cli.Options) (func(), error) {
	ctx := cmd.Context()
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	configStore, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, err
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return nil, err
	}
	applyEnvKeys(settings)

	store, err := sqlite.NewStore(opts.DataDir)
	if err != nil {
		return nil, err
	}
	closers = append(closers, func() { _ = store.Close() })
	logger.Debug("store: %s", store.Path())

	aiServices := ai.Init(ctx, settings)
	closers = append(closers, aiServices.Close)
	for _, w := range aiServices.Warnings {
		logger.Warn("%s", w)
	}

	promptDir := ""
	if opts.ConfigDir != "" {
		promptDir = filepath.Join(opts.ConfigDir, "prompts")
	}
	prompts, err := file.NewPromptStore(promptDir)
	if err != nil {
		cleanup()
		return nil, err
	}
	if cmd.CommandPath() == "precedent mcp serve" {
		watchCtx, cancel := context.WithCancel(ctx)
		closers = append(closers, cancel)
		go func() {
			if err := prompts.Watch(watchCtx); err != nil {
				logger.Warn("prompt reload disabled: %v", err)
			}
		}()
	}

	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry)
	pipeline, err := postprocessors.Build(registry, domain.PipelineConfigFromSettings(settings.Chunker))
	if err != nil {
		cleanup()
		return nil, err
	}

	embedder := services.NewEmbedder(
		aiServices.Embedding, aiServices.Fallback,
		settings.Embedding.CacheSize, settings.Engine.ServiceTimeout,
	)
	writer := services.NewIndexWriter(settings.Indexer)
	closers = append(closers, func() {
		if err := writer.Close(); err != nil {
			logger.Warn("index writer: %v", err)
		}
	})

	messages := store.MessageStore()
	graph := store.PrecedentGraph()
	vectors := store.VectorIndex()
	keywords := store.KeywordIndex()

	retrieval := services.NewRetrievalService(
		[]services.Retriever{
			services.NewVectorRetriever(embedder, vectors),
			services.NewKeywordRetriever(keywords),
			services.NewGraphRetriever(graph),
		},
		messages, graph,
		selectReranker(settings.Retrieval.Reranker, aiServices.LLM, prompts),
		settings.Retrieval,
	)
	analyzer := services.NewAnalyzer(aiServices.LLM, prompts, settings.Engine.ServiceTimeout)
	engine := services.NewDecisionEngine(messages, retrieval, analyzer, aiServices.LLM, prompts, settings.Engine)
	ingestion := services.NewIngestionService(messages, graph, vectors, keywords, pipeline, embedder, writer)

	cli.SetServices(cli.Services{
		Suggestion: engine,
		Retrieval:  retrieval,
		Ingestion:  ingestion,
		Settings:   settingsService,
	})
	return cleanup, nil
}

// applyEnvKeys fills API keys missing from the config file.
func applyEnvKeys(s *domain.AppSettings) {
	keys := map[domain.AIProvider]string{
		domain.AIProviderOpenAI:    os.Getenv("PRECEDENT_OPENAI_API_KEY"),
		domain.AIProviderAnthropic: os.Getenv("PRECEDENT_ANTHROPIC_API_KEY"),
	}
	if s.Embedding.APIKey == "" {
		s.Embedding.APIKey = keys[s.Embedding.Provider]
	}
	if s.LLM.APIKey == "" {
		s.LLM.APIKey = keys[s.LLM.Provider]
	}
}

// selectReranker returns nil for RerankerNone. The llm reranker falls back
// to lexical when no LLM is available.
func selectReranker(kind domain.RerankerKind, llm driven.LLMService, prompts driven.PromptStore) driven.Reranker {
	switch kind {
	case domain.RerankerNone:
		return nil
	case domain.RerankerLLM:
		if llm != nil {
			return llmrerank.New(llm, prompts)
		}
		logger.Warn("llm reranker selected but no LLM is available, using lexical")
	}
	return lexical.New()
}
