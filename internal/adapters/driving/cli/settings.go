package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure AI providers, retrieval and the decision engine.

Without an embedding provider the hashed local embedder is used. Without an
LLM the engine answers from precedent or the per-category defaults.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long: `Configure the embedding provider for vector retrieval.

Changing the model leaves existing vectors in place under the old model name.
Run 'precedent index rebuild' afterwards.`,
	RunE: runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long:  `Configure the LLM provider used for analysis, reasoned suggestions and drafts.`,
	RunE:  runSettingsLLM,
}

var settingsRerankerCmd = &cobra.Command{
	Use:   "reranker",
	Short: "Select the reranker",
	Long: `Select the second-pass relevance model applied to fused candidates.

  lexical - term overlap with the query (no setup required)
  llm     - the configured LLM scores each candidate
  none    - keep the fused order`,
	RunE: runSettingsReranker,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	settingsCmd.AddCommand(settingsRerankerCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return fmt.Errorf("settings %w", errNotConfigured)
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println(render(cmd, headingStyle, "Current Settings"))
	cmd.Println()

	cmd.Println("[Embedding]")
	printProvider(cmd, settings.Embedding.Provider, settings.Embedding.Model, settings.Embedding.BaseURL, settings.Embedding.APIKey)
	if settings.Embedding.IsConfigured() {
		cmd.Println("  Status: configured")
	} else {
		cmd.Printf("  Status: not configured (hashed fallback, %d dimensions)\n", settings.Embedding.FallbackDimensions)
	}
	cmd.Println()

	cmd.Println("[LLM]")
	printProvider(cmd, settings.LLM.Provider, settings.LLM.Model, settings.LLM.BaseURL, settings.LLM.APIKey)
	if settings.LLM.IsConfigured() {
		cmd.Println("  Status: configured")
	} else {
		cmd.Println("  Status: not configured (precedent and default tiers only)")
	}
	cmd.Println()

	r := settings.Retrieval
	cmd.Println("[Retrieval]")
	cmd.Printf("  Reranker: %s\n", r.Reranker.Description())
	cmd.Printf("  RRF constant: %d\n", r.RRFConstant)
	cmd.Printf("  Per-source limit: %d, rerank top %d, return %d\n", r.PerSourceLimit, r.RerankTopN, r.TopK)
	cmd.Printf("  Source timeout: %s\n", r.SourceTimeout)
	cmd.Println()

	e := settings.Engine
	cmd.Println("[Engine]")
	cmd.Printf("  Service timeout: %s\n", e.ServiceTimeout)
	cmd.Printf("  Request ceiling: %s\n", e.RequestCeiling)
	cmd.Printf("  Drafts: %t\n", e.Drafts)
	cmd.Println()

	c := settings.Chunker
	cmd.Println("[Chunker]")
	cmd.Printf("  %d %s per chunk, %d overlap\n", c.MaxTokens, c.Tokenizer, c.Overlap)

	if settings.Retrieval.Reranker == domain.RerankerLLM && !settings.LLM.IsConfigured() {
		cmd.Println()
		cmd.Println(render(cmd, warnStyle, "Warning: the llm reranker needs an LLM provider. Run 'precedent settings llm'."))
	}
	return nil
}

func printProvider(cmd *cobra.Command, provider domain.AIProvider, model, baseURL, apiKey string) {
	if provider == "" {
		cmd.Println("  Provider: (none)")
		return
	}
	cmd.Printf("  Provider: %s\n", provider.Description())
	cmd.Printf("  Model: %s\n", model)
	if provider == domain.AIProviderOllama {
		cmd.Printf("  Base URL: %s\n", baseURL)
	}
	if provider.RequiresAPIKey() {
		if apiKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(apiKey))
		} else {
			cmd.Println("  API Key: (not set)")
		}
	}
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return fmt.Errorf("settings %w", errNotConfigured)
	}
	return configureProvider(cmd, bufio.NewReader(cmd.InOrStdin()), providerPrompt{
		title:     "Select Embedding Provider",
		providers: domain.AllEmbeddingProviders(),
		models:    domain.DefaultEmbeddingModels(),
		set:       settingsService.SetEmbeddingProvider,
		validate:  settingsService.ValidateEmbeddingConfig,
		kind:      "Embedding",
	})
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return fmt.Errorf("settings %w", errNotConfigured)
	}
	return configureProvider(cmd, bufio.NewReader(cmd.InOrStdin()), providerPrompt{
		title:     "Select LLM Provider",
		providers: domain.AllLLMProviders(),
		models:    domain.DefaultLLMModels(),
		set:       settingsService.SetLLMProvider,
		validate:  settingsService.ValidateLLMConfig,
		kind:      "LLM",
	})
}

type providerPrompt struct {
	title     string
	providers []domain.AIProvider
	models    map[domain.AIProvider]string
	set       func(domain.AIProvider, string, string) error
	validate  func() error
	kind      string
}

func configureProvider(cmd *cobra.Command, reader *bufio.Reader, p providerPrompt) error {
	cmd.Println(p.title)
	for i, prov := range p.providers {
		cmd.Printf("  %d. %s\n", i+1, prov.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(p.providers), 1)
	selected := p.providers[idx-1]

	defaultModel := p.models[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selected.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(cmd, reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := p.set(selected, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure %s provider: %w", strings.ToLower(p.kind), err)
	}

	cmd.Print("Validating configuration... ")
	if err := p.validate(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("%s configuration validation failed: %w", strings.ToLower(p.kind), err)
	}
	cmd.Println("OK")

	cmd.Printf("%s provider configured: %s (%s)\n", p.kind, selected.Description(), model)
	return nil
}

var rerankerKinds = []domain.RerankerKind{domain.RerankerLexical, domain.RerankerLLM, domain.RerankerNone}

func runSettingsReranker(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return fmt.Errorf("settings %w", errNotConfigured)
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	cmd.Println("Select Reranker")
	for i, k := range rerankerKinds {
		cmd.Printf("  %d. %s\n", i+1, k.Description())
	}
	cmd.Print("\nEnter choice: ")
	idx := parseChoice(readLine(reader), len(rerankerKinds), 0)
	if idx == 0 {
		return errors.New("invalid selection")
	}

	kind := rerankerKinds[idx-1]
	if err := settingsService.SetReranker(kind); err != nil {
		return fmt.Errorf("failed to set reranker: %w", err)
	}
	cmd.Printf("Reranker set to: %s\n", kind.Description())
	return nil
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo when input is a terminal and falls back to reader.
func readPassword(cmd *cobra.Command, reader *bufio.Reader) string {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return string(password)
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
