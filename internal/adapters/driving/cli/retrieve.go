package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

var retrieveOpts struct {
	category string
	kind     string
	limit    int
	json     bool
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Show fused retrieval candidates for a query",
	Long: `Runs vector, keyword and precedent-graph retrieval, fuses the lists with
reciprocal rank fusion and reranks the top candidates. Each candidate shows
its rank in every source that found it.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieve,
}

func init() {
	f := retrieveCmd.Flags()
	f.StringVarP(&retrieveOpts.category, "category", "c", "", "sender category to scope all sources")
	f.StringVarP(&retrieveOpts.kind, "kind", "k", "", "only chunk or decision entries")
	f.IntVarP(&retrieveOpts.limit, "limit", "n", 0, "maximum number of candidates (default from settings)")
	f.BoolVar(&retrieveOpts.json, "json", false, "output as JSON")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return fmt.Errorf("retrieval %w", errNotConfigured)
	}

	res, err := retrievalService.Retrieve(cmd.Context(), domain.RetrieveOptions{
		Query:          args[0],
		SenderCategory: domain.SenderCategory(retrieveOpts.category),
		Kind:           domain.IndexKind(retrieveOpts.kind),
		TopK:           retrieveOpts.limit,
	})
	if err != nil {
		return fmt.Errorf("retrieve failed: %w", err)
	}

	if retrieveOpts.json {
		return printJSON(cmd, res)
	}
	if len(res.Candidates) == 0 {
		cmd.Println("No candidates found.")
		return nil
	}

	cmd.Println(render(cmd, headingStyle, "Candidates"))
	cmd.Println()
	for _, c := range res.Candidates {
		cmd.Printf("  [%d] %s %s (fused %.4f, rerank %.3f)\n", c.FusedRank, c.Kind, c.Key, c.FusedScore, c.RerankScore)
		cmd.Printf("      %s\n", render(cmd, labelStyle, formatRanks(c.SourceRanks)))
		cmd.Printf("      %s\n", snippet(c.Text, 100))
	}
	cmd.Println()

	used := make([]string, len(res.SourcesUsed))
	for i, src := range res.SourcesUsed {
		used[i] = string(src)
	}
	cmd.Printf("Sources: %s", strings.Join(used, ", "))
	if res.Reranker != "" {
		cmd.Printf("  Reranker: %s", res.Reranker)
	}
	cmd.Println()
	return nil
}

func formatRanks(ranks map[domain.RetrievalSource]int) string {
	parts := make([]string, 0, len(ranks))
	for src, r := range ranks {
		parts = append(parts, fmt.Sprintf("%s #%d", src, r))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
