package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Maintain the retrieval indexes",
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Re-chunk, re-embed and re-index everything",
	Long: `Drops the vector and keyword indexes and rebuilds them from stored messages
and decisions. Run this after changing the embedding provider or model so
that queries and entries use the same model again.`,
	Args: cobra.NoArgs,
	RunE: runIndexRebuild,
}

func init() {
	indexCmd.AddCommand(indexRebuildCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexRebuild(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return fmt.Errorf("ingestion %w", errNotConfigured)
	}

	cmd.Println("Rebuilding indexes...")
	stats, err := ingestionService.RebuildIndexes(cmd.Context())
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}
	cmd.Printf("Indexed %d messages (%d chunks) and %d decisions.\n", stats.Messages, stats.Chunks, stats.Decisions)
	return nil
}
