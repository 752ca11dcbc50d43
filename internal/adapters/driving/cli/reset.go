package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget every confirmed decision",
	Long: `Purges all decisions from the precedent graph and the retrieval indexes.
Stored messages are kept. Suggestions fall back to the per-category defaults
until new decisions are confirmed.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return fmt.Errorf("ingestion %w", errNotConfigured)
	}

	if !resetYes {
		cmd.Print("This deletes every confirmed decision. Type 'reset' to continue: ")
		reader := bufio.NewReader(cmd.InOrStdin())
		if strings.TrimSpace(readLine(reader)) != "reset" {
			cmd.Println("Aborted.")
			return nil
		}
	}

	n, err := ingestionService.Reset(cmd.Context())
	if err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	cmd.Printf("Removed %d decisions.\n", n)
	return nil
}
