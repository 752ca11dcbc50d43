package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var suggestJSON bool

var suggestCmd = &cobra.Command{
	Use:   "suggest [message-id]",
	Short: "Suggest an action and tone for a message",
	Long: `Suggests how to handle a stored message and explains why.

The suggestion comes from the first tier that can answer:
  reasoned  - the LLM weighs the precedent tally and the message
  precedent - the majority of your past decisions for this sender category
  default   - a fixed choice per sender category`,
	Args: cobra.ExactArgs(1),
	RunE: runSuggest,
}

func init() {
	suggestCmd.Flags().BoolVar(&suggestJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(suggestCmd)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	if suggestionService == nil {
		return fmt.Errorf("suggestion %w", errNotConfigured)
	}

	s, err := suggestionService.Suggest(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("suggest failed: %w", err)
	}

	if suggestJSON {
		return printJSON(cmd, s)
	}
	printSuggestion(cmd, s)
	return nil
}
