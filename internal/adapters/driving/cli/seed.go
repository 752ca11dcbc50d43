package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/precedent/internal/core/domain"
	"github.com/custodia-labs/precedent/internal/fixtures"
)

var seedCmd = &cobra.Command{
	Use:   "seed [file]",
	Short: "Load a demo inbox and its decisions",
	Long: `Ingests messages and confirms decisions from a YAML seed file. Without a
file the built-in demo inbox is loaded. Messages that already exist are
skipped together with their decisions, so seeding twice is harmless.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return fmt.Errorf("ingestion %w", errNotConfigured)
	}

	var (
		seed *fixtures.Seed
		err  error
	)
	if len(args) == 1 {
		seed, err = fixtures.LoadFile(args[0])
	} else {
		seed, err = fixtures.Default()
	}
	if err != nil {
		return err
	}

	msgs, err := seed.DomainMessages()
	if err != nil {
		return err
	}
	inputs, err := seed.DecisionInputs()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	added, skipped := 0, 0
	present := make(map[string]bool)
	for i := range msgs {
		if _, err := ingestionService.IngestMessage(ctx, &msgs[i]); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				present[msgs[i].ID] = true
				skipped++
				continue
			}
			return fmt.Errorf("failed to add message %s: %w", msgs[i].ID, err)
		}
		added++
	}
	if skipped > 0 && added == 0 {
		cmd.Printf("All %d messages already present, decisions not replayed.\n", skipped)
		return nil
	}

	confirmed := 0
	for _, in := range inputs {
		if present[in.MessageID] {
			continue
		}
		if _, err := ingestionService.ConfirmDecision(ctx, in); err != nil {
			return fmt.Errorf("failed to confirm decision for %s: %w", in.MessageID, err)
		}
		confirmed++
	}

	cmd.Printf("Seeded %d messages (%d skipped) and %d decisions.\n", added, skipped, confirmed)
	return nil
}
