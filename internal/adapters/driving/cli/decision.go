package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

var decisionCmd = &cobra.Command{
	Use:   "decision",
	Short: "Confirm and inspect human decisions",
}

var decisionConfirmCmd = &cobra.Command{
	Use:   "confirm [message-id]",
	Short: "Record how you handled a message",
	Long: `Records the action and tone you chose for a message. The decision becomes
precedent for future messages from the same sender category.

When --agent-action and --agent-tone are omitted the agent is assumed to have
suggested what you chose.

Examples:
  precedent decision confirm 3f2a --action reply_now --tone warm
  precedent decision confirm 3f2a --action ignore --tone neutral \
      --agent-action reply_later --agent-tone neutral --precedent d-17`,
	Args: cobra.ExactArgs(1),
	RunE: runDecisionConfirm,
}

var decisionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List confirmed decisions, newest first",
	Args:  cobra.NoArgs,
	RunE:  runDecisionList,
}

var decisionPrecedentsCmd = &cobra.Command{
	Use:   "precedents [decision-id]",
	Short: "Walk the precedent chain of a decision",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecisionPrecedents,
}

var decisionConfirm struct {
	action      string
	tone        string
	agentAction string
	agentTone   string
	precedents  []string
	reasoning   string
}

var decisionList struct {
	category string
	message  string
	limit    int
	json     bool
}

var decisionPrecedentsJSON bool

func init() {
	f := decisionConfirmCmd.Flags()
	f.StringVarP(&decisionConfirm.action, "action", "a", "", "action taken: reply_now, reply_later or ignore")
	f.StringVarP(&decisionConfirm.tone, "tone", "t", "", "tone used: warm, neutral or formal")
	f.StringVar(&decisionConfirm.agentAction, "agent-action", "", "action the agent suggested")
	f.StringVar(&decisionConfirm.agentTone, "agent-tone", "", "tone the agent suggested")
	f.StringSliceVarP(&decisionConfirm.precedents, "precedent", "p", nil, "decision id this one builds on (repeatable)")
	f.StringVarP(&decisionConfirm.reasoning, "reasoning", "r", "", "reasoning shown with the suggestion")
	_ = decisionConfirmCmd.MarkFlagRequired("action")
	_ = decisionConfirmCmd.MarkFlagRequired("tone")

	lf := decisionListCmd.Flags()
	lf.StringVarP(&decisionList.category, "category", "c", "", "only this sender category")
	lf.StringVarP(&decisionList.message, "message", "m", "", "only decisions on this message")
	lf.IntVarP(&decisionList.limit, "limit", "n", 20, "maximum number of decisions")
	lf.BoolVar(&decisionList.json, "json", false, "output as JSON")

	decisionPrecedentsCmd.Flags().BoolVar(&decisionPrecedentsJSON, "json", false, "output as JSON")

	decisionCmd.AddCommand(decisionConfirmCmd)
	decisionCmd.AddCommand(decisionListCmd)
	decisionCmd.AddCommand(decisionPrecedentsCmd)
	rootCmd.AddCommand(decisionCmd)
}

func runDecisionConfirm(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return fmt.Errorf("ingestion %w", errNotConfigured)
	}

	human := domain.ActionTone{
		Action: domain.Action(strings.ToLower(decisionConfirm.action)),
		Tone:   domain.Tone(strings.ToLower(decisionConfirm.tone)),
	}
	agent := human
	if decisionConfirm.agentAction != "" {
		agent.Action = domain.Action(strings.ToLower(decisionConfirm.agentAction))
	}
	if decisionConfirm.agentTone != "" {
		agent.Tone = domain.Tone(strings.ToLower(decisionConfirm.agentTone))
	}

	d, err := ingestionService.ConfirmDecision(cmd.Context(), domain.DecisionInput{
		MessageID:       args[0],
		AgentSuggestion: agent,
		HumanAction:     human,
		PrecedentIDs:    decisionConfirm.precedents,
		Reasoning:       decisionConfirm.reasoning,
	})
	if err != nil {
		return fmt.Errorf("failed to confirm decision: %w", err)
	}

	cmd.Printf("Recorded decision %s: %s\n", d.ID, d.HumanAction)
	if d.Overridden() {
		cmd.Println(render(cmd, warnStyle, fmt.Sprintf("Overrode agent suggestion %s", d.AgentSuggestion)))
	}
	return nil
}

func runDecisionList(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return fmt.Errorf("ingestion %w", errNotConfigured)
	}

	decisions, err := ingestionService.ListDecisions(cmd.Context(), domain.DecisionFilter{
		SenderCategory: domain.SenderCategory(decisionList.category),
		MessageID:      decisionList.message,
		Limit:          decisionList.limit,
	})
	if err != nil {
		return fmt.Errorf("failed to list decisions: %w", err)
	}

	if decisionList.json {
		return printJSON(cmd, decisions)
	}
	if len(decisions) == 0 {
		cmd.Println("No decisions recorded.")
		return nil
	}
	for i := range decisions {
		printDecision(cmd, &decisions[i])
	}
	cmd.Printf("\nTotal: %d decisions\n", len(decisions))
	return nil
}

func runDecisionPrecedents(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return fmt.Errorf("ingestion %w", errNotConfigured)
	}

	chain, err := ingestionService.Precedents(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve precedents: %w", err)
	}

	if decisionPrecedentsJSON {
		return printJSON(cmd, chain)
	}
	if len(chain) == 0 {
		cmd.Printf("Decision %s has no precedents.\n", args[0])
		return nil
	}
	for i := range chain {
		printDecision(cmd, &chain[i])
	}
	return nil
}
