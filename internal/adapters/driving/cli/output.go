package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

var (
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	actionStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	tierStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	draftStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headingStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// styled reports whether w is a terminal. Pipes and buffers get plain text.
func styled(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func render(cmd *cobra.Command, style lipgloss.Style, s string) string {
	if !styled(cmd.OutOrStdout()) {
		return s
	}
	return style.Render(s)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func printSuggestion(cmd *cobra.Command, s *domain.Suggestion) {
	cmd.Printf("%s %s\n", render(cmd, labelStyle, "Suggestion:"), render(cmd, actionStyle, s.ActionTone().String()))
	cmd.Printf("%s %s\n", render(cmd, labelStyle, "Tier:      "), render(cmd, tierStyle, string(s.Tier)))
	cmd.Printf("%s %s\n", render(cmd, labelStyle, "Reasoning: "), s.Reasoning)
	cmd.Printf("%s %d", render(cmd, labelStyle, "Precedents:"), s.PrecedentCount)
	if len(s.PrecedentIDs) > 0 {
		cmd.Printf(" (%s)", strings.Join(s.PrecedentIDs, ", "))
	}
	cmd.Println()

	sources := make([]string, len(s.SourcesUsed))
	for i, src := range s.SourcesUsed {
		sources[i] = string(src)
	}
	if len(sources) == 0 {
		sources = []string{"none"}
	}
	cmd.Printf("%s %s\n", render(cmd, labelStyle, "Sources:   "), strings.Join(sources, ", "))

	a := s.Analysis
	cmd.Printf("%s %s, urgency %s (%s)\n", render(cmd, labelStyle, "Analysis:  "), a.Intent, a.Urgency, a.Source)
	if len(a.Topics) > 0 {
		cmd.Printf("%s %s\n", render(cmd, labelStyle, "Topics:    "), strings.Join(a.Topics, ", "))
	}

	if s.Draft != nil {
		cmd.Println()
		cmd.Println(render(cmd, draftStyle, *s.Draft))
	}
}

func printMessage(cmd *cobra.Command, m *domain.Message) {
	cmd.Printf("  %s  [%s] %s <%s>\n", m.ID, m.SenderCategory, m.SenderName, m.Channel)
	if m.Subject != "" {
		cmd.Printf("      Subject: %s\n", m.Subject)
	}
	cmd.Printf("      Received: %s\n", m.CreatedAt.Format("2006-01-02 15:04"))
}

func printDecision(cmd *cobra.Command, d *domain.Decision) {
	line := fmt.Sprintf("  %s  %s -> %s", d.ID, d.MessageID, d.HumanAction)
	if d.Overridden() {
		line += render(cmd, warnStyle, fmt.Sprintf("  (agent suggested %s)", d.AgentSuggestion))
	}
	cmd.Println(line)
	cmd.Printf("      %s, %s", d.SenderCategory, d.CreatedAt.Format("2006-01-02 15:04"))
	if len(d.PrecedentIDs) > 0 {
		cmd.Printf(", precedents: %s", strings.Join(d.PrecedentIDs, ", "))
	}
	cmd.Println()
}

// snippet shortens text to one line of at most n runes.
func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n-1]) + "…"
}
