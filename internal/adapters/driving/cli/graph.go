package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/precedent/internal/core/domain"
)

var graphJSON bool

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Summarise the precedent graph",
	Long: `Prints node and edge counts of the precedent graph. With --json the full
snapshot is written, suitable for visualisation tools.`,
	Args: cobra.NoArgs,
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().BoolVar(&graphJSON, "json", false, "output the full snapshot as JSON")
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return fmt.Errorf("ingestion %w", errNotConfigured)
	}

	g, err := ingestionService.Graph(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read graph: %w", err)
	}

	if graphJSON {
		return printJSON(cmd, g)
	}

	nodes := make(map[string]int)
	for _, n := range g.Nodes {
		nodes[string(n.Type)]++
	}
	edges := make(map[string]int)
	for _, e := range g.Edges {
		edges[string(e.Type)]++
	}

	cmd.Println(render(cmd, headingStyle, "Precedent graph"))
	cmd.Printf("\nNodes: %d\n", len(g.Nodes))
	printCounts(cmd, nodes)
	cmd.Printf("Edges: %d\n", len(g.Edges))
	printCounts(cmd, edges)

	if n := nodes[string(domain.NodeDecision)]; n == 0 {
		cmd.Println("\nNo decisions yet. Confirm one with 'precedent decision confirm'.")
	}
	return nil
}

func printCounts(cmd *cobra.Command, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd.Printf("  %-22s %d\n", k, counts[k])
	}
}
