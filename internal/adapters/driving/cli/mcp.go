package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/precedent/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so an assistant can ingest messages,
ask for suggestions and confirm decisions.

By default the server speaks JSON-RPC over stdio. Use --http to serve the
streamable HTTP transport instead.

Prompt files in the config directory are reloaded while the server runs.

Examples:
  precedent mcp serve
  precedent mcp serve --http localhost:8080`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

var mcpAddr string

func init() {
	mcpServeCmd.Flags().StringVar(&mcpAddr, "http", "", "HTTP listen address (empty = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	server, err := mcp.NewServer(&mcp.Ports{
		Suggestion: suggestionService,
		Ingestion:  ingestionService,
		Retrieval:  retrievalService,
	})
	if err != nil {
		return err
	}

	if mcpAddr != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://%s\n", mcpAddr)
		return server.RunHTTP(cmd.Context(), mcpAddr)
	}
	return server.Run(cmd.Context())
}
