// Package cli implements the precedent command line.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/precedent/internal/core/ports/driving"
	"github.com/custodia-labs/precedent/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Options are the global flags, handed to the startup hook.
type Options struct {
	Verbose   bool
	DataDir   string
	ConfigDir string
}

// Services are the driving ports the commands use.
type Services struct {
	Suggestion driving.SuggestionService
	Retrieval  driving.RetrievalService
	Ingestion  driving.IngestionService
	Settings   driving.SettingsService
}

// StartFunc wires services for one invocation. The returned cleanup runs
// after the command finishes, whether or not it failed.
type StartFunc func(cmd *cobra.Command, opts Options) (cleanup func(), err error)

var (
	suggestionService driving.SuggestionService
	retrievalService  driving.RetrievalService
	ingestionService  driving.IngestionService
	settingsService   driving.SettingsService

	globalOpts Options
	startHook  StartFunc
	cleanup    func()
)

var errNotConfigured = errors.New("service not configured")

var rootCmd = &cobra.Command{
	Use:   "precedent",
	Short: "Suggest how to handle a message from your own past decisions",
	Long: `Precedent proposes an action (reply now, reply later, ignore) and a tone
(warm, neutral, formal) for an inbound message and explains the proposal from
the decisions you made for similar senders before.

Retrieval fuses vector, keyword and precedent-graph search. Without an
embedding provider or LLM it falls back to local hashing and heuristics.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(globalOpts.Verbose)
		if startHook == nil || !needsServices(cmd) {
			return nil
		}
		done, err := startHook(cmd, globalOpts)
		if err != nil {
			return err
		}
		cleanup = done
		return nil
	},
}

func init() {
	// Finalizers run even when RunE fails; PersistentPostRun does not.
	cobra.OnFinalize(finish)

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&globalOpts.Verbose, "verbose", "v", false, "show retrieval and decision details")
	flags.StringVar(&globalOpts.DataDir, "data-dir", "", "data directory (default ~/.precedent/data)")
	flags.StringVar(&globalOpts.ConfigDir, "config-dir", "", "config directory (default ~/.precedent)")
}

// finish runs the pending cleanup once.
func finish() {
	if cleanup != nil {
		done := cleanup
		cleanup = nil
		done()
	}
}

// needsServices is false for commands that never touch a store.
func needsServices(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", "completion":
		return false
	}
	return true
}

// SetServices installs the services used by commands.
func SetServices(s Services) {
	suggestionService = s.Suggestion
	retrievalService = s.Retrieval
	ingestionService = s.Ingestion
	settingsService = s.Settings
}

// OnStart registers the hook that wires services before a command runs.
func OnStart(fn StartFunc) {
	startHook = fn
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command. Cancelling ctx stops long-running
// commands such as mcp serve.
func Execute(ctx context.Context) error {
	defer finish()
	return rootCmd.ExecuteContext(ctx)
}
