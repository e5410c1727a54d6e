// Command pagi is the operator CLI for the PAGI core: plan prompts, record and list
// facts, and serve the status channel.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"pagi/internal/config"
	"pagi/internal/core"
	"pagi/internal/logging"
	"pagi/internal/types"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	dbPath     string
	verbose    bool
	agentID    string
	scopeNames []string

	// Loaded in PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "pagi",
	Short: "PAGI core - shared planner and knowledge base for agents",
	Long: `pagi drives the shared reasoning core of a multi-agent platform.

Prompts are turned into ordered task plans by a tiered planner: a security
fast-path, an optional model-supplied plan, and a deterministic fallback that
folds symbolic rule directives and agent reflections back into the plan.
Facts recorded by agents are kept in a durable, timestamp-ordered log.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			loaded.Store.Path = dbPath
		}
		if verbose {
			loaded.Logging.Level = "debug"
		}
		if err := logging.Initialize(loaded.Logging); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "pagi.yaml", "Config file (missing file means defaults)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Fact store path (overrides config and PAGI_DB_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&agentID, "agent-id", "cli", "Identity the command acts as")
	rootCmd.PersistentFlags().StringSliceVar(&scopeNames, "scopes",
		[]string{string(types.ScopeReadFacts), string(types.ScopeWriteFacts)},
		"Scopes granted to the identity")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(reflectCmd)
	rootCmd.AddCommand(factsCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// identity builds the caller identity from --agent-id and --scopes.
func identity() (types.AgentIdentity, error) {
	scopes := make([]types.AuthScope, 0, len(scopeNames))
	for _, name := range scopeNames {
		if strings.TrimSpace(name) == "" {
			continue
		}
		s, err := types.ParseScope(name)
		if err != nil {
			return types.AgentIdentity{}, err
		}
		scopes = append(scopes, s)
	}
	return types.NewIdentity(agentID, scopes...), nil
}

// withCore opens the core for the duration of fn and always closes it.
func withCore(ctx context.Context, fn func(c *core.Core, id types.AgentIdentity) error) (err error) {
	id, err := identity()
	if err != nil {
		return err
	}
	c, err := core.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(c, id)
}
