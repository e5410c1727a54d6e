package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"pagi/internal/agents"
	"pagi/internal/core"
	"pagi/internal/logging"
	"pagi/internal/types"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	planFile string
	planText string
	// Agent types the orchestration layer can run; empty skips the coverage check.
	availableAgents []string
)

// planCmd runs the planner for one prompt
var planCmd = &cobra.Command{
	Use:   "plan [prompt...]",
	Short: "Produce a task plan for a prompt",
	Long: `Runs the tiered planner and prints the resulting plan as JSON.

A model-generated plan may be supplied with --plan or --plan-file; it is used
unless the prompt hits the security fast-path, it fails to parse, or
PAGI_DISABLE_LLM_PLAN is set.

With --agents, any agent type in the plan that is not in the list is reported
on stderr; the plan is still printed.

Example:
  pagi plan "Please research the top anti-aging compounds and schedule a team meeting for next week to present the findings."`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planFile, "plan-file", "", "File holding a model-supplied plan (JSON array)")
	planCmd.Flags().StringVar(&planText, "plan", "", "Model-supplied plan as inline JSON")
	planCmd.MarkFlagsMutuallyExclusive("plan-file", "plan")
	planCmd.Flags().StringSliceVar(&availableAgents, "agents", nil, "Agent types available to run the plan")
}

func runPlan(cmd *cobra.Command, args []string) error {
	prompt := joinArgs(args)
	supplied := planText
	if planFile != "" {
		data, err := os.ReadFile(planFile)
		if err != nil {
			return fmt.Errorf("read plan file: %w", err)
		}
		supplied = string(data)
	}

	return withCore(cmd.Context(), func(c *core.Core, id types.AgentIdentity) error {
		plan, err := c.Plan(cmd.Context(), id, prompt, supplied)
		if err != nil {
			return err
		}
		if len(availableAgents) > 0 {
			reg, err := externalRegistry(availableAgents)
			if err != nil {
				return err
			}
			if missing := reg.Missing(plan); len(missing) > 0 {
				logging.Planner("plan needs unregistered agents", zap.Strings("agent_types", missing))
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: no agent registered for: %s\n", strings.Join(missing, ", "))
			}
		}
		return writeJSON(cmd, plan)
	})
}

// externalRegistry registers names as agents that run outside this process.
func externalRegistry(names []string) (*agents.Registry, error) {
	reg := agents.NewRegistry()
	for _, name := range names {
		name = strings.TrimSpace(name)
		if _, ok := reg.Lookup(name); ok {
			continue
		}
		err := reg.Register(name, types.AgentFunc(func(context.Context, types.AgentIdentity, types.CoreHandle, string) (string, error) {
			return "", fmt.Errorf("agent %s runs out of process", name)
		}))
		if err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
