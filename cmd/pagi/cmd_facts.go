package main

import (
	"fmt"
	"time"

	"pagi/internal/core"
	"pagi/internal/types"

	"github.com/spf13/cobra"
)

var (
	factType      string
	factContent   string
	factTimestamp uint64

	reflectTarget    string
	reflectCritique  string
	reflectDirective string

	sinceTimestamp uint64
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a fact in the knowledge base",
	Long: `Records one AgentFact as --agent-id. Requires WriteFacts, or RoboticsAction.

Example:
  pagi record --type AnalysisResult --content "Failure: SearchAgent timeout"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCore(cmd.Context(), func(c *core.Core, id types.AgentIdentity) error {
			fact := types.AgentFact{
				AgentID:   id.ID,
				Timestamp: timestampOrNow(factTimestamp),
				FactType:  factType,
				Content:   factContent,
			}
			if err := c.RecordFact(cmd.Context(), id, fact); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recorded %s fact at %d\n", fact.FactType, fact.Timestamp)
			return nil
		})
	},
}

var reflectCmd = &cobra.Command{
	Use:   "reflect",
	Short: "Record a reflection for an agent type",
	Long: `Records a ReflectionFact. The planner applies the newest reflection for
SearchAgent when its directive asks to split or run searches concurrently.

Example:
  pagi reflect --target SearchAgent --critique "too slow" --directive "split into concurrent searches"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCore(cmd.Context(), func(c *core.Core, id types.AgentIdentity) error {
			ts := timestampOrNow(factTimestamp)
			err := c.RecordReflection(cmd.Context(), id, ts, types.ReflectionFact{
				TargetAgent:  reflectTarget,
				Critique:     reflectCritique,
				NewDirective: reflectDirective,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recorded reflection for %s at %d\n", reflectTarget, ts)
			return nil
		})
	},
}

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "List facts recorded since a timestamp",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCore(cmd.Context(), func(c *core.Core, id types.AgentIdentity) error {
			facts, err := c.Facts(cmd.Context(), id, sinceTimestamp)
			if err != nil {
				return err
			}
			if len(facts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No facts found.")
				return nil
			}
			return writeJSON(cmd, facts)
		})
	},
}

func init() {
	recordCmd.Flags().StringVar(&factType, "type", "", "Fact type (required)")
	recordCmd.Flags().StringVar(&factContent, "content", "", "Fact content")
	recordCmd.Flags().Uint64Var(&factTimestamp, "timestamp", 0, "Unix seconds (default: now)")
	recordCmd.MarkFlagRequired("type")

	reflectCmd.Flags().StringVar(&reflectTarget, "target", types.AgentTypeSearch, "Agent type the reflection addresses")
	reflectCmd.Flags().StringVar(&reflectCritique, "critique", "", "What went wrong")
	reflectCmd.Flags().StringVar(&reflectDirective, "directive", "", "Behavior change to apply (required)")
	reflectCmd.Flags().Uint64Var(&factTimestamp, "timestamp", 0, "Unix seconds (default: now)")
	reflectCmd.MarkFlagRequired("directive")

	factsCmd.Flags().Uint64Var(&sinceTimestamp, "since", 0, "Only facts with timestamp >= since")
}

func timestampOrNow(ts uint64) uint64 {
	if ts != 0 {
		return ts
	}
	return uint64(time.Now().Unix())
}
