package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"permutex/cmd/permutex/ui"
	"permutex/internal/source"
)

var estimateSamples int

// planCmd prints the shard plan without running it
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the shard plan without running it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := buildPlan()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderPlan(ui.DefaultStyles(), plan))
		return nil
	},
}

// estimateCmd sizes the candidate spaces
var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate candidate counts and output size",
	Long: `Prints the index space of every engine, the number of candidates and
the output size. The atomic space is sized exactly; mutation spaces larger
than --samples indexes are sampled and extrapolated.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := buildPlan()
		if err != nil {
			return err
		}
		ests, err := plan.Estimate(estimateSamples)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderEstimate(ui.DefaultStyles(), plan, ests))
		return nil
	},
}

func init() {
	estimateCmd.Flags().IntVar(&estimateSamples, "samples", source.DefaultSamples, "Indexes materialized when sampling a mutation space")
}
