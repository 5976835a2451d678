package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"permutex/cmd/permutex/ui"
	"permutex/internal/metrics"
	"permutex/internal/runner"
)

var (
	// Plan flags, shared by generate, plan and estimate
	profileFlag string
	workersFlag int
	outputFlag  string

	// Generate flags
	noMerge bool
)

// generateCmd plans, runs or resumes, and merges
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a wordlist, resuming an interrupted run",
	Long: `Builds the candidate spaces from the configuration, splits them into
shards and runs them on a worker pool. If the work dir holds a manifest for
the same configuration, complete shards are skipped and interrupted ones
continue from their checkpoint. A manifest written by a different
configuration is archived and a fresh plan adopted.

Once every shard is complete the shard files are merged into output.path.

Example:
  permutex generate -c run.yaml
  permutex generate -c run.yaml --profile max --no-merge`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func addPlanFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&profileFlag, "profile", "", "Performance profile: max, balanced, power_saver, custom")
	cmd.Flags().IntVar(&workersFlag, "workers", 0, "Worker count (required for the custom profile)")
}

func init() {
	addPlanFlags(generateCmd)
	addPlanFlags(planCmd)
	addPlanFlags(estimateCmd)
	generateCmd.Flags().BoolVar(&noMerge, "no-merge", false, "Leave shard files in the work dir")
	generateCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Final wordlist path (default: output.path)")
}

// buildPlan loads the configuration, applies command-line overrides and
// builds the run plan.
func buildPlan() (*runner.Plan, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if profileFlag != "" {
		cfg.Profile.Kind = profileFlag
	}
	if workersFlag > 0 {
		cfg.Profile.Workers = workersFlag
	}
	if outputFlag != "" {
		cfg.Output.Path = outputFlag
	}
	return runner.Build(cfg, 0)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	plan, err := buildPlan()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	styles := ui.DefaultStyles()

	logger.Info("Starting run",
		zap.String("fingerprint", fingerprintShort(plan.Fingerprint)),
		zap.Int("shards", len(plan.Shards)),
		zap.Stringer("profile", plan.Profile))

	sum, err := plan.Execute(cmd.Context(), runner.Options{NoMerge: noMerge, Metrics: metrics.New()})
	if sum != nil {
		fmt.Fprint(out, renderSummary(styles, plan, sum))
	}
	return err
}
