package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"permutex/cmd/permutex/ui"
	"permutex/internal/config"
	"permutex/internal/manifest"
	"permutex/internal/merge"
)

var (
	mergeOutput       string
	mergeKeepShards   bool
	mergeKeepManifest bool
)

// mergeCmd merges a completed run
var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge the shard files of a completed run",
	Long: `Verifies every shard file against the manifest's byte and line counts
and concatenates them in shard order. Fails without writing anything if a
shard is not complete.`,
	Args: cobra.NoArgs,
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "", "Final wordlist path (default: output.path)")
	mergeCmd.Flags().BoolVar(&mergeKeepShards, "keep-shards", false, "Keep shard files after merging")
	mergeCmd.Flags().BoolVar(&mergeKeepManifest, "keep-manifest", false, "Keep manifest.json instead of archiving it")
}

func runMerge(cmd *cobra.Command, args []string) error {
	wd := resolveWorkDir()
	m, err := manifest.ReadDir(wd)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("no manifest in %s", wd)
	}

	output := mergeOutput
	if output == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		output = cfg.Output.Path
	}

	res, err := merge.Merge(wd, m, output, merge.Options{KeepShards: mergeKeepShards, KeepManifest: mergeKeepManifest})
	if err != nil {
		return err
	}
	styles := ui.DefaultStyles()
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d lines, %s from %d shards\n",
		styles.Success.Render("merged"), res.Output, res.Lines, ui.Bytes(uint64(res.Bytes)), res.Shards)
	return nil
}
