package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"permutex/internal/config"
	"permutex/internal/logging"
)

// Exit codes
const (
	exitOK          = 0
	exitError       = 1
	exitInterrupted = 130
)

var (
	// Global flags
	verbose    bool
	workDir    string
	configPath string

	// Logger
	logger = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "permutex",
	Short: "Permutex - resumable, sharded wordlist generation",
	Long: `Permutex expands seed tokens into candidate passwords with a bounded
mutation engine and an optional bruteforce alphabet, splits the candidate
space into shards, runs them on a worker pool and merges the shard files.

Runs are resumable: every shard checkpoints its cursor to manifest.json in
the work dir, and rerunning the same configuration continues where the last
run stopped.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		l, err := zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		logging.SetRoot(l)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workDir, "work-dir", "w", "", "Run directory (default: output.work_dir from the config)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "permutex.yaml", "Run configuration file")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(mergeCmd)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown: workers checkpoint and stop
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	signal.Stop(sigCh)
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "interrupted: progress saved, rerun to resume")
		return exitInterrupted
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitError
	}
}

// loadConfig reads --config and applies --work-dir. Logging is reconfigured
// from the file's logging section; --verbose still forces debug.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if workDir != "" {
		cfg.Output.WorkDir = workDir
	}

	lc := cfg.Logging
	if verbose {
		lc.Level = "debug"
	}
	if err := lc.Validate(); err != nil {
		return nil, err
	}
	if err := logging.Initialize(lc.ToLogging()); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger = logging.Root()
	logger.Debug("configuration loaded", zap.String("path", configPath), zap.String("work_dir", cfg.Output.WorkDir))
	return cfg, nil
}

// resolveWorkDir is the run directory for commands that need no config:
// --work-dir, else the config's work dir, else the default.
func resolveWorkDir() string {
	if workDir != "" {
		return workDir
	}
	if cfg, err := config.Load(configPath); err == nil && cfg.Output.WorkDir != "" {
		return cfg.Output.WorkDir
	}
	return config.DefaultConfig().Output.WorkDir
}
