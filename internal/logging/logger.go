// Package logging provides config-driven categorized logging for permutex.
// Each category is a named child of a single zap logger built by Initialize.
// Until Initialize is called every category logger is a no-op.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup, config resolution
	CategoryConfig   Category = "config"   // Config loading and validation
	CategoryPlanner  Category = "planner"  // Shard planning
	CategoryWorker   Category = "worker"   // Shard execution
	CategoryManifest Category = "manifest" // Manifest persistence and reconciliation
	CategoryMerge    Category = "merge"    // Merge stage
	CategoryEngine   Category = "engine"   // Mutation / stretch / permutation engines
	CategoryDedup    Category = "dedup"    // Global dedup filter
	CategoryRunner   Category = "runner"   // Run orchestration
)

// Config mirrors config.LoggingConfig to avoid circular imports.
type Config struct {
	Level      string          // debug, info, warn, error
	Format     string          // console, json
	File       string          // optional output file; stderr when empty
	Categories map[string]bool // per-category switch; missing means enabled
}

// Logger wraps a named zap logger for one category.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu         sync.RWMutex
	root       = zap.NewNop()
	loggers    = make(map[Category]*Logger)
	categories map[string]bool
	closers    []func() error
)

// Initialize builds the root zap logger. It may be called again to reconfigure;
// cached category loggers are dropped.
func Initialize(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	var encCfg zapcore.EncoderConfig
	var encoder zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "json":
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "ts"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	case "", "console", "text":
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	sink := zapcore.Lock(os.Stderr)
	var closeFn func() error
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		sink = zapcore.Lock(f)
		closeFn = f.Close
	}

	core := zapcore.NewCore(encoder, sink, zap.NewAtomicLevelAt(level))
	SetRoot(zap.New(core))

	mu.Lock()
	categories = cfg.Categories
	if closeFn != nil {
		closers = append(closers, closeFn)
	}
	mu.Unlock()

	Get(CategoryBoot).Debug("logging initialized level=%s format=%s", level, cfg.Format)
	return nil
}

// SetRoot installs l as the root logger. Tests use it with zaptest/observer.
func SetRoot(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	root = l
	loggers = make(map[Category]*Logger)
}

// Root returns the root zap logger.
func Root() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// ParseLevel maps a config string onto a zap level. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if categories == nil {
		return true
	}
	enabled, exists := categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}

	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := &Logger{category: category, sugar: root.Named(string(category)).Sugar()}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) { l.sugar.Infof(format, args...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// With returns a child logger carrying structured fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.Desugar().With(fields...).Sugar()}
}

// Event logs msg at info with an event field, for soft conditions that must be
// distinguishable from failures.
func (l *Logger) Event(event, msg string, fields ...zap.Field) {
	l.sugar.Desugar().Info(msg, append([]zap.Field{zap.String("event", event)}, fields...)...)
}

// Failure logs msg at error with an event field and the error.
func (l *Logger) Failure(event, msg string, err error, fields ...zap.Field) {
	l.sugar.Desugar().Error(msg, append([]zap.Field{zap.String("event", event), zap.Error(err)}, fields...)...)
}

// Sync flushes the root logger and closes any log file.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	_ = root.Sync()
	for _, c := range closers {
		_ = c()
	}
	closers = nil
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

// Planner logs to the planner category
func Planner(format string, args ...interface{}) { Get(CategoryPlanner).Info(format, args...) }

// PlannerDebug logs debug to the planner category
func PlannerDebug(format string, args ...interface{}) { Get(CategoryPlanner).Debug(format, args...) }

// Worker logs to the worker category
func Worker(format string, args ...interface{}) { Get(CategoryWorker).Info(format, args...) }

// WorkerDebug logs debug to the worker category
func WorkerDebug(format string, args ...interface{}) { Get(CategoryWorker).Debug(format, args...) }

// Manifest logs to the manifest category
func Manifest(format string, args ...interface{}) { Get(CategoryManifest).Info(format, args...) }

// ManifestDebug logs debug to the manifest category
func ManifestDebug(format string, args ...interface{}) { Get(CategoryManifest).Debug(format, args...) }

// Merge logs to the merge category
func Merge(format string, args ...interface{}) { Get(CategoryMerge).Info(format, args...) }

// EngineDebug logs debug to the engine category
func EngineDebug(format string, args ...interface{}) { Get(CategoryEngine).Debug(format, args...) }

// Dedup logs to the dedup category
func Dedup(format string, args ...interface{}) { Get(CategoryDedup).Info(format, args...) }

// Runner logs to the runner category
func Runner(format string, args ...interface{}) { Get(CategoryRunner).Info(format, args...) }

// RunnerDebug logs debug to the runner category
func RunnerDebug(format string, args ...interface{}) { Get(CategoryRunner).Debug(format, args...) }
