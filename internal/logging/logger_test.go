package logging

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(level)
	SetRoot(zap.New(core))
	t.Cleanup(func() {
		SetRoot(nil)
		mu.Lock()
		categories = nil
		mu.Unlock()
	})
	return logs
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q) error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestCategoryLoggerNamesEntries(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)

	Planner("planned %d shards", 4)
	WorkerDebug("shard %d checkpoint", 2)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].LoggerName != "planner" || entries[0].Message != "planned 4 shards" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].LoggerName != "worker" || entries[1].Level != zapcore.DebugLevel {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
}

func TestDisabledCategoryIsNoop(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)
	mu.Lock()
	categories = map[string]bool{"dedup": false}
	mu.Unlock()

	Dedup("dropped %d", 3)
	Merge("merged")

	if logs.Len() != 1 {
		t.Fatalf("expected only the merge entry, got %d", logs.Len())
	}
}

func TestEventAndFailureAreDistinguishable(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)

	l := Get(CategoryEngine)
	l.Event("recursion_bound", "depth bound reached", zap.String("token", "john"))
	l.Failure("shard_failed", "shard failed", errors.New("disk full"), zap.Int("shard", 1))

	bound := logs.FilterField(zap.String("event", "recursion_bound")).All()
	if len(bound) != 1 || bound[0].Level != zapcore.InfoLevel {
		t.Fatalf("expected one info recursion_bound entry, got %+v", bound)
	}
	failed := logs.FilterField(zap.String("event", "shard_failed")).All()
	if len(failed) != 1 || failed[0].Level != zapcore.ErrorLevel {
		t.Fatalf("expected one error shard_failed entry, got %+v", failed)
	}
}

func TestInitializeWritesJSONFile(t *testing.T) {
	t.Cleanup(func() { SetRoot(nil) })
	path := filepath.Join(t.TempDir(), "logs", "permutex.log")

	if err := Initialize(Config{Level: "info", Format: "json", File: path}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	Runner("run started")
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"run started"`) {
		t.Errorf("log file missing entry: %s", data)
	}
}

func TestInitializeRejectsUnknownFormat(t *testing.T) {
	if err := Initialize(Config{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
