package ui

import (
	"strings"
	"testing"

	"permutex/internal/types"
)

func TestDetectTheme(t *testing.T) {
	t.Setenv("COLORFGBG", "")
	t.Setenv("PERMUTEX_DARK_MODE", "1")
	dark := DetectTheme()
	if !dark.IsDark {
		t.Fatalf("expected dark theme when PERMUTEX_DARK_MODE=1")
	}

	t.Setenv("PERMUTEX_DARK_MODE", "")
	light := DetectTheme()
	if light.IsDark {
		t.Fatalf("expected light theme when PERMUTEX_DARK_MODE is unset")
	}

	t.Setenv("COLORFGBG", "15;0")
	if !DetectTheme().IsDark {
		t.Fatalf("expected dark theme for a black background")
	}
}

func TestProgress(t *testing.T) {
	s := DefaultStyles()
	if got := s.Progress(0.5, 10); !strings.Contains(got, "50.0%") {
		t.Errorf("unexpected progress %q", got)
	}
	if got := s.Progress(2, 4); !strings.Contains(got, "100.0%") {
		t.Errorf("progress should clamp, got %q", got)
	}
	if got := s.Progress(-1, 4); !strings.Contains(got, "0.0%") {
		t.Errorf("progress should clamp, got %q", got)
	}
}

func TestStateAndBytes(t *testing.T) {
	s := DefaultStyles()
	for _, st := range []types.ShardState{types.ShardStatePending, types.ShardStateInProgress, types.ShardStateComplete, types.ShardStateFailed} {
		if !strings.Contains(s.State(st), string(st)) {
			t.Errorf("state %s not rendered", st)
		}
	}

	cases := map[uint64]string{
		0:       "0 B",
		1023:    "1023 B",
		1536:    "1.5 KiB",
		1 << 20: "1.0 MiB",
		5 << 30: "5.0 GiB",
	}
	for n, want := range cases {
		if got := Bytes(n); got != want {
			t.Errorf("Bytes(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestRenderDivider(t *testing.T) {
	got := DefaultStyles().RenderDivider(12)
	if !strings.Contains(got, strings.Repeat("─", 12)) || strings.Contains(got, strings.Repeat("─", 13)) {
		t.Errorf("RenderDivider(12) = %q", got)
	}
}
