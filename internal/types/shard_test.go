package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestShardStateValid(t *testing.T) {
	cases := map[ShardState]bool{
		ShardStatePending:    true,
		ShardStateInProgress: true,
		ShardStateComplete:   true,
		ShardStateFailed:     true,
		ShardState("idle"):   false,
	}

	for state, want := range cases {
		if got := state.Valid(); got != want {
			t.Fatalf("state %q valid = %v, want %v", state, got, want)
		}
	}
}

func TestShardRemainingAndProgress(t *testing.T) {
	s := Shard{ID: 1, Start: 50, End: 100, State: ShardStateInProgress, Cursor: 80}
	if got := s.Remaining(); got != 20 {
		t.Fatalf("remaining = %d, want 20", got)
	}
	if got := s.Progress(); got != 0.6 {
		t.Fatalf("progress = %v, want 0.6", got)
	}

	s.State = ShardStateComplete
	if got := s.Remaining(); got != 0 {
		t.Fatalf("complete shard remaining = %d, want 0", got)
	}

	empty := Shard{Start: 10, End: 10}
	if got := empty.Progress(); got != 1 {
		t.Fatalf("empty shard progress = %v, want 1", got)
	}
}

func TestShardReset(t *testing.T) {
	s := Shard{ID: 3, Start: 5, End: 9, State: ShardStateFailed, Cursor: 7, Written: 2, Bytes: 12, Error: "disk full"}
	r := s.Reset()
	if r.State != ShardStatePending || r.Cursor != 5 || r.Written != 0 || r.Bytes != 0 || r.Error != "" {
		t.Fatalf("unexpected reset shard: %+v", r)
	}
	if s.State != ShardStateFailed {
		t.Fatalf("reset mutated the receiver")
	}
}

func TestParseEngineTag(t *testing.T) {
	if tag, err := ParseEngineTag("atomic"); err != nil || tag != EngineAtomic {
		t.Fatalf("ParseEngineTag(atomic) = %q, %v", tag, err)
	}
	if _, err := ParseEngineTag("markov"); err == nil {
		t.Fatalf("expected error for unknown engine")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	wrapped := fmt.Errorf("write batch: %w", &ShardIOError{ShardID: 2, Op: "flush", Err: errors.New("no space left on device")})
	if !errors.Is(wrapped, ErrShardIO) {
		t.Fatalf("expected ErrShardIO through wrapping")
	}
	var ioErr *ShardIOError
	if !errors.As(wrapped, &ioErr) || ioErr.ShardID != 2 {
		t.Fatalf("expected ShardIOError for shard 2, got %v", wrapped)
	}

	incomplete := &IncompleteRunError{Pending: []int{4, 1}}
	if !errors.Is(incomplete, ErrIncompleteRun) {
		t.Fatalf("expected ErrIncompleteRun")
	}
	if got := incomplete.Error(); got != "incomplete run: 2 shard(s) not complete: 1,4" {
		t.Fatalf("unexpected message %q", got)
	}

	cfgErr := NewConfigurationError("atomic.alphabet", "must not be empty")
	if !errors.Is(cfgErr, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration")
	}

	if IsFatal(&ManifestMismatchError{Stored: "a", Current: "b"}) {
		t.Fatalf("manifest mismatch must not be fatal")
	}
	if !IsFatal(&RunFailedError{Failed: []int{0}}) {
		t.Fatalf("run failure must be fatal")
	}
}
