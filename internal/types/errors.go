package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for the run taxonomy. Typed errors below unwrap to these so
// callers can branch with errors.Is and recover detail with errors.As.
var (
	// ErrConfiguration is returned for invalid alphabet, mutation or profile settings.
	ErrConfiguration = errors.New("configuration error")

	// ErrManifestMismatch marks a stored manifest produced by a different configuration.
	ErrManifestMismatch = errors.New("manifest fingerprint mismatch")

	// ErrShardIO is returned when a shard file or checkpoint write fails.
	ErrShardIO = errors.New("shard io error")

	// ErrIncompleteRun is returned by merge while shards remain non-complete.
	ErrIncompleteRun = errors.New("incomplete run")

	// ErrRunFailed is returned after all shards are accounted for and at least one failed.
	ErrRunFailed = errors.New("run failed")

	// ErrRecursionBound marks the soft depth stop of the mutation engine. It is
	// reported through stats and logs, never returned as a failure.
	ErrRecursionBound = errors.New("recursion bound reached")

	// ErrSpaceOverflow is returned when an enumeration would not fit in uint64.
	ErrSpaceOverflow = errors.New("enumeration space overflows uint64")
)

// ConfigurationError describes an invalid configuration field. Not retried.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// NewConfigurationError builds a ConfigurationError for field.
func NewConfigurationError(field, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ManifestMismatchError is a warning: the stored manifest was archived and a
// fresh plan adopted.
type ManifestMismatchError struct {
	Stored     string
	Current    string
	ArchivedTo string
}

func (e *ManifestMismatchError) Error() string {
	return fmt.Sprintf("manifest fingerprint %s does not match current configuration %s (archived to %s)",
		short(e.Stored), short(e.Current), e.ArchivedTo)
}

func (e *ManifestMismatchError) Is(target error) bool { return target == ErrManifestMismatch }

// ShardIOError wraps a write failure on a shard file or its checkpoint.
type ShardIOError struct {
	ShardID int
	Op      string
	Err     error
}

func (e *ShardIOError) Error() string {
	return fmt.Sprintf("shard %d: %s: %v", e.ShardID, e.Op, e.Err)
}

func (e *ShardIOError) Unwrap() error { return e.Err }

func (e *ShardIOError) Is(target error) bool { return target == ErrShardIO }

// IncompleteRunError lists the shards that block a merge.
type IncompleteRunError struct {
	Pending []int
}

func (e *IncompleteRunError) Error() string {
	return fmt.Sprintf("incomplete run: %d shard(s) not complete: %s", len(e.Pending), joinIDs(e.Pending))
}

func (e *IncompleteRunError) Is(target error) bool { return target == ErrIncompleteRun }

// RunFailedError lists the shards left Failed; rerunning retries only these
// (and any InProgress ones).
type RunFailedError struct {
	Failed []int
	Errs   map[int]error
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("run failed: %d shard(s) failed: %s", len(e.Failed), joinIDs(e.Failed))
}

func (e *RunFailedError) Is(target error) bool { return target == ErrRunFailed }

// IsFatal reports whether err should stop a run before any shard is scheduled.
// Manifest mismatches and recursion bounds are soft.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrManifestMismatch) || errors.Is(err, ErrRecursionBound) {
		return false
	}
	return true
}

func joinIDs(ids []int) string {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}

func short(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
