package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"permutex/internal/logging"
	"permutex/internal/types"
)

// Decision is the outcome of reconciling a plan with a stored manifest.
type Decision struct {
	// Manifest is the manifest this run continues: the stored one when its
	// fingerprint matches, otherwise a fresh one over the plan.
	Manifest *Manifest
	// Run lists the shards to execute in ID order. Pending shards start at
	// Start; InProgress and Failed shards carry their checkpoint.
	Run     []types.Shard
	Skipped []int // Complete shards, trusted without re-verification
	Resumed []int // InProgress or Failed shards continuing from a checkpoint
	// Mismatch is set when a stored manifest was produced by a different
	// configuration and has been (or must be) archived.
	Mismatch *types.ManifestMismatchError
}

// Fresh reports whether the run starts from an empty plan.
func (d Decision) Fresh() bool {
	return len(d.Skipped) == 0 && len(d.Resumed) == 0
}

// Reconcile decides which shards of plan to run given the stored manifest
// (nil when none). It performs no I/O.
func Reconcile(plan []types.Shard, fingerprint string, stored *Manifest) Decision {
	if stored == nil {
		m := New(fingerprint, plan)
		return Decision{Manifest: m, Run: m.Clone().Shards}
	}
	if stored.Fingerprint != fingerprint {
		m := New(fingerprint, plan)
		return Decision{
			Manifest: m,
			Run:      m.Clone().Shards,
			Mismatch: &types.ManifestMismatchError{Stored: stored.Fingerprint, Current: fingerprint},
		}
	}

	m := stored.Clone()
	var d Decision
	d.Manifest = m
	for i, s := range m.Shards {
		switch s.State {
		case types.ShardStateComplete:
			d.Skipped = append(d.Skipped, s.ID)
		case types.ShardStateInProgress, types.ShardStateFailed:
			d.Resumed = append(d.Resumed, s.ID)
			d.Run = append(d.Run, s)
		default:
			m.Shards[i] = s.Reset()
			d.Run = append(d.Run, m.Shards[i])
		}
	}
	return d
}

// SameLayout reports whether two shard lists cover identical ranges.
func SameLayout(a, b []types.Shard) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Engine != b[i].Engine || a[i].Start != b[i].Start || a[i].End != b[i].End {
			return false
		}
	}
	return true
}

// Resume loads the manifest of workDir, reconciles it with plan and persists
// the result. A fingerprint mismatch archives the stale manifest to
// manifest.stale-<run>.json and its shard directory to shards.stale-<run>;
// the returned Decision carries the mismatch as a warning.
func Resume(workDir string, plan []types.Shard, fingerprint, profile string) (*Store, Decision, error) {
	log := logging.Get(logging.CategoryManifest)

	stored, err := ReadDir(workDir)
	if err != nil {
		return nil, Decision{}, fmt.Errorf("failed to load manifest: %w", err)
	}

	d := Reconcile(plan, fingerprint, stored)
	switch {
	case stored == nil:
		log.Info("no manifest in %s: starting run %s with %d shards", workDir, d.Manifest.RunID, len(plan))
	case d.Mismatch != nil:
		archived, err := archive(workDir, "stale", stored.RunID)
		if err != nil {
			return nil, d, err
		}
		d.Mismatch.ArchivedTo = archived
		if err := archiveShardDir(workDir, stored.RunID); err != nil {
			return nil, d, err
		}
		log.Event("manifest_mismatch", "configuration changed, archived stale manifest",
			zap.String("stored", stored.Fingerprint), zap.String("current", fingerprint), zap.String("archived_to", archived))
	default:
		if !SameLayout(stored.Shards, plan) {
			log.Warn("profile changed since run %s (%s -> %s): keeping the stored shard layout", stored.RunID, stored.Profile, profile)
		}
		log.Info("resuming run %s: %d complete, %d resumed, %d pending",
			stored.RunID, len(d.Skipped), len(d.Resumed), len(d.Run)-len(d.Resumed))
	}
	if d.Manifest.Profile == "" {
		d.Manifest.Profile = profile
	}

	store, err := Create(workDir, d.Manifest)
	if err != nil {
		return nil, d, err
	}
	return store, d, nil
}

func archiveShardDir(workDir, runID string) error {
	src := filepath.Join(workDir, "shards")
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	dst := filepath.Join(workDir, fmt.Sprintf("shards.stale-%s", runID))
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to archive shard directory: %w", err)
	}
	return nil
}
