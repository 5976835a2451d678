// Package manifest persists per-shard progress for a run and decides, on
// restart, which shards to skip, resume or run from scratch.
//
// The manifest is the only mutable state shared by workers. Each worker
// writes only its own shard entry; the whole file is rewritten under a short
// mutex with a temp-then-rename write so a crash never leaves a partial file.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"permutex/internal/types"
)

// Version is the manifest file format version.
const Version = 1

// FileName is the manifest's name inside the work dir.
const FileName = "manifest.json"

// Manifest is the durable record of one run's shard states.
type Manifest struct {
	Version     int           `json:"version"`
	RunID       string        `json:"run_id"`
	Fingerprint string        `json:"fingerprint"`
	Profile     string        `json:"profile,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Shards      []types.Shard `json:"shards"`
}

// New starts a manifest for a fresh plan with a new run ID.
func New(fingerprint string, plan []types.Shard) *Manifest {
	now := time.Now().UTC()
	shards := make([]types.Shard, len(plan))
	for i, s := range plan {
		shards[i] = s.Reset()
	}
	return &Manifest{
		Version:     Version,
		RunID:       uuid.NewString(),
		Fingerprint: fingerprint,
		CreatedAt:   now,
		UpdatedAt:   now,
		Shards:      shards,
	}
}

// Fingerprint combines configuration parts into the run's identity. Any part
// that changes which string an index maps to must be included.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	fmt.Fprintf(h, "v%d", Version)
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Clone returns a deep copy.
func (m *Manifest) Clone() *Manifest {
	if m == nil {
		return nil
	}
	out := *m
	out.Shards = append([]types.Shard(nil), m.Shards...)
	return &out
}

// Validate checks the structural invariants: dense IDs in order, known
// states, cursors inside their range, and per-engine ranges that tile
// [0, total) without gaps or overlaps.
func (m *Manifest) Validate() error {
	if m.Version != Version {
		return fmt.Errorf("unsupported manifest version %d", m.Version)
	}
	next := map[types.EngineTag]uint64{}
	for i, s := range m.Shards {
		if s.ID != i {
			return fmt.Errorf("shard at position %d has id %d", i, s.ID)
		}
		if !s.Engine.Valid() {
			return fmt.Errorf("shard %d: unknown engine %q", s.ID, s.Engine)
		}
		if !s.State.Valid() {
			return fmt.Errorf("shard %d: unknown state %q", s.ID, s.State)
		}
		if s.Start != next[s.Engine] || s.End <= s.Start {
			return fmt.Errorf("shard %d: range [%d,%d) does not continue %s at %d", s.ID, s.Start, s.End, s.Engine, next[s.Engine])
		}
		if s.Cursor < s.Start || s.Cursor > s.End {
			return fmt.Errorf("shard %d: cursor %d outside [%d,%d]", s.ID, s.Cursor, s.Start, s.End)
		}
		if s.Bytes < 0 {
			return fmt.Errorf("shard %d: negative byte count", s.ID)
		}
		next[s.Engine] = s.End
	}
	return nil
}

// Incomplete returns the IDs of shards that are not Complete.
func (m *Manifest) Incomplete() []int {
	var ids []int
	for _, s := range m.Shards {
		if s.State != types.ShardStateComplete {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// Failed returns the IDs of Failed shards.
func (m *Manifest) Failed() []int {
	var ids []int
	for _, s := range m.Shards {
		if s.State == types.ShardStateFailed {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// Counts tallies shards by state.
func (m *Manifest) Counts() map[types.ShardState]int {
	out := make(map[types.ShardState]int, 4)
	for _, s := range m.Shards {
		out[s.State]++
	}
	return out
}

// Totals sums index and written counts over all shards.
func (m *Manifest) Totals() (indexes, done, written uint64) {
	for _, s := range m.Shards {
		indexes += s.Len()
		done += s.Len() - s.Remaining()
		written += s.Written
	}
	return indexes, done, written
}

// Path returns the manifest path inside workDir.
func Path(workDir string) string {
	return filepath.Join(workDir, FileName)
}

// Read loads and validates the manifest at path. A missing file returns an
// error satisfying errors.Is(err, os.ErrNotExist).
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return &m, nil
}

// ReadDir loads the manifest of workDir, returning nil when there is none.
func ReadDir(workDir string) (*Manifest, error) {
	m, err := Read(Path(workDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return m, err
}

// write replaces path atomically: the manifest is written and synced to a
// sibling temp file which is then renamed over path.
func write(path string, m *Manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	data = append(data, '\n')

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// archive renames the manifest at workDir to manifest.<label>-<runID>.json
// and returns the new path.
func archive(workDir, label, runID string) (string, error) {
	if runID == "" {
		runID = time.Now().UTC().Format("20060102T150405")
	}
	dst := filepath.Join(workDir, fmt.Sprintf("manifest.%s-%s.json", label, runID))
	if err := os.Rename(Path(workDir), dst); err != nil {
		return "", fmt.Errorf("failed to archive manifest: %w", err)
	}
	return dst, nil
}

// ArchiveMerged moves a merged run's manifest out of the way so the next run
// in the same work dir starts fresh.
func ArchiveMerged(workDir, runID string) (string, error) {
	return archive(workDir, "merged", runID)
}
