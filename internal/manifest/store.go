package manifest

import (
	"fmt"
	"sync"
	"time"

	"permutex/internal/logging"
	"permutex/internal/types"
)

// Store owns the on-disk manifest of one run and serializes shard-scoped
// updates. It implements the worker's checkpoint sink.
type Store struct {
	mu   sync.Mutex
	path string
	m    *Manifest
	now  func() time.Time
}

// Create writes m to workDir and returns a store over it.
func Create(workDir string, m *Manifest) (*Store, error) {
	s := &Store{path: Path(workDir), m: m.Clone(), now: func() time.Time { return time.Now().UTC() }}
	if err := write(s.path, s.m); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the manifest file path.
func (s *Store) Path() string { return s.path }

// Snapshot returns a copy of the current manifest.
func (s *Store) Snapshot() *Manifest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Clone()
}

// Shard returns the current entry for id.
func (s *Store) Shard(id int) (types.Shard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.m.Shards) {
		return types.Shard{}, false
	}
	return s.m.Shards[id], true
}

// Checkpoint replaces the entry for sh.ID and rewrites the manifest. The
// shard's identity (engine, range, output) is immutable; only progress fields
// may change. On write failure the in-memory entry is rolled back.
func (s *Store) Checkpoint(sh types.Shard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sh.ID < 0 || sh.ID >= len(s.m.Shards) {
		return fmt.Errorf("checkpoint: unknown shard %d", sh.ID)
	}
	prev := s.m.Shards[sh.ID]
	if prev.Engine != sh.Engine || prev.Start != sh.Start || prev.End != sh.End || prev.Output != sh.Output {
		return fmt.Errorf("checkpoint: shard %d identity changed", sh.ID)
	}
	if sh.Cursor < sh.Start || sh.Cursor > sh.End {
		return fmt.Errorf("checkpoint: shard %d cursor %d outside [%d,%d]", sh.ID, sh.Cursor, sh.Start, sh.End)
	}

	prevUpdated := s.m.UpdatedAt
	s.m.Shards[sh.ID] = sh
	s.m.UpdatedAt = s.now()
	if err := write(s.path, s.m); err != nil {
		s.m.Shards[sh.ID] = prev
		s.m.UpdatedAt = prevUpdated
		return err
	}
	logging.ManifestDebug("shard %d checkpoint: state=%s cursor=%d written=%d bytes=%d",
		sh.ID, sh.State, sh.Cursor, sh.Written, sh.Bytes)
	return nil
}
