package manifest

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"permutex/internal/types"
)

func plan(ranges ...[2]uint64) []types.Shard {
	var out []types.Shard
	for i, r := range ranges {
		out = append(out, types.Shard{
			ID: i, Engine: types.EngineAtomic, Start: r[0], End: r[1],
			State: types.ShardStatePending, Cursor: r[0],
			Output: filepath.Join("shards", "s"+string(rune('a'+i))),
		})
	}
	return out
}

func TestReconcileWithoutManifest(t *testing.T) {
	p := plan([2]uint64{0, 50}, [2]uint64{50, 100})
	d := Reconcile(p, "fp", nil)
	assert.Len(t, d.Run, 2)
	assert.True(t, d.Fresh())
	assert.Nil(t, d.Mismatch)
	assert.NotEmpty(t, d.Manifest.RunID)
}

func TestReconcileSkipsCompleteAndResumesCursor(t *testing.T) {
	p := plan([2]uint64{0, 50}, [2]uint64{50, 100}, [2]uint64{100, 150}, [2]uint64{150, 200})
	stored := New("fp", p)
	stored.Shards[0].State = types.ShardStateComplete
	stored.Shards[0].Cursor = 50
	stored.Shards[1].State = types.ShardStateInProgress
	stored.Shards[1].Cursor = 80
	stored.Shards[1].Bytes = 120
	stored.Shards[2].State = types.ShardStateFailed
	stored.Shards[2].Cursor = 110

	d := Reconcile(p, "fp", stored)
	assert.Equal(t, []int{0}, d.Skipped)
	assert.Equal(t, []int{1, 2}, d.Resumed)
	require.Len(t, d.Run, 3)
	assert.Equal(t, uint64(80), d.Run[0].Cursor, "resume starts at the absolute next index")
	assert.Equal(t, int64(120), d.Run[0].Bytes)
	assert.Equal(t, uint64(110), d.Run[1].Cursor)
	assert.Equal(t, uint64(150), d.Run[2].Cursor)
	assert.Equal(t, stored.RunID, d.Manifest.RunID)
}

func TestReconcileMismatchStartsFresh(t *testing.T) {
	p := plan([2]uint64{0, 10})
	stored := New("old", p)
	stored.Shards[0].State = types.ShardStateComplete

	d := Reconcile(p, "new", stored)
	require.NotNil(t, d.Mismatch)
	assert.ErrorIs(t, d.Mismatch, types.ErrManifestMismatch)
	assert.False(t, types.IsFatal(d.Mismatch))
	assert.Equal(t, types.ShardStatePending, d.Run[0].State)
	assert.NotEqual(t, stored.RunID, d.Manifest.RunID)
}

func TestResumeArchivesStaleManifest(t *testing.T) {
	dir := t.TempDir()
	p := plan([2]uint64{0, 10})

	store, d, err := Resume(dir, p, "old", "balanced")
	require.NoError(t, err)
	oldRun := d.Manifest.RunID
	sh := d.Run[0]
	sh.State = types.ShardStateComplete
	sh.Cursor = sh.End
	require.NoError(t, store.Checkpoint(sh))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "shards"), 0755))

	_, d, err = Resume(dir, p, "new", "balanced")
	require.NoError(t, err)
	require.NotNil(t, d.Mismatch)
	assert.Equal(t, filepath.Join(dir, "manifest.stale-"+oldRun+".json"), d.Mismatch.ArchivedTo)
	assert.FileExists(t, d.Mismatch.ArchivedTo)
	assert.DirExists(t, filepath.Join(dir, "shards.stale-"+oldRun))

	cur, err := ReadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "new", cur.Fingerprint)
	assert.Equal(t, types.ShardStatePending, cur.Shards[0].State)
}

func TestStoreCheckpointRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := plan([2]uint64{0, 50}, [2]uint64{50, 100})
	store, err := Create(dir, New("fp", p))
	require.NoError(t, err)

	sh, ok := store.Shard(1)
	require.True(t, ok)
	sh.State = types.ShardStateInProgress
	sh.Cursor = 80
	sh.Written = 30
	sh.Bytes = 240
	require.NoError(t, store.Checkpoint(sh))

	m, err := Read(store.Path())
	require.NoError(t, err)
	assert.Equal(t, sh, m.Shards[1])
	assert.Equal(t, []int{0, 1}, m.Incomplete())
	assert.NoFileExists(t, store.Path()+".tmp")

	moved := sh
	moved.End = 99
	assert.Error(t, store.Checkpoint(moved), "range is immutable")

	beyond := sh
	beyond.Cursor = 101
	assert.Error(t, store.Checkpoint(beyond))
}

func TestStoreConcurrentCheckpoints(t *testing.T) {
	dir := t.TempDir()
	var ranges [][2]uint64
	for i := uint64(0); i < 8; i++ {
		ranges = append(ranges, [2]uint64{i * 100, (i + 1) * 100})
	}
	store, err := Create(dir, New("fp", plan(ranges...)))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for id := 0; id < 8; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			sh, _ := store.Shard(id)
			for step := uint64(1); step <= 10; step++ {
				sh.State = types.ShardStateInProgress
				sh.Cursor = sh.Start + step*10
				if step == 10 {
					sh.State = types.ShardStateComplete
				}
				assert.NoError(t, store.Checkpoint(sh))
			}
		}(id)
	}
	wg.Wait()

	m, err := Read(store.Path())
	require.NoError(t, err)
	assert.Empty(t, m.Incomplete())
	assert.Equal(t, 8, m.Counts()[types.ShardStateComplete])
}

func TestValidateRejectsGaps(t *testing.T) {
	m := New("fp", plan([2]uint64{0, 50}, [2]uint64{60, 100}))
	assert.Error(t, m.Validate())

	m = New("fp", plan([2]uint64{0, 50}, [2]uint64{50, 100}))
	require.NoError(t, m.Validate())
	m.Shards[1].Cursor = 40
	assert.Error(t, m.Validate())
}

func TestFingerprintSeparatesParts(t *testing.T) {
	assert.NotEqual(t, Fingerprint("ab", "c"), Fingerprint("a", "bc"))
	assert.Equal(t, Fingerprint("a", "b"), Fingerprint("a", "b"))
}

func TestWatcherDeliversUpdates(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	store, err := Create(dir, New("fp", plan([2]uint64{0, 10})))
	require.NoError(t, err)

	updates := make(chan *Manifest, 16)
	w, err := NewWatcher(dir, func(m *Manifest) { updates <- m })
	require.NoError(t, err)
	w.SetDebounce(10 * time.Millisecond)
	require.NoError(t, w.Start(t.Context()))
	defer w.Stop()

	first := <-updates
	assert.Equal(t, types.ShardStatePending, first.Shards[0].State)

	sh, _ := store.Shard(0)
	sh.State = types.ShardStateComplete
	sh.Cursor = sh.End
	require.NoError(t, store.Checkpoint(sh))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case m := <-updates:
			if m.Shards[0].State == types.ShardStateComplete {
				return
			}
		case <-deadline:
			t.Fatal("watcher did not deliver the checkpoint")
		}
	}
}
