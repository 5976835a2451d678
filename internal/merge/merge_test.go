package merge

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permutex/internal/manifest"
	"permutex/internal/types"
)

func completedRun(t *testing.T, contents ...string) (string, *manifest.Manifest) {
	t.Helper()
	dir := t.TempDir()
	var plan []types.Shard
	var start uint64
	for i, c := range contents {
		out := filepath.Join("shards", "shard_"+string(rune('0'+i))+".txt")
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "shards"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, out), []byte(c), 0644))
		plan = append(plan, types.Shard{
			ID: i, Engine: types.EngineAtomic, Start: start, End: start + 10,
			Output: out,
		})
		start += 10
	}
	m := manifest.New("fp", plan)
	for i := range m.Shards {
		m.Shards[i].State = types.ShardStateComplete
		m.Shards[i].Cursor = m.Shards[i].End
		m.Shards[i].Written = uint64(len(splitLines(contents[i])))
		m.Shards[i].Bytes = int64(len(contents[i]))
	}
	_, err := manifest.Create(dir, m)
	require.NoError(t, err)
	return dir, m
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}

func TestMergeConcatenatesInShardOrder(t *testing.T) {
	dir, m := completedRun(t, "a\nb\n", "", "c\n")
	out := filepath.Join(dir, "out", "wordlist.txt")

	res, err := Merge(dir, m, out, Options{})
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\n", string(data))
	assert.Equal(t, uint64(3), res.Lines)
	assert.Equal(t, int64(6), res.Bytes)

	assert.NoDirExists(t, filepath.Join(dir, "shards"), "shard files removed after merge")
	assert.NoFileExists(t, manifest.Path(dir))
	assert.FileExists(t, res.ArchivedTo)
	assert.NoFileExists(t, out+".tmp")
}

func TestMergeKeepsIntermediates(t *testing.T) {
	dir, m := completedRun(t, "a\n")
	_, err := Merge(dir, m, filepath.Join(dir, "out.txt"), Options{KeepShards: true, KeepManifest: true})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, m.Shards[0].Output))
	assert.FileExists(t, manifest.Path(dir))
}

func TestMergeIncompleteRunWritesNothing(t *testing.T) {
	dir, m := completedRun(t, "a\n", "b\n")
	m.Shards[1].State = types.ShardStateInProgress
	m.Shards[1].Cursor = 15
	out := filepath.Join(dir, "out.txt")

	_, err := Merge(dir, m, out, Options{})
	require.ErrorIs(t, err, types.ErrIncompleteRun)
	var inc *types.IncompleteRunError
	require.True(t, errors.As(err, &inc))
	assert.Equal(t, []int{1}, inc.Pending)
	assert.NoFileExists(t, out)
	assert.NoFileExists(t, out+".tmp")
	assert.FileExists(t, filepath.Join(dir, m.Shards[0].Output))
}

func TestMergeVerifiesShardSizes(t *testing.T) {
	dir, m := completedRun(t, "a\n", "b\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, m.Shards[1].Output), []byte("b\nx\n"), 0644))
	out := filepath.Join(dir, "out.txt")

	_, err := Merge(dir, m, out, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shard 1")
	assert.NoFileExists(t, out)

	m.Shards[1].Bytes = 4 // right size, wrong line count
	_, err = Merge(dir, m, out, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lines")
}
