// Package merge concatenates a completed run's shard files, in shard ID
// order, into the final artifact.
package merge

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"permutex/internal/logging"
	"permutex/internal/manifest"
	"permutex/internal/types"
)

// Options controls cleanup after a verified merge.
type Options struct {
	KeepShards   bool // leave shard files in place
	KeepManifest bool // leave manifest.json in place instead of archiving it
}

// Result summarizes a merge.
type Result struct {
	Output     string
	Shards     int
	Lines      uint64
	Bytes      int64
	ArchivedTo string
}

// Merge verifies that every shard of m is Complete and that each shard file
// matches its recorded byte and line counts, then writes the concatenation to
// output via output.tmp and a rename. Nothing is written if any shard is not
// Complete (IncompleteRunError) or fails verification.
func Merge(workDir string, m *manifest.Manifest, output string, opts Options) (Result, error) {
	res := Result{Output: output, Shards: len(m.Shards)}
	if pending := m.Incomplete(); len(pending) > 0 {
		return res, &types.IncompleteRunError{Pending: pending}
	}

	for _, sh := range m.Shards {
		if err := verify(workDir, sh); err != nil {
			return res, err
		}
	}

	if dir := filepath.Dir(output); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return res, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	tmpPath := output + ".tmp"
	out, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return res, fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}
	w := bufio.NewWriterSize(out, 256*1024)

	for _, sh := range m.Shards {
		n, err := appendShard(w, workDir, sh)
		if err != nil {
			out.Close()
			os.Remove(tmpPath)
			return res, err
		}
		res.Bytes += n
		res.Lines += sh.Written
	}
	if err := w.Flush(); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return res, fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return res, fmt.Errorf("failed to sync %s: %w", tmpPath, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return res, fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, output); err != nil {
		os.Remove(tmpPath)
		return res, fmt.Errorf("failed to rename temp file: %w", err)
	}
	logging.Merge("merged %d shards into %s (%d lines, %d bytes)", res.Shards, output, res.Lines, res.Bytes)

	if !opts.KeepShards {
		removeShards(workDir, m)
	}
	if !opts.KeepManifest {
		archived, err := manifest.ArchiveMerged(workDir, m.RunID)
		if err != nil {
			return res, err
		}
		res.ArchivedTo = archived
	}
	return res, nil
}

// verify checks the shard file against the manifest's byte and line counts.
func verify(workDir string, sh types.Shard) error {
	path := filepath.Join(workDir, sh.Output)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("shard %d: %w", sh.ID, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("shard %d: %w", sh.ID, err)
	}
	if info.Size() != sh.Bytes {
		return fmt.Errorf("shard %d: %s has %d bytes, manifest recorded %d", sh.ID, path, info.Size(), sh.Bytes)
	}

	lines, err := countLines(f)
	if err != nil {
		return fmt.Errorf("shard %d: %w", sh.ID, err)
	}
	if lines != sh.Written {
		return fmt.Errorf("shard %d: %s has %d lines, manifest recorded %d", sh.ID, path, lines, sh.Written)
	}
	return nil
}

func countLines(r io.Reader) (uint64, error) {
	buf := make([]byte, 64*1024)
	var n uint64
	for {
		k, err := r.Read(buf)
		n += uint64(bytes.Count(buf[:k], []byte{'\n'}))
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
	}
}

func appendShard(w io.Writer, workDir string, sh types.Shard) (int64, error) {
	f, err := os.Open(filepath.Join(workDir, sh.Output))
	if err != nil {
		return 0, fmt.Errorf("shard %d: %w", sh.ID, err)
	}
	defer f.Close()
	n, err := io.Copy(w, f)
	if err != nil {
		return n, fmt.Errorf("shard %d: copy: %w", sh.ID, err)
	}
	return n, nil
}

func removeShards(workDir string, m *manifest.Manifest) {
	log := logging.Get(logging.CategoryMerge)
	for _, sh := range m.Shards {
		if err := os.Remove(filepath.Join(workDir, sh.Output)); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove shard %d file: %v", sh.ID, err)
		}
	}
	// only removes the directory once it is empty
	dirs := map[string]struct{}{}
	for _, sh := range m.Shards {
		dirs[filepath.Dir(filepath.Join(workDir, sh.Output))] = struct{}{}
	}
	for d := range dirs {
		os.Remove(d)
	}
}
