// Package shard cuts candidate index spaces into contiguous shards and runs
// one shard at a time to a shard-local file with durable checkpoints.
package shard

import (
	"fmt"
	"path/filepath"

	"permutex/internal/logging"
	"permutex/internal/types"
)

// ShardDir is the work-dir-relative directory of shard files.
const ShardDir = "shards"

// OutputPath returns the work-dir-relative file of shard id.
func OutputPath(id int) string {
	return filepath.Join(ShardDir, fmt.Sprintf("shard_%05d.txt", id))
}

// Range is a half-open index range.
type Range struct {
	Start, End uint64
}

// Plan splits [0, total) into contiguous, non-overlapping ranges sized by the
// profile. Sizes differ by at most one; the first total%n ranges take the
// extra index.
func Plan(total uint64, p Profile) []Range {
	n := p.ShardCount(total)
	if n == 0 {
		return nil
	}
	size, extra := total/n, total%n
	out := make([]Range, 0, n)
	var start uint64
	for k := uint64(0); k < n; k++ {
		end := start + size
		if k < extra {
			end++
		}
		out = append(out, Range{Start: start, End: end})
		start = end
	}
	return out
}

// Space is one engine's index space to plan.
type Space struct {
	Engine types.EngineTag
	Total  uint64
}

// PlanRun plans every space in order and assigns dense shard IDs across the
// run, so shard_id order is engine order then index order.
func PlanRun(spaces []Space, p Profile) []types.Shard {
	var shards []types.Shard
	for _, sp := range spaces {
		ranges := Plan(sp.Total, p)
		for _, r := range ranges {
			id := len(shards)
			shards = append(shards, types.Shard{
				ID:     id,
				Engine: sp.Engine,
				Start:  r.Start,
				End:    r.End,
				State:  types.ShardStatePending,
				Cursor: r.Start,
				Output: OutputPath(id),
			})
		}
		logging.PlannerDebug("%s: %d indexes in %d shards (%s)", sp.Engine, sp.Total, len(ranges), p)
	}
	logging.Planner("planned %d shards over %d engine(s)", len(shards), len(spaces))
	return shards
}
