package shard

import (
	"fmt"
	"strings"

	"permutex/internal/types"
)

// =============================================================================
// PERFORMANCE PROFILES
// =============================================================================
//
// A profile decides three things: how many workers pull shards, how many
// shards each engine's index space is cut into, and how many indexes a worker
// produces between checkpoints. More shards than workers gives the pool
// something to rebalance with when shards finish unevenly.

// ProfileKind enumerates the supported profiles.
type ProfileKind string

const (
	ProfileMax        ProfileKind = "max"
	ProfileBalanced   ProfileKind = "balanced"
	ProfilePowerSaver ProfileKind = "power_saver"
	ProfileCustom     ProfileKind = "custom"
)

// ParseProfileKind accepts the canonical names plus common spellings
// ("powersaver", "power-saver").
func ParseProfileKind(s string) (ProfileKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "balanced":
		return ProfileBalanced, nil
	case "max", "maximum":
		return ProfileMax, nil
	case "power_saver", "powersaver", "power-saver":
		return ProfilePowerSaver, nil
	case "custom", "manual":
		return ProfileCustom, nil
	default:
		return "", types.NewConfigurationError("profile.kind", "unknown profile %q", s)
	}
}

// Profile is a PerformanceProfile. Zero-valued fields take the kind's
// defaults in Resolve.
type Profile struct {
	Kind            ProfileKind
	Workers         int    // worker pool size
	ShardSize       uint64 // Custom only: target indexes per shard
	CheckpointEvery int    // K: indexes between checkpoints
	Multiplier      int    // shards per worker
}

type profileDefaults struct {
	divisor    int // workers = cpus / divisor
	multiplier int
	checkpoint int
}

var defaultsByKind = map[ProfileKind]profileDefaults{
	ProfileMax:        {divisor: 1, multiplier: 4, checkpoint: 5000},
	ProfileBalanced:   {divisor: 2, multiplier: 2, checkpoint: 2000},
	ProfilePowerSaver: {divisor: 4, multiplier: 1, checkpoint: 1000},
	ProfileCustom:     {divisor: 1, multiplier: 1, checkpoint: 2000},
}

// Resolve fills defaults for cpus logical cores and validates the result.
func (p Profile) Resolve(cpus int) (Profile, error) {
	if p.Kind == "" {
		p.Kind = ProfileBalanced
	}
	d, ok := defaultsByKind[p.Kind]
	if !ok {
		return p, types.NewConfigurationError("profile.kind", "unknown profile %q", p.Kind)
	}
	if p.Workers < 0 {
		return p, types.NewConfigurationError("profile.workers", "must be >= 0, got %d", p.Workers)
	}
	if p.CheckpointEvery < 0 {
		return p, types.NewConfigurationError("profile.checkpoint_every", "must be >= 0, got %d", p.CheckpointEvery)
	}
	if p.Kind == ProfileCustom && p.Workers == 0 {
		return p, types.NewConfigurationError("profile.workers", "custom profile requires an explicit worker count")
	}
	if cpus < 1 {
		cpus = 1
	}
	if p.Workers == 0 {
		p.Workers = max(1, cpus/d.divisor)
	}
	if p.Multiplier <= 0 {
		p.Multiplier = d.multiplier
	}
	if p.CheckpointEvery == 0 {
		p.CheckpointEvery = d.checkpoint
	}
	return p, nil
}

// ShardCount returns the number of shards for an index space of total. It
// never exceeds total, and is at least one for a non-empty space.
func (p Profile) ShardCount(total uint64) uint64 {
	if total == 0 {
		return 0
	}
	var n uint64
	if p.Kind == ProfileCustom && p.ShardSize > 0 {
		n = (total + p.ShardSize - 1) / p.ShardSize
	} else {
		n = uint64(max(1, p.Workers) * max(1, p.Multiplier))
	}
	return min(max(n, 1), total)
}

func (p Profile) String() string {
	return fmt.Sprintf("%s(workers=%d, x%d, k=%d)", p.Kind, p.Workers, p.Multiplier, p.CheckpointEvery)
}
