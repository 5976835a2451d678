package config

import (
	"path/filepath"

	"permutex/internal/dedup"
	"permutex/internal/shard"
)

// ProfileConfig selects a PerformanceProfile. Zero values take the kind's
// defaults.
type ProfileConfig struct {
	Kind            string `yaml:"kind"`    // max, balanced, power_saver, custom
	Workers         int    `yaml:"workers"` // required for custom
	ShardSize       uint64 `yaml:"shard_size"`
	CheckpointEvery int    `yaml:"checkpoint_every"`
}

// DedupConfig configures cross-shard deduplication.
type DedupConfig struct {
	Mode string `yaml:"mode"` // off, memory, sqlite
	Path string `yaml:"path"` // sqlite database; defaults to <work_dir>/dedup.db
}

// DedupFileName is the SQLite filter's file inside the work dir.
const DedupFileName = "dedup.db"

// ResolveProfile resolves the profile for cpus logical cores.
func (c *Config) ResolveProfile(cpus int) (shard.Profile, error) {
	kind, err := shard.ParseProfileKind(c.Profile.Kind)
	if err != nil {
		return shard.Profile{}, err
	}
	return shard.Profile{
		Kind:            kind,
		Workers:         c.Profile.Workers,
		ShardSize:       c.Profile.ShardSize,
		CheckpointEvery: c.Profile.CheckpointEvery,
	}.Resolve(cpus)
}

// DedupMode parses the dedup mode.
func (c *Config) DedupMode() (dedup.Mode, error) {
	return dedup.ParseMode(c.Dedup.Mode)
}

// DedupPath returns the SQLite filter location.
func (c *Config) DedupPath() string {
	if c.Dedup.Path != "" {
		return c.Dedup.Path
	}
	return filepath.Join(c.Output.WorkDir, DedupFileName)
}
