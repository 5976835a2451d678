// Package runner wires a configuration into candidate sources, a shard plan,
// the manifest and a bounded worker pool, and merges the result.
package runner

import (
	"fmt"
	"math"
	"math/bits"
	"runtime"

	"permutex/internal/config"
	"permutex/internal/dedup"
	"permutex/internal/logging"
	"permutex/internal/manifest"
	"permutex/internal/shard"
	"permutex/internal/source"
	"permutex/internal/types"
)

// Plan is a validated run that has not executed yet. Building one performs
// no I/O.
type Plan struct {
	Config      *config.Config
	Profile     shard.Profile
	Sources     []source.Source // mutation first, then atomic
	Shards      []types.Shard
	Fingerprint string
	DedupMode   dedup.Mode

	bounds map[types.EngineTag]shard.Bounds
}

// Build validates cfg and computes the candidate spaces and the shard plan for
// cpus logical cores (runtime.NumCPU when cpus < 1).
func Build(cfg *config.Config, cpus int) (*Plan, error) {
	if cpus < 1 {
		cpus = runtime.NumCPU()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	profile, err := cfg.ResolveProfile(cpus)
	if err != nil {
		return nil, err
	}
	mode, err := cfg.DedupMode()
	if err != nil {
		return nil, err
	}

	p := &Plan{
		Config:    cfg,
		Profile:   profile,
		DedupMode: mode,
		bounds:    make(map[types.EngineTag]shard.Bounds),
	}

	ts := cfg.TokenSet()
	if len(ts) > 0 {
		opts, err := cfg.MutationOptions(ts)
		if err != nil {
			return nil, err
		}
		src, err := source.NewMutation(opts)
		if err != nil {
			return nil, err
		}
		p.Sources = append(p.Sources, src)
		p.bounds[types.EngineMutation] = shard.Bounds{Min: cfg.Mutation.MinLength, Max: cfg.Mutation.MaxLength}
	}
	if cfg.Atomic.Enabled {
		spec, err := cfg.AlphabetSpec(ts)
		if err != nil {
			return nil, err
		}
		src, err := source.NewAtomic(spec)
		if err != nil {
			return nil, err
		}
		p.Sources = append(p.Sources, src)
	}

	spaces := make([]shard.Space, 0, len(p.Sources))
	parts := make([]string, 0, len(p.Sources)+2)
	for _, src := range p.Sources {
		spaces = append(spaces, shard.Space{Engine: src.Tag(), Total: src.Total()})
		parts = append(parts, src.Fingerprint())
	}
	b := p.bounds[types.EngineMutation]
	parts = append(parts, fmt.Sprintf("bounds=%d-%d", b.Min, b.Max), "dedup="+string(mode))

	p.Fingerprint = manifest.Fingerprint(parts...)
	p.Shards = shard.PlanRun(spaces, profile)
	logging.RunnerDebug("plan %s: %d sources, %d shards, profile %s", p.Fingerprint[:12], len(p.Sources), len(p.Shards), profile)
	return p, nil
}

// Source returns the source for engine, or nil.
func (p *Plan) Source(engine types.EngineTag) source.Source {
	for _, src := range p.Sources {
		if src.Tag() == engine {
			return src
		}
	}
	return nil
}

// Total is the number of indexes across all sources, saturating at
// math.MaxUint64.
func (p *Plan) Total() uint64 {
	var n uint64
	for _, src := range p.Sources {
		sum, carry := bits.Add64(n, src.Total(), 0)
		if carry != 0 {
			return math.MaxUint64
		}
		n = sum
	}
	return n
}

// Estimate sizes every source; samples bounds the work for large mutation
// spaces.
func (p *Plan) Estimate(samples int) ([]source.Estimate, error) {
	out := make([]source.Estimate, 0, len(p.Sources))
	for _, src := range p.Sources {
		est, err := source.EstimateSource(src, samples)
		if err != nil {
			return nil, fmt.Errorf("estimate %s: %w", src.Tag(), err)
		}
		out = append(out, est)
	}
	return out, nil
}
