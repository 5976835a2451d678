package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"permutex/internal/dedup"
	"permutex/internal/logging"
	"permutex/internal/manifest"
	"permutex/internal/merge"
	"permutex/internal/metrics"
	"permutex/internal/shard"
	"permutex/internal/types"
)

// Options adjusts one execution of a Plan.
type Options struct {
	NoMerge bool
	Metrics *metrics.Metrics // nil disables metrics

	// afterShard runs after each shard result is recorded.
	afterShard func(types.ShardResult)
}

// Summary reports an execution.
type Summary struct {
	RunID    string
	Decision manifest.Decision
	Results  []types.ShardResult // shards executed by this call, in ID order
	Merge    *merge.Result       // nil unless the run completed and merged

	// BudgetExhausted is set when run.budget stopped the run. The manifest
	// then holds InProgress shards and a rerun continues them.
	BudgetExhausted bool
	Elapsed         time.Duration
}

// Written is the number of candidates written by this call.
func (s *Summary) Written() uint64 {
	var n uint64
	for _, r := range s.Results {
		n += r.Written
	}
	return n
}

// Execute reconciles the plan with the work dir's manifest, runs the
// remaining shards on a pool of Profile.Workers workers and merges once every
// shard is Complete.
//
// Cancellation of ctx leaves unfinished shards InProgress and returns an
// error wrapping context.Canceled. An exhausted budget is not an error.
// Shard failures are collected and returned as *types.RunFailedError after
// every other shard has finished.
func (p *Plan) Execute(ctx context.Context, opts Options) (*Summary, error) {
	started := time.Now()
	cfg := p.Config
	workDir := cfg.Output.WorkDir
	log := logging.Get(logging.CategoryRunner)

	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}

	store, d, err := manifest.Resume(workDir, p.Shards, p.Fingerprint, string(p.Profile.Kind))
	if err != nil {
		return nil, err
	}
	sum := &Summary{RunID: d.Manifest.RunID, Decision: d}

	audit, err := logging.OpenAudit(workDir, sum.RunID)
	if err != nil {
		log.Warn("audit trail disabled: %v", err)
	}
	defer audit.Close()
	if d.Mismatch != nil {
		audit.ManifestMismatch(d.Mismatch.ArchivedTo)
	}

	if opts.Metrics != nil && cfg.Metrics.Textfile != "" {
		defer func() {
			if err := opts.Metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				log.Warn("failed to write metrics textfile: %v", err)
			}
		}()
	}
	opts.Metrics.SetPlanned(d.Manifest.Shards)

	filter, err := p.openFilter(d)
	if err != nil {
		return sum, err
	}
	if filter != nil {
		defer filter.Close()
	}

	runCtx := ctx
	if budget := cfg.GetBudget(); budget > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
		log.Info("run budget %s", budget)
	}

	workers := p.workers(workDir, store, filter, opts.Metrics)
	audit.RunStart(p.Fingerprint, len(d.Run), len(d.Skipped), p.Profile.Workers)
	log.Info("run %s: %d shards to run, %d complete, %d workers",
		d.Manifest.RunID, len(d.Run), len(d.Skipped), p.Profile.Workers)

	engines := make(map[int]types.EngineTag, len(d.Run))
	for _, sh := range d.Run {
		engines[sh.ID] = sh.Engine
	}
	after := func(r types.ShardResult) {
		audit.Shard(r.ShardID, string(engines[r.ShardID]), shardEvent(r.State), r.Generated, r.Written, r.Err)
		if opts.afterShard != nil {
			opts.afterShard(r)
		}
	}
	results := p.runShards(runCtx, d.Run, workers, after)
	sum.Results = results
	sum.Elapsed = time.Since(started)

	var failed []int
	errs := make(map[int]error)
	for _, r := range results {
		if r.State == types.ShardStateFailed {
			failed = append(failed, r.ShardID)
			errs[r.ShardID] = r.Err
		}
	}
	if len(failed) > 0 {
		log.Error("run %s: %d shard(s) failed; rerun to retry them", sum.RunID, len(failed))
		rf := &types.RunFailedError{Failed: failed, Errs: errs}
		audit.RunEnd(logging.AuditRunFailed, sum.Elapsed, sum.Written(), rf)
		return sum, rf
	}

	if err := runCtx.Err(); err != nil {
		if ctx.Err() != nil {
			log.Info("run %s interrupted; rerun to resume", sum.RunID)
			audit.RunEnd(logging.AuditRunInterrupted, sum.Elapsed, sum.Written(), nil)
			return sum, fmt.Errorf("run interrupted: %w", ctx.Err())
		}
		sum.BudgetExhausted = true
		log.Info("run %s stopped by budget after %s; rerun to resume", sum.RunID, sum.Elapsed.Round(time.Millisecond))
		audit.RunEnd(logging.AuditRunBudget, sum.Elapsed, sum.Written(), nil)
		return sum, nil
	}

	if opts.NoMerge || cfg.Run.NoMerge {
		log.Info("run %s complete; merge skipped", sum.RunID)
		audit.RunEnd(logging.AuditRunComplete, sum.Elapsed, sum.Written(), nil)
		return sum, nil
	}
	mergeStarted := time.Now()
	res, err := merge.Merge(workDir, store.Snapshot(), cfg.Output.Path, merge.Options{
		KeepShards:   cfg.Output.KeepShards,
		KeepManifest: cfg.Output.KeepManifest,
	})
	audit.Merge(cfg.Output.Path, res.Lines, time.Since(mergeStarted), err)
	if err != nil {
		return sum, err
	}
	sum.Merge = &res
	sum.Elapsed = time.Since(started)
	audit.RunEnd(logging.AuditRunComplete, sum.Elapsed, sum.Written(), nil)
	return sum, nil
}

func shardEvent(state types.ShardState) logging.AuditEventType {
	switch state {
	case types.ShardStateComplete:
		return logging.AuditShardComplete
	case types.ShardStateFailed:
		return logging.AuditShardFailed
	default:
		return logging.AuditShardPaused
	}
}

// openFilter opens the global dedup filter. A fresh plan starts from an
// empty SQLite store.
func (p *Plan) openFilter(d manifest.Decision) (dedup.Filter, error) {
	if p.DedupMode == dedup.ModeOff {
		return nil, nil
	}
	path := p.Config.DedupPath()
	if p.DedupMode == dedup.ModeSQLite && d.Fresh() {
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to reset dedup store: %w", err)
			}
		}
	}
	if p.DedupMode == dedup.ModeMemory && !d.Fresh() {
		logging.Get(logging.CategoryDedup).Warn("memory dedup does not survive restarts: candidates of earlier sessions are not filtered")
	}
	return dedup.Open(p.DedupMode, path)
}

func (p *Plan) workers(workDir string, store *manifest.Store, filter dedup.Filter, m *metrics.Metrics) map[types.EngineTag]*shard.Worker {
	out := make(map[types.EngineTag]*shard.Worker, len(p.Sources))
	for _, src := range p.Sources {
		out[src.Tag()] = &shard.Worker{
			Source:          src,
			WorkDir:         workDir,
			Store:           store,
			CheckpointEvery: p.Profile.CheckpointEvery,
			Bounds:          p.bounds[src.Tag()],
			Filter:          filter,
			Metrics:         m,
		}
	}
	return out
}

// runShards executes shards on a bounded pool. Shard outcomes never cancel
// siblings; only ctx does.
func (p *Plan) runShards(ctx context.Context, shards []types.Shard, workers map[types.EngineTag]*shard.Worker, after func(types.ShardResult)) []types.ShardResult {
	var mu sync.Mutex
	var results []types.ShardResult
	record := func(r types.ShardResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
		if after != nil {
			after(r)
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(1, p.Profile.Workers))
	for _, sh := range shards {
		if egCtx.Err() != nil {
			break
		}
		w, ok := workers[sh.Engine]
		if !ok {
			record(types.ShardResult{ShardID: sh.ID, State: types.ShardStateFailed,
				Err: &types.ShardIOError{ShardID: sh.ID, Op: "run", Err: errors.New("no source for engine " + string(sh.Engine))}})
			continue
		}
		eg.Go(func() error {
			if egCtx.Err() != nil {
				return nil
			}
			r := w.Run(egCtx, sh)
			logging.Get(logging.CategoryRunner).With(zap.Int("shard", r.ShardID)).
				Debug("shard %d %s: generated=%d written=%d", r.ShardID, r.State, r.Generated, r.Written)
			record(r)
			return nil
		})
	}
	_ = eg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].ShardID < results[j].ShardID })
	return results
}
