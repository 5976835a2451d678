package shard

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"permutex/internal/dedup"
	"permutex/internal/logging"
	"permutex/internal/metrics"
	"permutex/internal/source"
	"permutex/internal/types"
)

// Checkpointer persists one shard's entry. The manifest store implements it.
type Checkpointer interface {
	Checkpoint(types.Shard) error
}

// Bounds is the post-generation length filter, in runes. Zero disables a side.
type Bounds struct {
	Min, Max int
}

func (b Bounds) admit(s string) bool {
	if b.Min == 0 && b.Max == 0 {
		return true
	}
	n := utf8.RuneCountInString(s)
	return n >= b.Min && (b.Max == 0 || n <= b.Max)
}

// DefaultCheckpointEvery is K when a worker is built without a profile.
const DefaultCheckpointEvery = 1000

const writeBufferSize = 64 * 1024

// Worker executes shards of one source. A Worker holds no per-shard state and
// may run several shards concurrently.
type Worker struct {
	Source          source.Source
	WorkDir         string
	Store           Checkpointer
	CheckpointEvery int
	Bounds          Bounds
	Filter          dedup.Filter     // nil disables global dedup
	Metrics         *metrics.Metrics // nil disables metrics
}

// errCancelled is internal: the loop stopped on ctx at an index boundary.
var errCancelled = errors.New("shard cancelled")

// execution is the mutable state of one Run call.
type execution struct {
	w      *Worker
	sh     types.Shard // last persisted entry
	file   *os.File
	buf    *bufio.Writer
	cursor uint64
	lines  uint64
	bytes  int64
	res    types.ShardResult
}

// Run executes sh from its checkpoint to its end. It never returns an error:
// the outcome is in the result's State and Err.
//
//   - Complete shards are returned untouched.
//   - The shard file is truncated to the checkpointed byte count, so output
//     flushed after the last checkpoint is discarded and re-derived.
//   - Every CheckpointEvery indexes the buffer is flushed and the cursor,
//     line count and byte count are persisted, in that order.
//   - ctx is checked before every index; on cancellation the shard is
//     flushed, checkpointed and left InProgress.
//   - Write or checkpoint failures leave the shard Failed at its last good
//     checkpoint.
func (w *Worker) Run(ctx context.Context, sh types.Shard) types.ShardResult {
	res := types.ShardResult{ShardID: sh.ID, State: sh.State}
	if sh.State == types.ShardStateComplete {
		return res
	}
	started := time.Now()
	log := logging.Get(logging.CategoryWorker).With(zap.Int("shard", sh.ID), zap.String("engine", string(sh.Engine)))

	ex, err := w.open(ctx, sh)
	if err != nil {
		return w.fail(log, sh, res, err, started)
	}
	defer ex.file.Close()

	if ex.cursor > sh.Start {
		log.Info("resuming shard %d at index %d (%d/%d done)", sh.ID, ex.cursor, ex.cursor-sh.Start, sh.Len())
	} else {
		log.Debug("starting shard %d [%d,%d)", sh.ID, sh.Start, sh.End)
	}

	err = ex.loop(ctx)
	res = ex.res
	switch {
	case errors.Is(err, errCancelled):
		res.State = types.ShardStateInProgress
		log.Info("shard %d interrupted at index %d", sh.ID, ex.sh.Cursor)
		w.Metrics.ObserveShard(sh.Engine, res.State, started)
		return res
	case err != nil:
		return w.fail(log, ex.sh, res, err, started)
	}

	if err := ex.finish(); err != nil {
		return w.fail(log, ex.sh, res, err, started)
	}
	res.State = types.ShardStateComplete
	log.Debug("shard %d complete: %d lines, %d bytes", sh.ID, ex.sh.Written, ex.sh.Bytes)
	w.Metrics.ObserveShard(sh.Engine, res.State, started)
	return res
}

// open prepares the shard file and the starting cursor.
func (w *Worker) open(ctx context.Context, sh types.Shard) (*execution, error) {
	if sh.State == types.ShardStatePending || sh.Cursor < sh.Start || sh.Cursor > sh.End {
		sh = sh.Reset()
	}

	path := filepath.Join(w.WorkDir, sh.Output)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &types.ShardIOError{ShardID: sh.ID, Op: "mkdir", Err: err}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, &types.ShardIOError{ShardID: sh.ID, Op: "open", Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &types.ShardIOError{ShardID: sh.ID, Op: "stat", Err: err}
	}
	if info.Size() < sh.Bytes {
		// output before the checkpoint is gone; the range is redone
		logging.Get(logging.CategoryWorker).Warn("shard %d: file has %d bytes, checkpoint recorded %d; restarting shard", sh.ID, info.Size(), sh.Bytes)
		sh = sh.Reset()
	}
	if err := f.Truncate(sh.Bytes); err != nil {
		f.Close()
		return nil, &types.ShardIOError{ShardID: sh.ID, Op: "truncate", Err: err}
	}
	if _, err := f.Seek(sh.Bytes, 0); err != nil {
		f.Close()
		return nil, &types.ShardIOError{ShardID: sh.ID, Op: "seek", Err: err}
	}
	if w.Filter != nil {
		if err := w.Filter.Rewind(context.WithoutCancel(ctx), sh.ID, sh.Cursor); err != nil {
			f.Close()
			return nil, &types.ShardIOError{ShardID: sh.ID, Op: "dedup rewind", Err: err}
		}
	}

	ex := &execution{
		w:      w,
		sh:     sh,
		file:   f,
		buf:    bufio.NewWriterSize(f, writeBufferSize),
		cursor: sh.Cursor,
		lines:  sh.Written,
		bytes:  sh.Bytes,
		res:    types.ShardResult{ShardID: sh.ID},
	}
	if err := ex.checkpoint(types.ShardStateInProgress); err != nil {
		f.Close()
		return nil, err
	}
	return ex, nil
}

func (ex *execution) loop(ctx context.Context) error {
	w := ex.w
	every := uint64(w.CheckpointEvery)
	if every == 0 {
		every = DefaultCheckpointEvery
	}

	// A stop request lands between index groups, so a group already begun
	// must still reach the filter.
	filterCtx := context.WithoutCancel(ctx)

	var sinceCheckpoint uint64
	var filtered, deduped, written uint64
	defer func() {
		ex.res.Filtered += filtered
		ex.res.Deduped += deduped
		ex.res.Written += written
		w.Metrics.ObserveDropped(ex.sh.Engine, "length", filtered)
		w.Metrics.ObserveDropped(ex.sh.Engine, "duplicate", deduped)
		w.Metrics.ObserveWritten(ex.sh.Engine, written)
	}()

	for i := ex.cursor; i < ex.sh.End; i++ {
		if ctx.Err() != nil {
			if err := ex.checkpoint(types.ShardStateInProgress); err != nil {
				return err
			}
			return errCancelled
		}

		err := w.Source.Emit(i, func(s string) error {
			ex.res.Generated++
			if !w.Bounds.admit(s) {
				filtered++
				return nil
			}
			if w.Filter != nil {
				ok, err := w.Filter.Admit(filterCtx, ex.sh.ID, i, s)
				if err != nil {
					return &types.ShardIOError{ShardID: ex.sh.ID, Op: "dedup", Err: err}
				}
				if !ok {
					deduped++
					return nil
				}
			}
			n, err := ex.buf.WriteString(s)
			if err == nil {
				err = ex.buf.WriteByte('\n')
				n++
			}
			if err != nil {
				return &types.ShardIOError{ShardID: ex.sh.ID, Op: "write", Err: err}
			}
			ex.bytes += int64(n)
			ex.lines++
			written++
			return nil
		})
		if err != nil {
			return err
		}
		ex.cursor = i + 1

		sinceCheckpoint++
		if sinceCheckpoint >= every && ex.cursor < ex.sh.End {
			if err := ex.checkpoint(types.ShardStateInProgress); err != nil {
				return err
			}
			sinceCheckpoint = 0
		}
	}
	return nil
}

// checkpoint flushes buffered output and then persists the cursor. The order
// makes the persisted byte count a lower bound of what is on disk.
func (ex *execution) checkpoint(state types.ShardState) error {
	if err := ex.buf.Flush(); err != nil {
		return &types.ShardIOError{ShardID: ex.sh.ID, Op: "flush", Err: err}
	}
	next := ex.sh
	next.State = state
	next.Cursor = ex.cursor
	next.Written = ex.lines
	next.Bytes = ex.bytes
	next.Error = ""
	if err := ex.w.Store.Checkpoint(next); err != nil {
		return &types.ShardIOError{ShardID: ex.sh.ID, Op: "checkpoint", Err: err}
	}
	ex.sh = next
	ex.w.Metrics.IncCheckpoint()
	return nil
}

func (ex *execution) finish() error {
	if err := ex.buf.Flush(); err != nil {
		return &types.ShardIOError{ShardID: ex.sh.ID, Op: "flush", Err: err}
	}
	if err := ex.file.Sync(); err != nil {
		return &types.ShardIOError{ShardID: ex.sh.ID, Op: "sync", Err: err}
	}
	return ex.checkpoint(types.ShardStateComplete)
}

// fail records sh (the last good checkpoint) as Failed. A failure to record
// it is logged; the manifest then still holds the earlier InProgress entry,
// which resumes identically.
func (w *Worker) fail(log *logging.Logger, sh types.Shard, res types.ShardResult, err error, started time.Time) types.ShardResult {
	var ioErr *types.ShardIOError
	if !errors.As(err, &ioErr) {
		err = &types.ShardIOError{ShardID: sh.ID, Op: "run", Err: err}
	}
	res.State = types.ShardStateFailed
	res.Err = err

	failed := sh
	failed.State = types.ShardStateFailed
	failed.Error = err.Error()
	if cerr := w.Store.Checkpoint(failed); cerr != nil {
		log.Error("shard %d: could not record failure: %v", sh.ID, cerr)
	}
	log.Failure("shard_failed", fmt.Sprintf("shard %d failed", sh.ID), err)
	w.Metrics.ObserveShard(sh.Engine, res.State, started)
	return res
}
