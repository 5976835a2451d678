package manifest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"permutex/internal/logging"
)

// Watcher follows a work dir's manifest and calls onChange with each new
// version. Writes are temp-then-rename, so the watch is on the directory and
// events are filtered to the manifest's name. Rapid checkpoints are debounced.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	workDir     string
	onChange    func(*Manifest)
	debounceDur time.Duration
	pendingAt   time.Time
	pending     bool
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats WatcherStats
}

// WatcherStats tracks watcher activity.
type WatcherStats struct {
	Events    int
	Reloads   int
	Errors    int
	LastEvent time.Time
}

// NewWatcher creates a watcher for workDir's manifest.
func NewWatcher(workDir string, onChange func(*Manifest)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fw,
		workDir:     workDir,
		onChange:    onChange,
		debounceDur: 150 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// SetDebounce overrides the quiet period before a reload. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounceDur = d
}

// Start begins watching. It is non-blocking; the event loop runs until Stop
// or ctx is cancelled. The current manifest, if any, is delivered first.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.workDir, 0755); err != nil {
		return err
	}
	if err := w.watcher.Add(w.workDir); err != nil {
		return err
	}
	logging.Manifest("watching %s", Path(w.workDir))

	w.reload()
	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryManifest).Error("watcher: error closing: %v", err)
	}
}

// Done is closed when the event loop exits.
func (w *Watcher) Done() <-chan struct{} { return w.doneCh }

// Stats returns a copy of the activity counters.
func (w *Watcher) Stats() WatcherStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryManifest).Error("watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.mu.Lock()
			due := w.pending && time.Since(w.pendingAt) >= w.debounceDur
			if due {
				w.pending = false
			}
			w.mu.Unlock()
			if due {
				w.reload()
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Base(event.Name) != FileName {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}
	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEvent = time.Now()
	w.pending = true
	w.pendingAt = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) reload() {
	m, err := Read(Path(w.workDir))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.ManifestDebug("watcher: reload skipped: %v", err)
		}
		return
	}
	w.mu.Lock()
	w.stats.Reloads++
	w.mu.Unlock()
	if w.onChange != nil {
		w.onChange(m)
	}
}
