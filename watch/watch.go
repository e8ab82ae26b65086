// Package watch provides the "poll a file, detect change, debounce, re-render"
// loop behind unveil's follow mode. Every consumer gets the same intervals,
// debounce windows and counters.
//
// Typical usage:
//
//	w := watch.New("lesson/main.rs", watch.Options{Interval: 200*time.Millisecond, Debounce: 300*time.Millisecond})
//	go w.OnChange(ctx, func() error { _, err := pipe.RenderAndDiff(ctx, path); return err })
package watch

import (
	"context"
	"errors"
	"hash/fnv"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// ChangeDetector reads a version token for the file at path. Two calls that
// return different values mean "something changed". A missing file is a
// valid state and reports 0.
type ChangeDetector func(ctx context.Context, path string) (int64, error)

// Options tunes the watcher behaviour.
type Options struct {
	// Interval is the polling frequency. Default: 500ms.
	Interval time.Duration
	// Debounce is the quiet period after a change is detected before the
	// action fires. If more changes arrive during the window the timer
	// resets. 0 means fire immediately. Default: 0.
	Debounce time.Duration
	// Detector overrides the default ModTime detector.
	Detector ChangeDetector
	// FireOnStart runs the action once before the first tick, so the
	// initial contents are revealed without waiting for an edit.
	FireOnStart bool
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = 500 * time.Millisecond
	}
	if o.Detector == nil {
		o.Detector = ModTime
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls one file and runs an action when it changes. It is safe for
// concurrent use.
type Watcher struct {
	path string
	opts Options

	version atomic.Int64

	// reloadMu + reloadCond broadcast after each successful action,
	// enabling WaitForReloads.
	reloadMu   sync.Mutex
	reloadCond *sync.Cond

	checks   atomic.Int64
	changes  atomic.Int64
	errors   atomic.Int64
	reloads  atomic.Int64
	reloadNs atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks          int64         `json:"checks"`
	ChangesDetected int64         `json:"changes_detected"`
	Errors          int64         `json:"errors"`
	Reloads         int64         `json:"reloads"`
	AvgReloadTime   time.Duration `json:"avg_reload_time"`
}

// New creates a Watcher for path. Call OnChange to start the loop.
func New(path string, opts Options) *Watcher {
	opts.defaults()
	w := &Watcher{path: path, opts: opts}
	w.reloadCond = sync.NewCond(&w.reloadMu)
	return w
}

// Path returns the watched file.
func (w *Watcher) Path() string { return w.path }

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	s := Stats{
		Checks:          w.checks.Load(),
		ChangesDetected: w.changes.Load(),
		Errors:          w.errors.Load(),
		Reloads:         w.reloads.Load(),
	}
	if s.Reloads > 0 {
		s.AvgReloadTime = time.Duration(w.reloadNs.Load() / s.Reloads)
	}
	return s
}

// Version returns the last successfully processed version token.
func (w *Watcher) Version() int64 { return w.version.Load() }

// OnChange blocks until ctx is cancelled, polling at opts.Interval.
// When the detector reports a new token and the debounce window passes
// without further changes, action is called.
//
// If action returns an error the version is NOT advanced, so the action is
// retried on the next poll cycle.
func (w *Watcher) OnChange(ctx context.Context, action func() error) {
	log := w.opts.Logger.With("path", w.path)

	v, err := w.opts.Detector(ctx, w.path)
	if err != nil {
		log.Warn("watch: initial version check failed", "error", err)
	} else if w.opts.FireOnStart {
		w.fire(log, action, v)
	} else {
		w.version.Store(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	var pending int64
	hasPending := false

	log.Info("watch: started", "interval", w.opts.Interval, "debounce", w.opts.Debounce)

	for {
		select {
		case <-ctx.Done():
			log.Info("watch: stopped")
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.opts.Detector(ctx, w.path)
			if err != nil {
				w.errors.Add(1)
				log.Warn("watch: version check failed", "error", err)
				continue
			}
			if cur == w.version.Load() || (hasPending && cur == pending) {
				continue
			}
			w.changes.Add(1)
			pending, hasPending = cur, true

			if w.opts.Debounce <= 0 {
				w.fire(log, action, pending)
				hasPending = false
				continue
			}
			// Restart the window only when the pending token moved.
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(w.opts.Debounce)
			debounceCh = debounceTimer.C
			log.Debug("watch: change detected, debouncing", "pending_version", cur)

		case <-debounceCh:
			debounceCh = nil
			if hasPending {
				w.fire(log, action, pending)
				hasPending = false
			}
		}
	}
}

// WaitForReloads blocks until at least n actions have completed
// successfully, or ctx expires.
func (w *Watcher) WaitForReloads(ctx context.Context, n int64) error {
	if w.reloads.Load() >= n {
		return nil
	}

	done := ctx.Done()
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	for w.reloads.Load() < n {
		ch := make(chan struct{})
		go func() {
			select {
			case <-done:
				w.reloadMu.Lock()
				w.reloadCond.Broadcast()
				w.reloadMu.Unlock()
			case <-ch:
			}
		}()

		w.reloadCond.Wait()
		close(ch)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (w *Watcher) fire(log *slog.Logger, action func() error, ver int64) {
	log.Info("watch: reloading", "old_version", w.version.Load(), "new_version", ver)
	start := time.Now()
	if err := action(); err != nil {
		w.errors.Add(1)
		log.Error("watch: reload failed", "error", err, "version", ver)
		return
	}
	elapsed := time.Since(start)
	w.reloadNs.Add(int64(elapsed))
	w.version.Store(ver)

	w.reloadMu.Lock()
	w.reloads.Add(1)
	w.reloadCond.Broadcast()
	w.reloadMu.Unlock()
	log.Info("watch: reload complete", "version", ver, "duration", elapsed)
}

// ---------- Built-in detectors ----------

// ModTime combines the file's modification time and size. Cheap, but
// misses same-size rewrites within the filesystem's timestamp resolution.
func ModTime(_ context.Context, path string) (int64, error) {
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return fi.ModTime().UnixNano() ^ fi.Size(), nil
}

// ContentHash hashes the whole file with FNV-1a.
func ContentHash(_ context.Context, path string) (int64, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	h := fnv.New64a()
	h.Write(data)
	return int64(h.Sum64()), nil
}
