package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDebounce is how long the watcher waits for writes to settle.
const DefaultReloadDebounce = 500 * time.Millisecond

// Watcher reloads the project file when it changes. The parent directory
// is watched so that editors which replace the file are handled.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	onReload func(*ProjectFile)
	onError  func(error)
}

// NewWatcher creates a watcher for the project file at path. onReload
// receives every successfully parsed version; onError receives load
// failures (the previous configuration stays in effect).
func NewWatcher(path string, logger *slog.Logger, onReload func(*ProjectFile), onError func(error)) *Watcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: DefaultReloadDebounce,
		logger:   logger,
		onReload: onReload,
		onError:  onError,
	}
}

// SetDebounce overrides the debounce interval.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start begins watching. It returns once the watch is established and
// stops when ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return err
	}
	w.logger.Info("config_watcher_started", "path", w.path, "debounce", w.debounce.String())
	go w.watch(ctx, fsw)
	return nil
}

func (w *Watcher) watch(ctx context.Context, fsw *fsnotify.Watcher) {
	defer fsw.Close()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Debug("config_watcher_stopped")
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.logger.Debug("config_change_detected", "op", ev.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.reload()

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config_watcher_error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	pf, err := LoadProjectFile(w.path)
	if err != nil {
		w.logger.Warn("config_reload_failed", "path", w.path, "error", err)
		w.onError(err)
		return
	}
	w.logger.Info("config_reloaded", "path", w.path, "custom_processes", len(pf.Custom))
	w.onReload(pf)
}
