package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/zebra-rs/zebra-rs/internal/bus"
)

// Watcher reloads a running-configuration file on write and republishes
// the diff against the prior generation onto bus.Config, standing in for
// the excluded commit/rollback machinery (SPEC_FULL.md §6).
type Watcher struct {
	path string
	b    *bus.Bus
	log  *zap.SugaredLogger

	current *Config
}

func NewWatcher(path string, b *bus.Bus, log *zap.SugaredLogger) *Watcher {
	return &Watcher{path: path, b: b, log: log}
}

// Run loads the initial configuration, emits its full delta set, then
// watches the file (and its containing directory, so an editor's
// rename-over-write still triggers fsnotify.Write) until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.reload(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.reload(); err != nil {
				w.log.Warnw("config reload failed, keeping previous generation", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warnw("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() error {
	next, err := Load(w.path)
	if err != nil {
		return err
	}
	deltas := Diff(w.current, next)
	w.current = next
	for _, d := range deltas {
		w.b.Config.Send("config", d)
	}
	w.log.Infow("configuration (re)loaded", "path", w.path, "deltas", len(deltas))
	return nil
}

// Current returns the last successfully loaded generation, or nil before
// the first load.
func (w *Watcher) Current() *Config { return w.current }
