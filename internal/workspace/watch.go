package workspace

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// configWatcher hot-reloads a Coordinator's Settings from a YAML file on
// every write event, adapted from the teacher's HybridWatcher event loop
// (internal/watcher/hybrid.go) but scoped to a single file instead of a
// recursive directory tree, and with no polling fallback: a settings
// reload is an optimization, not a correctness requirement, so a failed
// fsnotify.NewWatcher simply means hot-reload stays off.
type configWatcher struct {
	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}
}

// WatchConfig starts watching path for changes and hot-reloads the
// Coordinator's Settings on every write (spec §4.9 "(added)": non-
// structural settings only, no rebuild triggered). Returns an error if the
// file can't be loaded initially; a subsequent load failure is logged and
// the previous settings are kept.
func (c *Coordinator) WatchConfig(ctx context.Context, path string) error {
	if err := c.LoadSettings(path); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("config hot-reload disabled: fsnotify unavailable", "error", err)
		return nil
	}
	if err := fsw.Add(path); err != nil {
		_ = fsw.Close()
		slog.Warn("config hot-reload disabled: cannot watch file", "path", path, "error", err)
		return nil
	}

	w := &configWatcher{fsWatcher: fsw, stopCh: make(chan struct{})}
	c.watcher = w

	go w.run(ctx, path, c)
	return nil
}

func (w *configWatcher) run(ctx context.Context, path string, c *Coordinator) {
	for {
		select {
		case <-ctx.Done():
			_ = w.stop()
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := c.LoadSettings(path); err != nil {
				slog.Warn("config hot-reload: keeping previous settings", "path", path, "error", err)
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

func (w *configWatcher) stop() error {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
	return w.fsWatcher.Close()
}
