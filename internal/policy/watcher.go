package policy

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 100 * time.Millisecond

// Watcher reloads an Engine when its policy file changes on disk. The file's
// directory is watched so editors that write-and-rename are still seen.
type Watcher struct {
	path     string
	engine   *Engine
	logger   *slog.Logger
	debounce time.Duration
	// reloaded is signalled after each reload attempt; tests only.
	reloaded chan error
}

func NewWatcher(path string, engine *Engine, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{path: path, engine: engine, logger: logger, debounce: defaultDebounce}
}

// Run watches until ctx is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create policy watcher: %w", err)
	}
	defer fw.Close()

	target, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("resolve policy path: %w", err)
	}
	if err := fw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch policy directory: %w", err)
	}
	w.logger.InfoContext(ctx, "policy watcher started", "path", target)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "policy watcher stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			name, _ := filepath.Abs(event.Name)
			if name != target || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			err := w.engine.LoadFile(ctx, target)
			if err != nil {
				w.logger.ErrorContext(ctx, "policy reload failed, keeping previous policy", "path", target, "error", err)
			} else {
				w.logger.InfoContext(ctx, "policy reloaded", "path", target)
			}
			if w.reloaded != nil {
				select {
				case w.reloaded <- err:
				default:
				}
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.ErrorContext(ctx, "policy watcher error", "error", err)
		}
	}
}
