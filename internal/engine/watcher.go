package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// startWatcher reloads a read-only engine whenever another process rewrites
// the snapshot file. The parent directory is watched rather than the file
// itself so the watch survives the writer's atomic rename.
func (e *Engine) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("engine: snapshot watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(e.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("engine: watch %s: %w", filepath.Dir(e.path), err)
	}

	target := filepath.Clean(e.path)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := e.loadSnapshot(context.Background()); err != nil {
					e.logger.Warn("engine: snapshot reload failed", "path", e.path, "error", err)
					continue
				}
				e.logger.Info("engine: snapshot reloaded", "path", e.path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				e.logger.Warn("engine: snapshot watcher error", "error", err)
			}
		}
	}()

	e.closeWatcher = watcher.Close
	return nil
}
