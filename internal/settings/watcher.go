package settings

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounceInterval is the delay after a filesystem event before the
// cache is invalidated, letting rapid event bursts (atomic replace: write
// then rename) settle.
const watchDebounceInterval = 100 * time.Millisecond

// Watch invalidates the manager's cache whenever one of the given settings
// files changes on disk. Parent directories are watched rather than the
// files themselves: editors and atomic writers replace the inode, and
// directory watches catch the rename.
//
// Watch blocks until ctx is done.
func (m *Manager) Watch(ctx context.Context, paths []string, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	names := make(map[string]struct{}, len(paths))
	dirs := make(map[string]struct{})
	for _, p := range paths {
		names[filepath.Clean(p)] = struct{}{}
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			logger.Warn("failed to watch settings directory", "dir", dir, "error", err)
		}
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if _, watched := names[filepath.Clean(event.Name)]; !watched {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watchDebounceInterval, func() {
				logger.Debug("settings changed on disk, reloading", "path", event.Name)
				m.Invalidate()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("settings watcher error", "error", err)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
