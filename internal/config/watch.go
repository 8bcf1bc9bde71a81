package config

import (
	"github.com/fsnotify/fsnotify"

	"muster/pkg/logging"
)

const watchSubsystem = "ConfigWatch"

// WatchFile watches path for writes/creates/renames (the pattern editors
// and kubectl-style config-map updates use) and invokes onChange after
// each one. It runs until stop is closed. Errors from the watcher itself
// are logged, not returned, since a broken watch should not take down the
// process that depends on its config having already loaded once.
func WatchFile(path string, stop <-chan struct{}, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stop:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					logging.Info(watchSubsystem, "config file changed: %s", event.Name)
					onChange()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn(watchSubsystem, "config watch error: %v", err)
			}
		}
	}()

	return nil
}
