package config

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"icmpmon/internal/telemetry/logging"
)

// WatchAdvisory watches the target registry file and the settings file for
// post-startup changes and logs a reminder to restart. It never reloads
// state: both files are read exactly once at startup (spec.md §4.1, §5),
// this is pure operator feedback. Exits when ctx is cancelled.
func WatchAdvisory(ctx context.Context, log logging.Logger, paths ...string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.WarnCtx(ctx, "config: advisory watcher unavailable", "error", err)
		return
	}
	defer watcher.Close()

	for _, p := range paths {
		if err := watcher.Add(p); err != nil {
			log.WarnCtx(ctx, "config: cannot watch file", "path", p, "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				log.WarnCtx(ctx, "config file changed on disk; restart to apply", "path", ev.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.WarnCtx(ctx, "config: watcher error", "error", err)
		}
	}
}
