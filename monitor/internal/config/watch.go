package config

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/fsnotify/fsnotify"
)

// Change is one applied reload.
type Change struct {
	Prev, Next *Config

	// Restart lists settings that differ but only take effect after the
	// process restarts. The rest of Next can be applied live.
	Restart []string
}

// Watch reloads path whenever it is written and calls onChange with the
// difference from the active config, starting from current. It runs until
// ctx is cancelled.
//
// A reload that fails to load or validate is logged and skipped. A reload
// identical to the active config is dropped, so editors that save in several
// writes produce one Change.
func Watch(ctx context.Context, path string, current *Config, onChange func(Change)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Atomic-save editors replace the file, which shows up as Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// The inode may have changed under an atomic save.
			_ = watcher.Add(path)

			change, ok := reload(path, current)
			if !ok {
				continue
			}
			current = change.Next
			if len(change.Restart) > 0 {
				slog.Warn("config: changes need a restart to take effect", "fields", change.Restart)
			}
			onChange(change)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

// reload loads path and diffs it against current. ok is false when the file
// is invalid or unchanged.
func reload(path string, current *Config) (Change, bool) {
	next, err := Load(path)
	if err != nil {
		slog.Error("config: reload failed, keeping previous config", "path", path, "err", err)
		return Change{}, false
	}
	if current != nil && reflect.DeepEqual(current, next) {
		slog.Debug("config: reload unchanged", "path", path)
		return Change{}, false
	}

	change := Change{Prev: current, Next: next}
	if current != nil {
		change.Restart = RestartRequired(current, next)
	}
	slog.Info("config: reloaded", "path", path)
	return change, true
}

// RestartRequired lists the settings that differ between prev and next but
// cannot be applied without restarting the process.
func RestartRequired(prev, next *Config) []string {
	var fields []string
	if prev.Ingest != next.Ingest {
		fields = append(fields, "ingest")
	}
	if prev.Window.Capacity != next.Window.Capacity {
		fields = append(fields, "window.capacity")
	}
	if prev.Window.RefreshInterval != next.Window.RefreshInterval {
		fields = append(fields, "window.refresh_interval")
	}
	if prev.Injection.Transport != next.Injection.Transport || prev.Injection.MQTT != next.Injection.MQTT {
		fields = append(fields, "injection.transport")
	}
	if prev.Server.HTTPPort != next.Server.HTTPPort || prev.Server.Auth != next.Server.Auth {
		fields = append(fields, "server")
	}
	return fields
}
