package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watch re-renders whenever the template or the data file changes. Events
// are debounced: editors write files in several steps.
func watch(ctx context.Context, cfg *config) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	// Directories, not files: editors replace files on save and the watch
	// on the old inode would go silent.
	for _, dir := range dedupe([]string{filepath.Dir(cfg.In), filepath.Dir(cfg.Data)}) {
		if err := watcher.Add(dir); err != nil {
			slog.Warn("cannot watch", "dir", dir, "err", err)
		}
	}

	inputs := map[string]bool{}
	for _, p := range []string{cfg.In, cfg.Data} {
		if abs, err := filepath.Abs(p); err == nil {
			inputs[abs] = true
		}
	}
	relevant := func(name string) bool {
		abs, err := filepath.Abs(name)
		return err == nil && inputs[abs] && !ignored(abs)
	}

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	schedule := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(cfg.Debounce, func() {
			select {
			case fire <- struct{}{}:
			default:
			}
		})
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	slog.Info("watching for changes", "in", cfg.In, "data", cfg.Data)
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || !relevant(ev.Name) {
				continue
			}
			slog.Debug("changed", "file", filepath.Base(ev.Name))
			schedule()
		case <-fire:
			if err := renderOnce(ctx, cfg); err != nil {
				slog.Error("render failed", "err", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "err", err)
		case <-ctx.Done():
			return nil
		}
	}
}

// ignored filters out editor temporaries that share a name with an input.
func ignored(name string) bool {
	low := strings.ToLower(filepath.Base(name))
	return strings.HasPrefix(low, ".~lock.") ||
		strings.HasSuffix(low, "~") ||
		strings.HasSuffix(low, ".tmp") ||
		strings.HasSuffix(low, ".swp")
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
