package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/maruel/docdb/internal/docdb"
	"golang.org/x/time/rate"
)

const (
	// debounce coalesces the burst of events produced by one atomic rename.
	debounce = 100 * time.Millisecond
	// reloadEvery bounds how often a busy writer can make us reparse the file.
	reloadEvery = 500 * time.Millisecond
)

// watch reloads db every time its primary file changes on disk, until ctx is
// done. onReload, if not nil, is called after each reload attempt.
//
// The parent directory is watched rather than the file itself since writers
// replace the file by renaming a temporary file over it.
func watch(ctx context.Context, db *docdb.Store, onReload func(error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	path := db.Path()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Watching", "path", path)

	lim := rate.NewLimiter(rate.Every(reloadEvery), 1)
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				timer.Reset(debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "Watcher error", "err", err)
		case <-timer.C:
			if err := lim.Wait(ctx); err != nil {
				return err
			}
			start := time.Now()
			err := db.Reload()
			if err != nil {
				slog.WarnContext(ctx, "Reloaded without writing back", "err", err, "entries", db.Size())
			} else {
				slog.InfoContext(ctx, "Reloaded", "entries", db.Size(), "dur", time.Since(start).Round(time.Millisecond))
			}
			if onReload != nil {
				onReload(err)
			}
		}
	}
}
