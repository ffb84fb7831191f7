package blobstore

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// EventCallback is called when an entry appears or disappears on disk.
// kind is one of "created", "deleted".
type EventCallback func(kind string, id string)

// Watch starts an fsnotify watcher on the FS store root and reports committed
// entries that appear or disappear until ctx is cancelled. Changes made by the
// service itself are reported too; consumers treat the events as hints.
func Watch(ctx context.Context, store *FS, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(store.Root()); err != nil {
		return err
	}

	logger.Info("blob watcher: started", slog.String("root", store.Root()))

	for {
		select {
		case <-ctx.Done():
			logger.Info("blob watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			id, ok := store.IDFromPath(ev.Name)
			if !ok {
				continue
			}

			var kind string
			switch {
			case ev.Op&fsnotify.Create != 0:
				kind = "created"
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				kind = "deleted"
			default:
				continue
			}
			logger.Debug("blob watcher: event", slog.String("id", id), slog.String("op", kind))
			if cb != nil {
				cb(kind, id)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("blob watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
