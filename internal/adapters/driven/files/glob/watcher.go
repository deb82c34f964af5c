package glob

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
	"github.com/custodia-labs/imgsearch/internal/logger"
)

// Ensure Watcher implements the interface.
var _ driven.FileWatcher = (*Watcher)(nil)

// Watcher reports files created or written under a directory tree.
// New subdirectories are watched as they appear.
type Watcher struct{}

// NewWatcher creates a new watcher.
func NewWatcher() *Watcher {
	return &Watcher{}
}

// Watch starts watching root. Both channels close when ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context, root string) (<-chan string, <-chan error, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	if err := addTree(fw, root); err != nil {
		fw.Close()
		return nil, nil, err
	}

	paths := make(chan string)
	errs := make(chan error)

	go func() {
		defer close(paths)
		defer close(errs)
		defer fw.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				path, emit := handleEvent(fw, event)
				if !emit {
					continue
				}
				select {
				case paths <- path:
				case <-ctx.Done():
					return
				}

			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				select {
				case errs <- err:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return paths, errs, nil
}

// handleEvent decides whether an event names a new file.
// Created directories are added to the watch list and their files emitted later.
func handleEvent(fw *fsnotify.Watcher, event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return "", false
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		// Removed before we looked
		return "", false
	}

	if info.IsDir() {
		if event.Has(fsnotify.Create) && fw != nil {
			if err := addTree(fw, event.Name); err != nil {
				logger.Warn("Cannot watch %s: %v", event.Name, err)
			}
		}
		return "", false
	}

	return event.Name, info.Mode().IsRegular()
}

// addTree watches dir and every non-hidden directory below it.
func addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}
