// Package watcher re-imports documents as they change on disk.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vonshlovens/fieldguide/internal/source"
)

// Watcher reports settled changes to collection content documents and the
// checklist template
type Watcher struct {
	src       *source.Source
	template  string
	fs        *fsnotify.Watcher
	debouncer *Debouncer
	stopCh    chan struct{}
}

// New creates a watcher over the source's content directory
func New(src *source.Source, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	template, _ := filepath.Abs(src.TemplateFile())
	return &Watcher{
		src:       src,
		template:  template,
		fs:        fsw,
		debouncer: NewDebouncer(debounce),
		stopCh:    make(chan struct{}),
	}, nil
}

// Start registers the content tree and the template's directory and begins
// forwarding events
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.src.Root()); err != nil {
		return err
	}

	// The template may live outside the content directory
	if dir := filepath.Dir(w.template); !w.inContentTree(dir) {
		if err := w.fs.Add(dir); err != nil {
			slog.Warn("failed to watch template directory", "path", dir, "error", err)
		}
	}

	go w.loop(ctx)

	slog.Info("watcher started", "path", w.src.Root(), "template", w.template)
	return nil
}

// Events returns settled document changes
func (w *Watcher) Events() <-chan Event {
	return w.debouncer.Events()
}

// Flush emits pending events without waiting for the quiet period
func (w *Watcher) Flush() {
	w.debouncer.Flush()
}

// Stop stops watching and closes Events
func (w *Watcher) Stop() error {
	close(w.stopCh)
	w.debouncer.Stop()
	return w.fs.Close()
}

func (w *Watcher) inContentTree(dir string) bool {
	root, err := filepath.Abs(w.src.Root())
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, dir)
	return err == nil && !strings.HasPrefix(rel, "..")
}

// addTree watches root and every included directory below it
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("error walking path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		if rel, relErr := filepath.Rel(w.src.Root(), path); relErr == nil && rel != "." {
			if w.src.IgnoresDir(rel) {
				return filepath.SkipDir
			}
		}

		if err := w.fs.Add(path); err != nil {
			slog.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			// A new collection directory: its content.json may already be
			// inside, so register the tree and queue what is there.
			if err := w.addTree(ev.Name); err != nil {
				slog.Warn("failed to watch new directory", "path", ev.Name, "error", err)
			}
			if content := filepath.Join(ev.Name, source.ContentFile); w.relevant(content) {
				if _, err := os.Stat(content); err == nil {
					w.debouncer.Add(content, OpCreate)
				}
			}
			return
		}
	}

	if !w.relevant(ev.Name) {
		return
	}

	switch {
	case ev.Has(fsnotify.Create):
		w.debouncer.Add(ev.Name, OpCreate)
	case ev.Has(fsnotify.Write):
		w.debouncer.Add(ev.Name, OpWrite)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		// The new name of a rename arrives as its own create
		w.debouncer.Add(ev.Name, OpRemove)
	}
}

// relevant reports whether path is the template or a collection's content
// document
func (w *Watcher) relevant(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if abs == w.template {
		return true
	}
	_, ok := w.src.EntryForPath(path)
	return ok
}
