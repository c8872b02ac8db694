package watcher

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/vonshlovens/fieldguide/internal/importer"
	"github.com/vonshlovens/fieldguide/internal/source"
)

// Reimporter turns settled document changes into imports
type Reimporter struct {
	src     *source.Source
	sweeper *importer.Sweeper
}

// NewReimporter creates a Reimporter that imports through the sweeper
func NewReimporter(src *source.Source, sweeper *importer.Sweeper) *Reimporter {
	return &Reimporter{src: src, sweeper: sweeper}
}

// Run handles events until ctx is done or events is closed
func (r *Reimporter) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := r.Handle(ctx, ev); err != nil {
				slog.Error("re-import failed", "path", ev.Path, "op", ev.Op.String(), "error", err)
			}
		}
	}
}

// Handle re-imports the document named by one event. Removed documents
// leave the stored collection alone; a concurrent import of the same
// collection is logged and skipped.
func (r *Reimporter) Handle(ctx context.Context, ev Event) error {
	if ev.Op == OpRemove {
		slog.Info("document removed, keeping stored content", "path", ev.Path)
		return nil
	}

	if r.isTemplate(ev.Path) {
		res, err := r.sweeper.ImportTemplate(ctx)
		if err != nil {
			return err
		}
		slog.Info("checklist template re-imported",
			"created", len(res.Created),
			"existing", len(res.Existing),
			"unknown", len(res.Unknown))
		return nil
	}

	entry, ok := r.src.EntryForPath(ev.Path)
	if !ok {
		return nil
	}

	id, err := r.sweeper.ImportEntry(ctx, entry)
	switch {
	case errors.Is(err, importer.ErrImportInProgress):
		slog.Warn("import already in progress, skipping", "collection", entry.ID)
		return nil
	case errors.Is(err, source.ErrDocumentNotFound):
		return nil
	case err != nil:
		return err
	}
	slog.Info("manual re-imported", "collection", id)
	return nil
}

func (r *Reimporter) isTemplate(path string) bool {
	a, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	b, err := filepath.Abs(r.src.TemplateFile())
	return err == nil && a == b
}
