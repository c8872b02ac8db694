package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/vonshlovens/fieldguide/internal/db"
	"github.com/vonshlovens/fieldguide/internal/source"
)

// SweepReport summarizes a startup sweep
type SweepReport struct {
	Imported []string
	// Missing lists entries whose content document does not exist
	Missing []string
	// Failed maps entry ids to their import error
	Failed map[string]error
	// Pending lists entries not reached because the sweep was interrupted
	Pending []string

	Checklists  *ChecklistResult
	TemplateErr error
}

// Sweeper imports every known collection and then the checklist template
type Sweeper struct {
	db          *db.DB
	src         *source.Source
	manuals     *ManualImporter
	checklists  *ChecklistImporter
	concurrency int
	progress    io.Writer
}

// NewSweeper creates a sweeper over the content source. Collections are
// imported concurrently up to the given limit since their subtrees are
// disjoint.
func NewSweeper(database *db.DB, src *source.Source, concurrency int) *Sweeper {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Sweeper{
		db:          database,
		src:         src,
		manuals:     NewManualImporter(database),
		checklists:  NewChecklistImporter(database),
		concurrency: concurrency,
		progress:    io.Discard,
	}
}

// SetProgressWriter renders a progress bar to w while sweeping
func (s *Sweeper) SetProgressWriter(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	s.progress = w
}

// Run imports every collection, isolating failures per collection, then
// imports the checklist template. A collection held by another writer is
// waited for rather than reported as failed. Cancelling ctx stops the sweep between
// collections: a collection that already started finishes its transaction,
// and collections not reached keep their previous state.
func (s *Sweeper) Run(ctx context.Context) (*SweepReport, error) {
	slog.Info("starting import sweep")
	start := time.Now()

	entries, err := s.src.Entries()
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	report := &SweepReport{Failed: make(map[string]error)}
	var mu sync.Mutex

	bar := progressbar.NewOptions(len(entries),
		progressbar.OptionSetDescription("Importing manuals"),
		progressbar.OptionSetWriter(s.progress),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
	)

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for _, entry := range entries {
		if ctx.Err() != nil {
			report.Pending = append(report.Pending, entry.ID)
			continue
		}

		g.Go(func() error {
			if ctx.Err() != nil {
				mu.Lock()
				report.Pending = append(report.Pending, entry.ID)
				mu.Unlock()
				return nil
			}

			id, err := s.importEntry(ctx, entry, true)

			mu.Lock()
			switch {
			case errors.Is(err, source.ErrDocumentNotFound):
				report.Missing = append(report.Missing, entry.ID)
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				// Interrupted while waiting for the collection
				report.Pending = append(report.Pending, entry.ID)
			case err != nil:
				report.Failed[entry.ID] = err
			default:
				report.Imported = append(report.Imported, id)
			}
			mu.Unlock()

			bar.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	bar.Finish()

	sort.Strings(report.Imported)
	sort.Strings(report.Missing)
	sort.Strings(report.Pending)

	if err := ctx.Err(); err != nil {
		slog.Warn("import sweep interrupted",
			"imported", len(report.Imported),
			"pending", len(report.Pending))
		return report, err
	}

	report.Checklists, report.TemplateErr = s.ImportTemplate(ctx)
	if errors.Is(report.TemplateErr, source.ErrDocumentNotFound) {
		slog.Warn("checklist template not found, skipping", "path", s.src.TemplateFile())
	} else if report.TemplateErr != nil {
		slog.Error("checklist template import failed", "error", report.TemplateErr)
	}

	slog.Info("import sweep completed",
		"imported", len(report.Imported),
		"missing", len(report.Missing),
		"failed", len(report.Failed),
		"duration_s", time.Since(start).Seconds())

	return report, nil
}

// ImportEntry reads and imports one collection. A missing document is
// logged and returned as source.ErrDocumentNotFound; parse and store
// failures are logged and returned. If another writer holds the collection
// it fails fast with ErrImportInProgress. The import itself is not
// cancelled by ctx once it has started.
func (s *Sweeper) ImportEntry(ctx context.Context, entry source.Entry) (string, error) {
	return s.importEntry(ctx, entry, false)
}

// importEntry imports one collection. With wait set it queues behind other
// writers of the collection until ctx is done.
func (s *Sweeper) importEntry(ctx context.Context, entry source.Entry, wait bool) (string, error) {
	data, err := s.src.ReadManual(entry)
	if err != nil {
		if errors.Is(err, source.ErrDocumentNotFound) {
			slog.Warn("manual not found, skipping", "collection", entry.ID, "path", s.src.ManualPath(entry))
		} else {
			slog.Error("failed to read manual", "collection", entry.ID, "error", err)
		}
		return "", err
	}

	doc := ManualDocument{
		Name:   s.src.ManualPath(entry),
		Data:   data,
		PDFDir: s.src.EntryDir(entry),
	}

	var res *ManualResult
	if wait {
		res, err = s.manuals.ImportWait(ctx, doc)
	} else {
		res, err = s.manuals.Import(context.WithoutCancel(ctx), doc)
	}
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("manual import failed", "collection", entry.ID, "error", err)
		}
		return "", err
	}
	return res.CollectionID, nil
}

// ImportTemplate reads and imports the checklist template
func (s *Sweeper) ImportTemplate(ctx context.Context) (*ChecklistResult, error) {
	data, err := s.src.ReadTemplate()
	if err != nil {
		return nil, err
	}
	return s.checklists.Import(ctx, TemplateDocument{Name: s.src.TemplateFile(), Data: data})
}

// Stale returns the ids of entries whose content document on disk matches
// no imported collection's content hash, i.e. new or edited since the last
// import. Entries without a document are left out.
func (s *Sweeper) Stale(ctx context.Context) ([]string, error) {
	entries, err := s.src.Entries()
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	hashes, err := s.db.GetAllContentHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get content hashes: %w", err)
	}
	imported := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		imported[h] = true
	}

	var stale []string
	for _, entry := range entries {
		hash, err := HashFile(s.src.ManualPath(entry))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s: %w", entry.ID, err)
		}
		if !imported[hash] {
			stale = append(stale, entry.ID)
		}
	}
	sort.Strings(stale)
	return stale, nil
}
