package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vonshlovens/fieldguide/internal/db"
	"github.com/vonshlovens/fieldguide/internal/document"
)

// ErrResetNotConfirmed is returned when Reset is called without explicit
// confirmation
var ErrResetNotConfirmed = errors.New("checklist reset requires confirmation")

// TemplateDocument is a checklist template document to import
type TemplateDocument struct {
	Name string
	Data []byte
}

// ChecklistResult describes what a template import did per phase
type ChecklistResult struct {
	// Created lists phases materialized by this run
	Created []document.Phase
	// Existing lists phases left untouched because they were already
	// materialized
	Existing []document.Phase
	// Unknown lists template phase ids this version does not recognize
	Unknown []string
	// Items is the number of items created
	Items int
}

// ResetOptions controls a destructive checklist reset
type ResetOptions struct {
	// Confirmed must be set by the caller after the user agreed to lose
	// check marks
	Confirmed bool
	// Phases limits the reset. Empty resets every checklist.
	Phases []document.Phase
}

// ResetResult describes a committed reset
type ResetResult struct {
	Deleted int64
	ChecklistResult
}

// ChecklistImporter materializes checklist templates
type ChecklistImporter struct {
	db  *db.DB
	now func() time.Time
}

// NewChecklistImporter creates a checklist importer
func NewChecklistImporter(database *db.DB) *ChecklistImporter {
	return &ChecklistImporter{db: database, now: time.Now}
}

// Import creates every phase of the template that has no checklist yet.
// Existing checklists are never modified, so check marks survive routine
// template refreshes. Unknown phases are skipped; missing required fields
// fail the whole import.
func (c *ChecklistImporter) Import(ctx context.Context, doc TemplateDocument) (*ChecklistResult, error) {
	var result *ChecklistResult
	err := c.run(ctx, "import.template", doc, func(tx *db.Tx, tmpl *document.Template) error {
		var err error
		result, err = materialize(ctx, tx, tmpl)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("imported checklist template",
		"created", len(result.Created),
		"existing", len(result.Existing),
		"unknown", len(result.Unknown),
		"items", result.Items)
	return result, nil
}

// Reset deletes the selected checklists (all of them by default) and
// re-materializes them from the template in the same transaction. Their
// items come back exactly as the template lists them, all unchecked.
func (c *ChecklistImporter) Reset(ctx context.Context, doc TemplateDocument, opts ResetOptions) (*ResetResult, error) {
	if !opts.Confirmed {
		return nil, ErrResetNotConfirmed
	}

	ids := make([]string, 0, len(opts.Phases))
	for _, p := range opts.Phases {
		ids = append(ids, checklistID(p))
	}

	result := &ResetResult{}
	err := c.run(ctx, "reset.template", doc, func(tx *db.Tx, tmpl *document.Template) error {
		deleted, err := tx.DeleteChecklists(ctx, ids...)
		if err != nil {
			return err
		}
		res, err := materialize(ctx, tx, tmpl)
		if err != nil {
			return err
		}
		result.Deleted = deleted
		result.ChecklistResult = *res
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("reset checklists",
		"phases", ids,
		"deleted", result.Deleted,
		"created", len(result.Created),
		"items", result.Items)
	return result, nil
}

// run parses the template, takes the checklist writer slot and runs fn in
// one transaction, recording the attempt in import history
func (c *ChecklistImporter) run(ctx context.Context, spanName string, doc TemplateDocument, fn func(tx *db.Tx, tmpl *document.Template) error) (err error) {
	start := c.now()
	hash := HashContent(doc.Data)

	ctx, span := startSpan(ctx, spanName, attribute.String("fieldguide.document", doc.Name))
	defer func() {
		outcome := db.OutcomeOK
		switch {
		case errors.Is(err, ErrImportInProgress):
			outcome = db.OutcomeSkipped
		case err != nil:
			outcome = db.OutcomeFailed
		}
		finishSpan(ctx, span, db.RunKindTemplate, outcome, start, err)
		recordRun(ctx, c.db, db.RunKindTemplate, doc.Name, hash, outcome, start, c.now(), err)
	}()

	tmpl, err := document.ParseTemplate(doc.Data)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", doc.Name, err)
	}

	unlock, ok := c.db.TryLock(db.ChecklistsLockKey)
	if !ok {
		return fmt.Errorf("checklists: %w", ErrImportInProgress)
	}
	defer unlock()

	if err := c.db.WithTx(ctx, func(tx *db.Tx) error {
		return fn(tx, tmpl)
	}); err != nil {
		return fmt.Errorf("failed to apply checklist template: %w", err)
	}
	return nil
}

// materialize inserts every template phase that has no checklist row yet
func materialize(ctx context.Context, tx *db.Tx, tmpl *document.Template) (*ChecklistResult, error) {
	result := &ChecklistResult{}
	seen := make(map[document.Phase]bool)

	for _, entry := range tmpl.Checklists {
		phase, ok := document.ParsePhase(entry.Phase)
		if !ok {
			slog.Warn("skipping checklist with unknown phase", "id", entry.ID, "phase", entry.Phase)
			result.Unknown = append(result.Unknown, entry.Phase)
			continue
		}
		if seen[phase] {
			slog.Warn("skipping duplicate checklist phase", "id", entry.ID, "phase", phase)
			continue
		}
		seen[phase] = true

		checklist := &db.Checklist{
			ID:        checklistID(phase),
			Title:     entry.Title,
			Phase:     phase,
			SortOrder: entry.SortOrder,
		}
		created, err := tx.InsertChecklistIfAbsent(ctx, checklist)
		if err != nil {
			return nil, err
		}
		if !created {
			result.Existing = append(result.Existing, phase)
			continue
		}

		// Sort index runs across the whole checklist, not per category
		idx := 0
		for _, group := range entry.Groups {
			var radioID *string
			if group.RadioID != "" {
				id := group.RadioID
				radioID = &id
			}
			for _, text := range group.Entries {
				if err := tx.InsertChecklistItem(ctx, &db.ChecklistItem{
					ID:          checklist.ID + "-" + strconv.Itoa(idx),
					ChecklistID: checklist.ID,
					Text:        text,
					SortOrder:   idx,
					Category:    group.Category,
					RadioID:     radioID,
				}); err != nil {
					return nil, err
				}
				idx++
			}
		}

		result.Created = append(result.Created, phase)
		result.Items += entry.EntryCount()
		slog.Debug("materialized checklist", "phase", phase, "items", entry.EntryCount())
	}

	return result, nil
}

// checklistID is the stored checklist id of a phase
func checklistID(p document.Phase) string {
	return string(p)
}
