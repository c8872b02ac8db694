// Package importer reconciles content documents into the store.
//
// Manual imports fully replace one collection's sections and blocks on every
// run. Checklist imports only create phases that do not exist yet; the
// destructive Reset is the only way to pick up template changes for a phase
// that is already materialized.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vonshlovens/fieldguide/internal/db"
	"github.com/vonshlovens/fieldguide/internal/document"
)

// ErrImportInProgress is returned when a second writer targets a
// collection (or the checklists) while an import holds it
var ErrImportInProgress = errors.New("import already in progress")

// ManualDocument is one manual content document to import
type ManualDocument struct {
	// Name identifies the document in logs and history (usually its path)
	Name string
	Data []byte
	// PDFDir is searched for the PDF the document names. Empty skips the
	// lookup and stores no PDF path.
	PDFDir string
}

// ManualResult describes a committed manual import
type ManualResult struct {
	CollectionID string
	Created      bool
	Sections     int
	Blocks       int
	ContentHash  string
}

// ManualImporter reconciles manual content documents into the store
type ManualImporter struct {
	db  *db.DB
	now func() time.Time
}

// NewManualImporter creates a manual importer
func NewManualImporter(database *db.DB) *ManualImporter {
	return &ManualImporter{db: database, now: time.Now}
}

// Import parses doc and replaces the collection it describes. The whole
// reconciliation commits in one transaction: on any error nothing of this
// document is visible and the collection keeps its previous state. If
// another writer holds the collection, Import fails fast with
// ErrImportInProgress.
func (m *ManualImporter) Import(ctx context.Context, doc ManualDocument) (*ManualResult, error) {
	return m.run(ctx, doc, func(id string) (func(), error) {
		unlock, ok := m.db.TryLock(db.CollectionLockKey(id))
		if !ok {
			return nil, fmt.Errorf("collection %s: %w", id, ErrImportInProgress)
		}
		return unlock, nil
	})
}

// ImportWait is Import, but queues behind other writers of the collection
// (a favorite toggle, say) instead of failing. ctx bounds only the wait:
// once the collection is held the import runs to completion.
func (m *ManualImporter) ImportWait(ctx context.Context, doc ManualDocument) (*ManualResult, error) {
	return m.run(context.WithoutCancel(ctx), doc, func(id string) (func(), error) {
		unlock, err := m.db.Lock(ctx, db.CollectionLockKey(id))
		if err != nil {
			return nil, fmt.Errorf("collection %s: %w", id, err)
		}
		return unlock, nil
	})
}

func (m *ManualImporter) run(ctx context.Context, doc ManualDocument, acquire func(id string) (func(), error)) (*ManualResult, error) {
	start := m.now()
	hash := HashContent(doc.Data)
	target := doc.Name

	ctx, span := startSpan(ctx, "import.manual", attribute.String("fieldguide.document", doc.Name))

	res, err := m.importManual(ctx, doc, hash, &target, acquire)

	outcome := db.OutcomeOK
	switch {
	case errors.Is(err, ErrImportInProgress), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = db.OutcomeSkipped
	case err != nil:
		outcome = db.OutcomeFailed
	}
	finishSpan(ctx, span, db.RunKindManual, outcome, start, err)
	recordRun(ctx, m.db, db.RunKindManual, target, hash, outcome, start, m.now(), err)

	if err != nil {
		return nil, err
	}
	return res, nil
}

func (m *ManualImporter) importManual(ctx context.Context, doc ManualDocument, hash string, target *string, acquire func(id string) (func(), error)) (*ManualResult, error) {
	manual, err := document.ParseManual(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", doc.Name, err)
	}

	id := manual.Radio.ID
	*target = id

	unlock, err := acquire(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	collection := &db.Collection{
		ID:           id,
		Manufacturer: manual.Radio.Manufacturer,
		Model:        manual.Radio.Model,
		Revision:     manual.Radio.Revision,
		PDFFilename:  manual.Radio.PDFFilename,
		PDFPath:      resolvePDF(doc.PDFDir, manual.Radio.PDFFilename),
		ContentHash:  hash,
	}
	sections := BuildSections(id, manual)

	result := &ManualResult{
		CollectionID: id,
		Sections:     len(sections),
		Blocks:       manual.BlockCount(),
		ContentHash:  hash,
	}

	err = m.db.WithTx(ctx, func(tx *db.Tx) error {
		existing, err := tx.GetCollection(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to look up collection %s: %w", id, err)
		}

		result.Created = existing == nil
		if existing == nil {
			if err := tx.InsertCollection(ctx, collection); err != nil {
				return err
			}
		} else {
			if err := tx.UpdateCollectionMetadata(ctx, collection); err != nil {
				return err
			}
			if _, err := tx.DeleteSections(ctx, id); err != nil {
				return err
			}
		}

		for _, sec := range sections {
			if err := tx.InsertSection(ctx, &sec.Section); err != nil {
				return err
			}
			for _, b := range sec.Blocks {
				if err := tx.InsertBlock(ctx, b); err != nil {
					return err
				}
			}
		}

		return tx.MarkDownloaded(ctx, id, m.now())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import collection %s: %w", id, err)
	}

	slog.Info("imported manual",
		"collection", id,
		"created", result.Created,
		"sections", result.Sections,
		"blocks", result.Blocks,
		"hash", hash[:8])

	return result, nil
}

// SectionRows is a section row together with the block rows it owns
type SectionRows struct {
	db.Section
	Blocks []*db.Block
}

// BuildSections derives the stored rows of a manual. Section ids are
// namespaced by the collection id and block ids by section id and position.
func BuildSections(collectionID string, manual *document.Manual) []SectionRows {
	rows := make([]SectionRows, 0, len(manual.Sections))

	for i, s := range manual.Sections {
		sortOrder := i
		if s.SortOrder != nil {
			sortOrder = *s.SortOrder
		}

		sectionID := collectionID + "-" + s.ID
		searchText := SearchText(s.Title, s.Blocks)
		sec := SectionRows{
			Section: db.Section{
				ID:           sectionID,
				CollectionID: collectionID,
				Title:        s.Title,
				SortOrder:    sortOrder,
				SearchText:   searchText,
				MatchText:    db.MatchText(s.Title, searchText),
			},
			Blocks: make([]*db.Block, 0, len(s.Blocks)),
		}

		for j, content := range s.Blocks {
			sec.Blocks = append(sec.Blocks, &db.Block{
				ID:        sectionID + "-block-" + strconv.Itoa(j),
				SectionID: sectionID,
				SortOrder: j,
				Type:      content.Type(),
				Content:   content,
			})
		}
		rows = append(rows, sec)
	}

	return rows
}

// SearchText flattens a section into its search string: the title followed
// by every block's visible text, each fragment followed by one space.
func SearchText(title string, blocks []document.Content) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteByte(' ')
	for _, c := range blocks {
		for _, fragment := range c.SearchFragments() {
			b.WriteString(fragment)
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// resolvePDF returns the absolute path of the PDF when it exists locally
func resolvePDF(dir, filename string) string {
	if dir == "" || filename == "" {
		return ""
	}

	p, err := filepath.Abs(filepath.Join(dir, filename))
	if err != nil {
		return ""
	}
	if info, err := os.Stat(p); err != nil || info.IsDir() {
		return ""
	}
	return p
}

// recordRun writes import history outside the reconciliation transaction,
// so failed attempts are recorded too
func recordRun(ctx context.Context, database *db.DB, kind, target, hash, outcome string, start, end time.Time, runErr error) {
	run := &db.ImportRun{
		Kind:        kind,
		Target:      target,
		ContentHash: hash,
		Outcome:     outcome,
		StartedAt:   start,
		FinishedAt:  end,
	}
	if runErr != nil {
		msg := runErr.Error()
		run.Error = &msg
	}

	if err := database.InsertImportRun(context.WithoutCancel(ctx), run); err != nil {
		slog.Warn("failed to record import run", "kind", kind, "target", target, "error", err)
	}
}
