// Package library is the read and toggle surface used by presentation code.
//
// Reads go straight to the store. The only writes are the two user-owned
// flags: a collection's favorite mark and a checklist item's check mark.
// Each write waits for the writer slot of what it touches, so it queues
// behind an import of the same collection or checklists.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vonshlovens/fieldguide/internal/db"
	"github.com/vonshlovens/fieldguide/internal/document"
	"github.com/vonshlovens/fieldguide/internal/search"
	"github.com/vonshlovens/fieldguide/internal/visibility"
)

// Library exposes lookups and user mutations over the store
type Library struct {
	db       *db.DB
	searcher *search.Searcher
}

// New creates a Library over the store
func New(database *db.DB) *Library {
	return &Library{
		db:       database,
		searcher: search.New(database),
	}
}

// SectionView is a section with its decoded blocks
type SectionView struct {
	*db.Section
	Blocks []*db.Block
}

// FindCollection returns a collection by id or db.ErrNotFound
func (l *Library) FindCollection(ctx context.Context, id string) (*db.Collection, error) {
	c, err := l.db.GetCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("collection %q: %w", id, db.ErrNotFound)
	}
	return c, nil
}

// ListCollections returns collections ordered by manufacturer and model
func (l *Library) ListCollections(ctx context.Context, filter db.CollectionFilter) ([]*db.Collection, error) {
	return l.db.ListCollections(ctx, filter)
}

// Sections returns a collection's sections and blocks in sort order
func (l *Library) Sections(ctx context.Context, collectionID string) ([]SectionView, error) {
	if _, err := l.FindCollection(ctx, collectionID); err != nil {
		return nil, err
	}

	sections, err := l.db.ListSections(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}

	views := make([]SectionView, 0, len(sections))
	for _, s := range sections {
		blocks, err := l.db.ListBlocks(ctx, s.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list blocks of %s: %w", s.ID, err)
		}
		views = append(views, SectionView{Section: s, Blocks: blocks})
	}
	return views, nil
}

// Checklists returns every materialized checklist in sort order
func (l *Library) Checklists(ctx context.Context) ([]*db.Checklist, error) {
	return l.db.ListChecklists(ctx)
}

// FindChecklistByPath resolves a phase path component such as
// "pre-outing" (any case) to its checklist, or db.ErrNotFound
func (l *Library) FindChecklistByPath(ctx context.Context, component string) (*db.Checklist, error) {
	phase, ok := document.ParsePhase(component)
	if !ok {
		return nil, fmt.Errorf("checklist %q: %w", component, db.ErrNotFound)
	}

	c, err := l.db.GetChecklistByPhase(ctx, phase)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("checklist %q: %w", phase, db.ErrNotFound)
	}
	return c, nil
}

// SetFavorite sets a collection's favorite flag
func (l *Library) SetFavorite(ctx context.Context, collectionID string, favorite bool) error {
	unlock, err := l.db.Lock(ctx, db.CollectionLockKey(collectionID))
	if err != nil {
		return err
	}
	defer unlock()

	if err := l.db.SetFavorite(ctx, collectionID, favorite); err != nil {
		return err
	}
	slog.Debug("favorite updated", "collection", collectionID, "favorite", favorite)
	return nil
}

// ToggleFavorite flips a collection's favorite flag and returns the new value
func (l *Library) ToggleFavorite(ctx context.Context, collectionID string) (bool, error) {
	unlock, err := l.db.Lock(ctx, db.CollectionLockKey(collectionID))
	if err != nil {
		return false, err
	}
	defer unlock()

	return l.db.ToggleFavorite(ctx, collectionID)
}

// SetChecked sets one item's check mark
func (l *Library) SetChecked(ctx context.Context, itemID string, checked bool) error {
	unlock, err := l.db.Lock(ctx, db.ChecklistsLockKey)
	if err != nil {
		return err
	}
	defer unlock()

	return l.db.SetItemChecked(ctx, itemID, checked)
}

// ToggleChecked flips one item's check mark and returns the new value
func (l *Library) ToggleChecked(ctx context.Context, itemID string) (bool, error) {
	unlock, err := l.db.Lock(ctx, db.ChecklistsLockKey)
	if err != nil {
		return false, err
	}
	defer unlock()

	return l.db.ToggleItemChecked(ctx, itemID)
}

// UncheckAll clears every check mark of a checklist, keeping its items.
// This is the non-destructive "start over"; picking up template changes
// needs a reset.
func (l *Library) UncheckAll(ctx context.Context, checklistID string) (int64, error) {
	unlock, err := l.db.Lock(ctx, db.ChecklistsLockKey)
	if err != nil {
		return 0, err
	}
	defer unlock()

	c, err := l.db.GetChecklist(ctx, checklistID)
	if err != nil {
		return 0, err
	}
	if c == nil {
		return 0, fmt.Errorf("checklist %q: %w", checklistID, db.ErrNotFound)
	}
	return l.db.UncheckAll(ctx, checklistID)
}

// ChecklistView is a checklist as the user sees it
type ChecklistView struct {
	Checklist *db.Checklist
	// Items holds the visible items in sort order
	Items []*db.ChecklistItem
	// Hidden counts items scoped to radios that are not downloaded
	Hidden   int
	Progress visibility.Progress
}

// Categories returns the visible items grouped by category, in order of
// first appearance
func (v *ChecklistView) Categories() []Category {
	var cats []Category
	index := make(map[string]int)
	for _, item := range v.Items {
		i, ok := index[item.Category]
		if !ok {
			i = len(cats)
			index[item.Category] = i
			cats = append(cats, Category{Name: item.Category})
		}
		cats[i].Items = append(cats[i].Items, item)
	}
	return cats
}

// Category is one labelled group of checklist items
type Category struct {
	Name  string
	Items []*db.ChecklistItem
}

// ChecklistView computes the visible items and progress of a checklist
// against the currently downloaded collections
func (l *Library) ChecklistView(ctx context.Context, checklistID string) (*ChecklistView, error) {
	c, err := l.db.GetChecklist(ctx, checklistID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("checklist %q: %w", checklistID, db.ErrNotFound)
	}

	items, err := l.db.ListChecklistItems(ctx, checklistID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checklist items: %w", err)
	}

	ids, err := l.db.DownloadedCollectionIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list downloaded collections: %w", err)
	}
	downloaded := visibility.NewDownloadedSet(ids)

	visible := visibility.Visible(items, downloaded)
	return &ChecklistView{
		Checklist: c,
		Items:     visible,
		Hidden:    len(items) - len(visible),
		Progress:  visibility.ProgressOf(items, downloaded),
	}, nil
}

// Search runs a gated section search
func (l *Library) Search(ctx context.Context, query string, scope search.Scope) (*search.Result, error) {
	return l.searcher.Search(ctx, query, scope)
}

// ExportManual renders a stored collection back into a manual content
// document. Re-importing the output reproduces the stored sections and
// blocks.
func (l *Library) ExportManual(ctx context.Context, collectionID string) ([]byte, error) {
	c, err := l.FindCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	views, err := l.Sections(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	manual := &document.Manual{
		Radio: document.Radio{
			ID:           c.ID,
			Manufacturer: c.Manufacturer,
			Model:        c.Model,
			Revision:     c.Revision,
			PDFFilename:  c.PDFFilename,
		},
		Sections: make([]document.Section, 0, len(views)),
	}

	for _, v := range views {
		sortOrder := v.SortOrder
		section := document.Section{
			ID:        strings.TrimPrefix(v.ID, c.ID+"-"),
			Title:     v.Title,
			SortOrder: &sortOrder,
			Blocks:    make([]document.Content, 0, len(v.Blocks)),
		}
		for _, b := range v.Blocks {
			section.Blocks = append(section.Blocks, b.Content)
		}
		manual.Sections = append(manual.Sections, section)
	}

	return document.EncodeManual(manual)
}
