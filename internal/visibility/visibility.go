// Package visibility decides which checklist items are shown.
//
// An item without a radio id is always visible. An item scoped to a radio is
// visible only while that collection is downloaded. Progress and completion
// count visible items only. Nothing here is stored; it is recomputed on every
// read.
package visibility

import (
	"fmt"

	"github.com/vonshlovens/fieldguide/internal/db"
)

// DownloadedSet is the set of downloaded collection ids
type DownloadedSet map[string]struct{}

// NewDownloadedSet builds a set from collection ids
func NewDownloadedSet(ids []string) DownloadedSet {
	set := make(DownloadedSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Has reports whether id is downloaded
func (s DownloadedSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// IsVisible reports whether a single item is shown
func IsVisible(item *db.ChecklistItem, downloaded DownloadedSet) bool {
	return item.RadioID == nil || downloaded.Has(*item.RadioID)
}

// Visible returns the visible items in their original order
func Visible(items []*db.ChecklistItem, downloaded DownloadedSet) []*db.ChecklistItem {
	visible := make([]*db.ChecklistItem, 0, len(items))
	for _, item := range items {
		if IsVisible(item, downloaded) {
			visible = append(visible, item)
		}
	}
	return visible
}

// Progress counts checked items among the visible ones
type Progress struct {
	Checked int
	Total   int
}

// ProgressOf computes progress over the visible subset of items
func ProgressOf(items []*db.ChecklistItem, downloaded DownloadedSet) Progress {
	var p Progress
	for _, item := range items {
		if !IsVisible(item, downloaded) {
			continue
		}
		p.Total++
		if item.IsChecked {
			p.Checked++
		}
	}
	return p
}

// Complete reports whether every visible item is checked. A checklist
// with no visible items is not complete.
func (p Progress) Complete() bool {
	return p.Total > 0 && p.Checked == p.Total
}

func (p Progress) String() string {
	return fmt.Sprintf("%d/%d", p.Checked, p.Total)
}
