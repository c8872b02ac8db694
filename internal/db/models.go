package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/vonshlovens/fieldguide/internal/document"
)

// Collection is one supported device and its imported manual
type Collection struct {
	ID           string     `db:"id"`
	Manufacturer string     `db:"manufacturer"`
	Model        string     `db:"model"`
	Revision     string     `db:"revision"`
	PDFFilename  string     `db:"pdf_filename"`
	PDFPath      string     `db:"pdf_path"`
	IsDownloaded bool       `db:"is_downloaded"`
	DownloadedAt *time.Time `db:"downloaded_at"`
	IsFavorite   bool       `db:"is_favorite"`
	ContentHash  string     `db:"content_hash"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// DisplayName returns "Manufacturer Model"
func (c *Collection) DisplayName() string {
	if c.Manufacturer == "" {
		return c.Model
	}
	return c.Manufacturer + " " + c.Model
}

// Section is an ordered chapter of a collection's manual
type Section struct {
	ID           string `db:"id"`
	CollectionID string `db:"collection_id"`
	Title        string `db:"title"`
	SortOrder    int    `db:"sort_order"`
	SearchText   string `db:"search_text"`
	// MatchText is the lowercased title and search text. SQL LOWER folds
	// only ASCII on SQLite, so case folding happens here.
	MatchText    string `db:"match_text"`
}

// Block is one typed content element of a section
type Block struct {
	ID        string             `db:"id"`
	SectionID string             `db:"section_id"`
	SortOrder int                `db:"sort_order"`
	Content   document.Content   `db:"-"`
	Type      document.BlockType `db:"block_type"`
}

// Checklist is the materialized checklist of one phase
type Checklist struct {
	ID        string         `db:"id"`
	Title     string         `db:"title"`
	Phase     document.Phase `db:"phase"`
	SortOrder int            `db:"sort_order"`
}

// ChecklistItem is a single checkable line of a checklist
type ChecklistItem struct {
	ID          string  `db:"id"`
	ChecklistID string  `db:"checklist_id"`
	Text        string  `db:"text"`
	SortOrder   int     `db:"sort_order"`
	Category    string  `db:"category"`
	RadioID     *string `db:"radio_id"`
	IsChecked   bool    `db:"is_checked"`
}

// Import run kinds and outcomes
const (
	RunKindManual   = "manual"
	RunKindTemplate = "template"

	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// ImportRun is one recorded import attempt
type ImportRun struct {
	ID          uuid.UUID `db:"id"`
	Kind        string    `db:"kind"`
	Target      string    `db:"target"`
	ContentHash string    `db:"content_hash"`
	Outcome     string    `db:"outcome"`
	Error       *string   `db:"error"`
	StartedAt   time.Time `db:"started_at"`
	FinishedAt  time.Time `db:"finished_at"`
}

// CollectionFilter narrows ListCollections
type CollectionFilter struct {
	DownloadedOnly bool
	FavoritesOnly  bool
}

// SearchFilter scopes a section search. Only downloaded collections are
// ever searched.
type SearchFilter struct {
	CollectionID  string
	FavoritesOnly bool
}

// SectionMatch is a section hit with its owning collection's display fields
type SectionMatch struct {
	Section
	Manufacturer string
	Model        string
}

// Status summarizes store contents
type Status struct {
	Connected      bool
	Collections    int
	Downloaded     int
	Favorites      int
	Sections       int
	Blocks         int
	Checklists     int
	ChecklistItems int
	CheckedItems   int
	LastImportTime *time.Time
}
