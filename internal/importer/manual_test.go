package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vonshlovens/fieldguide/internal/db"
	"github.com/vonshlovens/fieldguide/internal/db/dbtest"
	"github.com/vonshlovens/fieldguide/internal/document"
)

const r1Doc = `{
  "radio": {"id": "r1", "manufacturer": "Elecraft", "model": "KX2", "revision": "B2", "pdfFilename": "r1.pdf"},
  "sections": [
    {"id": "s1", "title": "Specs", "blocks": [
      {"type": "specification", "name": "Power", "value": "10W"}
    ]}
  ]
}`

const r1DocChanged = `{
  "radio": {"id": "r1", "manufacturer": "Elecraft", "model": "KX2", "revision": "C1", "pdfFilename": "r1.pdf"},
  "sections": [
    {"id": "s1", "title": "Specifications", "blocks": [
      {"type": "specification", "name": "Power", "value": "12W"}
    ]},
    {"id": "s2", "title": "Menus", "sortOrder": 5, "blocks": [
      {"type": "menuEntry", "name": "AGC SPD", "description": "AGC speed"},
      {"type": "note", "text": "Tap twice"}
    ]}
  ]
}`

type storedSection struct {
	Section *db.Section
	Blocks  []*db.Block
}

func snapshot(t *testing.T, store *db.DB, collectionID string) []storedSection {
	t.Helper()
	ctx := context.Background()

	sections, err := store.ListSections(ctx, collectionID)
	require.NoError(t, err)

	var out []storedSection
	for _, s := range sections {
		blocks, err := store.ListBlocks(ctx, s.ID)
		require.NoError(t, err)
		out = append(out, storedSection{Section: s, Blocks: blocks})
	}
	return out
}

func TestManualImport_EndToEnd(t *testing.T) {
	ctx := context.Background()
	store := dbtest.Open(t)
	imp := NewManualImporter(store)

	for i := 0; i < 2; i++ {
		res, err := imp.Import(ctx, ManualDocument{Name: "r1/content.json", Data: []byte(r1Doc)})
		require.NoError(t, err)
		assert.Equal(t, "r1", res.CollectionID)
		assert.Equal(t, i == 0, res.Created)
	}

	collections, err := store.ListCollections(ctx, db.CollectionFilter{})
	require.NoError(t, err)
	require.Len(t, collections, 1)
	c := collections[0]
	assert.Equal(t, "r1", c.ID)
	assert.True(t, c.IsDownloaded)
	require.NotNil(t, c.DownloadedAt)
	assert.False(t, c.IsFavorite)
	assert.Equal(t, HashContent([]byte(r1Doc)), c.ContentHash)

	snap := snapshot(t, store, "r1")
	require.Len(t, snap, 1)
	assert.Equal(t, "r1-s1", snap[0].Section.ID)
	assert.Equal(t, "Specs Power 10W ", snap[0].Section.SearchText)
	assert.Equal(t, 0, snap[0].Section.SortOrder)

	require.Len(t, snap[0].Blocks, 1)
	b := snap[0].Blocks[0]
	assert.Equal(t, "r1-s1-block-0", b.ID)
	assert.Equal(t, document.Specification{Label: "Power", Value: "10W"}, b.Content)

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Sections)
	assert.Equal(t, 1, status.Blocks)
}

func TestManualImport_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := dbtest.Open(t)
	imp := NewManualImporter(store)

	_, err := imp.Import(ctx, ManualDocument{Name: "r1", Data: []byte(r1DocChanged)})
	require.NoError(t, err)
	first := snapshot(t, store, "r1")

	_, err = imp.Import(ctx, ManualDocument{Name: "r1", Data: []byte(r1DocChanged)})
	require.NoError(t, err)
	second := snapshot(t, store, "r1")

	assert.Equal(t, first, second)
}

func TestManualImport_FavoriteSurvivesReimport(t *testing.T) {
	ctx := context.Background()
	store := dbtest.Open(t)
	imp := NewManualImporter(store)

	_, err := imp.Import(ctx, ManualDocument{Name: "r1", Data: []byte(r1Doc)})
	require.NoError(t, err)
	require.NoError(t, store.SetFavorite(ctx, "r1", true))

	res, err := imp.Import(ctx, ManualDocument{Name: "r1", Data: []byte(r1DocChanged)})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, 2, res.Sections)
	assert.Equal(t, 3, res.Blocks)

	c, err := store.GetCollection(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, c.IsFavorite)
	assert.Equal(t, "C1", c.Revision)

	snap := snapshot(t, store, "r1")
	require.Len(t, snap, 2)
	assert.Equal(t, "Specifications Power 12W ", snap[0].Section.SearchText)
	assert.Equal(t, "r1-s2", snap[1].Section.ID)
	assert.Equal(t, 5, snap[1].Section.SortOrder)
	assert.Equal(t, "Menus AGC SPD AGC speed Tap twice ", snap[1].Section.SearchText)
	assert.Equal(t, "r1-s2-block-1", snap[1].Blocks[1].ID)
}

func TestManualImport_UnknownBlockTypeLeavesPriorState(t *testing.T) {
	ctx := context.Background()
	store := dbtest.Open(t)
	imp := NewManualImporter(store)

	_, err := imp.Import(ctx, ManualDocument{Name: "r1", Data: []byte(r1Doc)})
	require.NoError(t, err)
	before := snapshot(t, store, "r1")

	bad := `{"radio":{"id":"r1","manufacturer":"Elecraft","model":"KX2","revision":"Z","pdfFilename":"r1.pdf"},
		"sections":[{"id":"s9","title":"New","blocks":[{"type":"paragraph","text":"ok"},{"type":"foo","text":"x"}]}]}`
	_, err = imp.Import(ctx, ManualDocument{Name: "r1", Data: []byte(bad)})
	require.ErrorIs(t, err, document.ErrUnknownBlockType)

	assert.Equal(t, before, snapshot(t, store, "r1"))
	c, err := store.GetCollection(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "B2", c.Revision)

	// A failing document for a new id leaves no rows at all
	newBad := `{"radio":{"id":"r2","manufacturer":"M","model":"X","revision":"A","pdfFilename":"x.pdf"},
		"sections":[{"id":"s1","title":"T","blocks":[{"type":"foo"}]}]}`
	_, err = imp.Import(ctx, ManualDocument{Name: "r2", Data: []byte(newBad)})
	require.Error(t, err)
	c, err = store.GetCollection(ctx, "r2")
	require.NoError(t, err)
	assert.Nil(t, c)

	runs, err := store.LastImportRuns(ctx)
	require.NoError(t, err)
	outcomes := map[string]string{}
	for _, r := range runs {
		outcomes[r.Target] = r.Outcome
	}
	assert.Equal(t, db.OutcomeFailed, outcomes["r1"])
}

func TestManualImport_MalformedJSON(t *testing.T) {
	store := dbtest.Open(t)
	imp := NewManualImporter(store)

	_, err := imp.Import(context.Background(), ManualDocument{Name: "broken.json", Data: []byte(`{"radio":`)})
	require.ErrorIs(t, err, document.ErrMalformed)

	var perr *document.ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestManualImport_InProgress(t *testing.T) {
	store := dbtest.Open(t)
	imp := NewManualImporter(store)

	unlock, ok := store.TryLock(db.CollectionLockKey("r1"))
	require.True(t, ok)

	_, err := imp.Import(context.Background(), ManualDocument{Name: "r1", Data: []byte(r1Doc)})
	require.ErrorIs(t, err, ErrImportInProgress)

	unlock()
	_, err = imp.Import(context.Background(), ManualDocument{Name: "r1", Data: []byte(r1Doc)})
	require.NoError(t, err)
}

func TestManualImport_ResolvesPDF(t *testing.T) {
	ctx := context.Background()
	store := dbtest.Open(t)
	imp := NewManualImporter(store)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "r1.pdf"), []byte("%PDF"), 0644))

	_, err := imp.Import(ctx, ManualDocument{Name: "r1", Data: []byte(r1Doc), PDFDir: dir})
	require.NoError(t, err)

	c, err := store.GetCollection(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "r1.pdf"), c.PDFPath)

	_, err = imp.Import(ctx, ManualDocument{Name: "r1", Data: []byte(r1Doc), PDFDir: t.TempDir()})
	require.NoError(t, err)
	c, err = store.GetCollection(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, c.PDFPath)
}

func TestSearchText(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		blocks []document.Content
		want   string
	}{
		{"title only", "Intro", nil, "Intro "},
		{"specification", "Specs", []document.Content{document.Specification{Label: "Power", Value: "10W"}}, "Specs Power 10W "},
		{
			"table without headers",
			"Bands",
			[]document.Content{document.SpecificationTable{Headers: []string{"Band", "Power"}, Rows: [][]string{{"80m", "10W"}}}},
			"Bands 80m 10W ",
		},
		{
			"mixed",
			"Ops",
			[]document.Content{
				document.Paragraph{Text: "Tap BAND"},
				document.Warning{Text: "No antenna"},
			},
			"Ops Tap BAND No antenna ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SearchText(tt.title, tt.blocks))
		})
	}
}

func TestBuildSections_DefaultSortOrderIsPosition(t *testing.T) {
	five := 5
	manual := &document.Manual{
		Radio: document.Radio{ID: "r1"},
		Sections: []document.Section{
			{ID: "a", Title: "A"},
			{ID: "b", Title: "B", SortOrder: &five},
			{ID: "c", Title: "C"},
		},
	}

	rows := BuildSections("r1", manual)
	require.Len(t, rows, 3)
	assert.Equal(t, 0, rows[0].SortOrder)
	assert.Equal(t, 5, rows[1].SortOrder)
	assert.Equal(t, 2, rows[2].SortOrder)
	assert.Equal(t, "r1-c", rows[2].ID)
}
