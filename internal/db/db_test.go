package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vonshlovens/fieldguide/internal/db"
	"github.com/vonshlovens/fieldguide/internal/db/dbtest"
	"github.com/vonshlovens/fieldguide/internal/document"
)

func seedCollection(t *testing.T, store *db.DB, id, model string, downloaded bool) {
	t.Helper()
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx *db.Tx) error {
		if err := tx.InsertCollection(ctx, &db.Collection{
			ID: id, Manufacturer: "Elecraft", Model: model, Revision: "A", PDFFilename: id + ".pdf",
		}); err != nil {
			return err
		}
		if err := tx.InsertSection(ctx, &db.Section{
			ID: id + "-specs", CollectionID: id, Title: "Specifications", SortOrder: 0,
			SearchText: "Specifications Power 10W ",
		}); err != nil {
			return err
		}
		if err := tx.InsertBlock(ctx, &db.Block{
			ID: id + "-specs-block-0", SectionID: id + "-specs", SortOrder: 0,
			Content: document.Specification{Label: "Power", Value: "10W"},
		}); err != nil {
			return err
		}
		if downloaded {
			return tx.MarkDownloaded(ctx, id, time.Now())
		}
		return nil
	})
	require.NoError(t, err)
}

func TestCollectionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := dbtest.Open(t)

	got, err := store.GetCollection(ctx, "elecraft-kx2")
	require.NoError(t, err)
	assert.Nil(t, got)

	seedCollection(t, store, "elecraft-kx2", "KX2", true)

	got, err = store.GetCollection(ctx, "elecraft-kx2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Elecraft KX2", got.DisplayName())
	assert.True(t, got.IsDownloaded)
	assert.NotNil(t, got.DownloadedAt)
	assert.False(t, got.IsFavorite)

	fav, err := store.ToggleFavorite(ctx, "elecraft-kx2")
	require.NoError(t, err)
	assert.True(t, fav)

	got.Revision = "B"
	require.NoError(t, store.UpdateCollectionMetadata(ctx, got))

	got, err = store.GetCollection(ctx, "elecraft-kx2")
	require.NoError(t, err)
	assert.Equal(t, "B", got.Revision)
	assert.True(t, got.IsFavorite, "metadata update must not touch the favorite flag")

	err = store.SetFavorite(ctx, "missing", true)
	assert.True(t, errors.Is(err, db.ErrNotFound))
}

func TestDeleteSectionsCascadesToBlocks(t *testing.T) {
	ctx := context.Background()
	store := dbtest.Open(t)
	seedCollection(t, store, "r1", "X", true)

	blocks, err := store.ListBlocks(ctx, "r1-specs")
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, document.Specification{Label: "Power", Value: "10W"}, blocks[0].Content)
	assert.Equal(t, document.BlockSpecification, blocks[0].Type)

	n, err := store.DeleteSections(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	blocks, err = store.ListBlocks(ctx, "r1-specs")
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := dbtest.Open(t)

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx *db.Tx) error {
		if err := tx.InsertCollection(ctx, &db.Collection{ID: "r1", Model: "X"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.GetCollection(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPingAndDialect(t *testing.T) {
	store := dbtest.Open(t)
	require.NoError(t, store.Ping(context.Background()))
	assert.Equal(t, db.DialectSQLite, store.Dialect())
}

func TestSearchSections(t *testing.T) {
	ctx := context.Background()
	store := dbtest.Open(t)
	seedCollection(t, store, "elecraft-kx2", "KX2", true)
	seedCollection(t, store, "elecraft-kx3", "KX3", true)
	seedCollection(t, store, "icom-705", "IC-705", false)

	matches, err := store.SearchSections(ctx, "POWER", db.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "elecraft-kx2-specs", matches[0].ID)
	assert.Equal(t, "elecraft-kx3-specs", matches[1].ID)
	assert.Equal(t, "KX2", matches[0].Model)

	matches, err = store.SearchSections(ctx, "power", db.SearchFilter{CollectionID: "elecraft-kx3"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "elecraft-kx3", matches[0].CollectionID)

	matches, err = store.SearchSections(ctx, "power", db.SearchFilter{FavoritesOnly: true})
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = store.ToggleFavorite(ctx, "elecraft-kx2")
	require.NoError(t, err)
	matches, err = store.SearchSections(ctx, "power", db.SearchFilter{FavoritesOnly: true})
	require.NoError(t, err)
	require.Len(t, matches, 1)

	// Not downloaded is never returned, even when scoped to it
	matches, err = store.SearchSections(ctx, "power", db.SearchFilter{CollectionID: "icom-705"})
	require.NoError(t, err)
	assert.Empty(t, matches)

	// Wildcards match literally
	matches, err = store.SearchSections(ctx, "%", db.SearchFilter{})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSearchSections_NonASCII(t *testing.T) {
	ctx := context.Background()
	store := dbtest.Open(t)

	err := store.WithTx(ctx, func(tx *db.Tx) error {
		if err := tx.InsertCollection(ctx, &db.Collection{
			ID: "dl-qrp", Manufacturer: "Dänisch", Model: "QRP", Revision: "1", PDFFilename: "dl.pdf",
		}); err != nil {
			return err
		}
		if err := tx.InsertSection(ctx, &db.Section{
			ID: "dl-qrp-intro", CollectionID: "dl-qrp", Title: "Übersicht", SortOrder: 0,
			SearchText: "Übersicht Ämter ",
		}); err != nil {
			return err
		}
		return tx.MarkDownloaded(ctx, "dl-qrp", time.Now())
	})
	require.NoError(t, err)

	for _, needle := range []string{"Übersicht", "übersicht", "ÜBERSICHT", "Üb", "ämter"} {
		matches, err := store.SearchSections(ctx, needle, db.SearchFilter{})
		require.NoError(t, err)
		require.Len(t, matches, 1, needle)
		assert.Equal(t, "dl-qrp-intro", matches[0].ID)
	}
}

func TestMatchText(t *testing.T) {
	assert.Equal(t, "übersicht übersicht ämter ", db.MatchText("Übersicht", "Übersicht Ämter "))
}

func TestChecklistInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := dbtest.Open(t)

	pre := &db.Checklist{ID: "pre-outing", Title: "Pre-Outing", Phase: document.PhasePreOuting, SortOrder: 0}
	created, err := store.InsertChecklistIfAbsent(ctx, pre)
	require.NoError(t, err)
	assert.True(t, created)

	radio := "elecraft-kx2"
	require.NoError(t, store.InsertChecklistItem(ctx, &db.ChecklistItem{
		ID: "pre-outing-0", ChecklistID: "pre-outing", Text: "Charge battery", Category: "Power",
	}))
	require.NoError(t, store.InsertChecklistItem(ctx, &db.ChecklistItem{
		ID: "pre-outing-1", ChecklistID: "pre-outing", Text: "Check KX2", SortOrder: 1, Category: "Radio", RadioID: &radio,
	}))

	created, err = store.InsertChecklistIfAbsent(ctx, &db.Checklist{
		ID: "pre-outing", Title: "Renamed", Phase: document.PhasePreOuting, SortOrder: 7,
	})
	require.NoError(t, err)
	assert.False(t, created)

	got, err := store.GetChecklistByPhase(ctx, document.PhasePreOuting)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Pre-Outing", got.Title)
	assert.Equal(t, 0, got.SortOrder)

	checked, err := store.ToggleItemChecked(ctx, "pre-outing-1")
	require.NoError(t, err)
	assert.True(t, checked)

	items, err := store.ListChecklistItems(ctx, "pre-outing")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Nil(t, items[0].RadioID)
	require.NotNil(t, items[1].RadioID)
	assert.Equal(t, "elecraft-kx2", *items[1].RadioID)
	assert.True(t, items[1].IsChecked)

	n, err := store.UncheckAll(ctx, "pre-outing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	deleted, err := store.DeleteChecklists(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	items, err = store.ListChecklistItems(ctx, "pre-outing")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestImportRuns(t *testing.T) {
	ctx := context.Background()
	store := dbtest.Open(t)

	start := time.Now().Add(-time.Minute)
	msg := "sections[0].blocks[0].type: unknown block type"
	require.NoError(t, store.InsertImportRun(ctx, &db.ImportRun{
		Kind: db.RunKindManual, Target: "r1", ContentHash: "aaa", Outcome: db.OutcomeOK,
		StartedAt: start, FinishedAt: start.Add(time.Second),
	}))
	require.NoError(t, store.InsertImportRun(ctx, &db.ImportRun{
		Kind: db.RunKindManual, Target: "r1", ContentHash: "bbb", Outcome: db.OutcomeFailed, Error: &msg,
		StartedAt: start.Add(10 * time.Second), FinishedAt: start.Add(11 * time.Second),
	}))

	runs, err := store.LastImportRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, db.OutcomeFailed, runs[0].Outcome)
	require.NotNil(t, runs[0].Error)
	assert.Equal(t, msg, *runs[0].Error)

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	require.NotNil(t, status.LastImportTime)
}

func TestTryLock(t *testing.T) {
	store := dbtest.Open(t)

	unlock, ok := store.TryLock(db.CollectionLockKey("r1"))
	require.True(t, ok)

	_, ok = store.TryLock(db.CollectionLockKey("r1"))
	assert.False(t, ok, "same key must not be taken twice")

	unlock2, ok := store.TryLock(db.CollectionLockKey("r2"))
	require.True(t, ok, "different keys are independent")
	unlock2()

	unlock()
	unlock, ok = store.TryLock(db.CollectionLockKey("r1"))
	require.True(t, ok)
	unlock()
}

func TestLockHonorsContext(t *testing.T) {
	store := dbtest.Open(t)
	unlock, ok := store.TryLock(db.ChecklistsLockKey)
	require.True(t, ok)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := store.Lock(ctx, db.ChecklistsLockKey)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
