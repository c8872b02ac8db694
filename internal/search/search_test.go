package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vonshlovens/fieldguide/internal/db"
	"github.com/vonshlovens/fieldguide/internal/db/dbtest"
	"github.com/vonshlovens/fieldguide/internal/importer"
)

type countingStore struct {
	calls  int
	needle string
}

func (c *countingStore) SearchSections(_ context.Context, needle string, _ db.SearchFilter) ([]*db.SectionMatch, error) {
	c.calls++
	c.needle = needle
	return nil, nil
}

func TestSearch_ShortQueryPrompts(t *testing.T) {
	store := &countingStore{}
	s := New(store)

	for _, q := range []string{"", "a", "  a  ", "é"} {
		res, err := s.Search(context.Background(), q, Scope{})
		require.NoError(t, err)
		assert.Equal(t, StatePrompt, res.State, "query %q", q)
	}
	assert.Zero(t, store.calls, "short queries must not reach the store")

	res, err := s.Search(context.Background(), "ab", Scope{})
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, res.State)
	assert.Equal(t, 1, store.calls)
}

func TestSearch_TrimsQuery(t *testing.T) {
	store := &countingStore{}
	s := New(store)

	res, err := s.Search(context.Background(), "\t ab \n", Scope{})
	require.NoError(t, err)
	assert.Equal(t, "ab", res.Query)
	assert.Equal(t, "ab", store.needle)
	assert.Equal(t, 1, store.calls)
}

func importManual(t *testing.T, store *db.DB, doc string) {
	t.Helper()
	_, err := importer.NewManualImporter(store).Import(context.Background(), importer.ManualDocument{Name: "test", Data: []byte(doc)})
	require.NoError(t, err)
}

func TestSearch_Store(t *testing.T) {
	ctx := context.Background()
	store := dbtest.Open(t)

	importManual(t, store, `{"radio":{"id":"elecraft-kx2","manufacturer":"Elecraft","model":"KX2","revision":"A","pdfFilename":"kx2.pdf"},
		"sections":[
			{"id":"specs","title":"Specifications","sortOrder":2,"blocks":[{"type":"specification","name":"Power","value":"10W"}]},
			{"id":"ops","title":"Operation","sortOrder":1,"blocks":[{"type":"paragraph","text":"Set POWER with the knob"}]}
		]}`)
	importManual(t, store, `{"radio":{"id":"icom-705","manufacturer":"Icom","model":"IC-705","revision":"A","pdfFilename":"705.pdf"},
		"sections":[{"id":"specs","title":"Specs","blocks":[{"type":"specificationTable","headers":["Mode","Power"],"rows":[["SSB","10W"]]}]}]}`)

	s := New(store)

	res, err := s.Search(ctx, "po", Scope{})
	require.NoError(t, err)
	assert.Equal(t, StateResults, res.State)
	var ids []string
	for _, m := range res.Matches {
		ids = append(ids, m.ID)
	}
	// Ordered by collection, then section sort order
	assert.Equal(t, []string{"elecraft-kx2-ops", "elecraft-kx2-specs"}, ids,
		"table headers are not searchable")

	groups := res.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, "Elecraft KX2", groups[0].Title)

	res, err = s.Search(ctx, "10w", Scope{CollectionID: "icom-705"})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "icom-705-specs", res.Matches[0].ID)

	res, err = s.Search(ctx, "10w", Scope{FavoritesOnly: true})
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, res.State)

	res, err = s.Search(ctx, "zz", Scope{})
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, res.State)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "prompt", StatePrompt.String())
	assert.Equal(t, "results", StateResults.String())
}
