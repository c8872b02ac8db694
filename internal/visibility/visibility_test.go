package visibility

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vonshlovens/fieldguide/internal/db"
)

func radio(id string) *string { return &id }

func testItems() []*db.ChecklistItem {
	return []*db.ChecklistItem{
		{ID: "pre-outing-0", Text: "Charge battery", IsChecked: true},
		{ID: "pre-outing-1", Text: "Pack charger"},
		{ID: "pre-outing-2", Text: "Update KX2 firmware", RadioID: radio("elecraft-kx2"), IsChecked: true},
		{ID: "pre-outing-3", Text: "Update 705 firmware", RadioID: radio("icom-705")},
	}
}

func TestVisible(t *testing.T) {
	tests := []struct {
		name       string
		downloaded []string
		wantIDs    []string
		progress   string
	}{
		{"nothing downloaded", nil, []string{"pre-outing-0", "pre-outing-1"}, "1/2"},
		{"kx2 downloaded", []string{"elecraft-kx2"}, []string{"pre-outing-0", "pre-outing-1", "pre-outing-2"}, "2/3"},
		{"all downloaded", []string{"elecraft-kx2", "icom-705"}, []string{"pre-outing-0", "pre-outing-1", "pre-outing-2", "pre-outing-3"}, "2/4"},
		{"unrelated downloaded", []string{"yaesu-ft891"}, []string{"pre-outing-0", "pre-outing-1"}, "1/2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := NewDownloadedSet(tt.downloaded)

			var ids []string
			for _, item := range Visible(testItems(), set) {
				ids = append(ids, item.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.progress, ProgressOf(testItems(), set).String())
		})
	}
}

func TestComplete_IgnoresHiddenItems(t *testing.T) {
	items := []*db.ChecklistItem{
		{ID: "a", IsChecked: true},
		{ID: "b", RadioID: radio("elecraft-kx2")},
	}

	assert.True(t, ProgressOf(items, NewDownloadedSet(nil)).Complete(),
		"an unchecked item for a radio that is not downloaded must not block completion")
	assert.False(t, ProgressOf(items, NewDownloadedSet([]string{"elecraft-kx2"})).Complete())
}

func TestComplete_Empty(t *testing.T) {
	p := ProgressOf(nil, NewDownloadedSet(nil))
	assert.Equal(t, "0/0", p.String())
	assert.False(t, p.Complete())

	hidden := []*db.ChecklistItem{{ID: "a", RadioID: radio("x"), IsChecked: true}}
	assert.False(t, ProgressOf(hidden, NewDownloadedSet(nil)).Complete())
}
