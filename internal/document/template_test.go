package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePhase(t *testing.T) {
	tests := []struct {
		input string
		want  Phase
		ok    bool
	}{
		{"pre-outing", PhasePreOuting, true},
		{"preOuting", PhasePreOuting, true},
		{"PRE_OUTING", PhasePreOuting, true},
		{"during-outing", PhaseDuringOuting, true},
		{"debugging", PhaseDebugging, true},
		{" Cleanup ", PhaseCleanup, true},
		{"postOuting", PhasePostOuting, true},
		{"field-day", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParsePhase(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhaseTitle(t *testing.T) {
	assert.Equal(t, "Pre-Outing", PhasePreOuting.Title())
	assert.Equal(t, "Cleanup", PhaseCleanup.Title())
	assert.Equal(t, "unknown", Phase("unknown").Title())
}

func TestParseTemplate(t *testing.T) {
	doc := `{
	  "checklists": [
	    {
	      "id": "pre-outing",
	      "title": "Pre-Outing",
	      "phase": "pre-outing",
	      "sortOrder": 0,
	      "items": [
	        {"category": "Power", "entries": ["Charge battery", "Pack charger"]},
	        {"category": "Radio", "radioId": "elecraft-kx2", "entries": ["Check KX2 firmware"]}
	      ]
	    },
	    {
	      "id": "field-day",
	      "title": "Field Day",
	      "phase": "field-day",
	      "sortOrder": 9,
	      "items": []
	    }
	  ]
	}`

	tmpl, err := ParseTemplate([]byte(doc))
	require.NoError(t, err)
	require.Len(t, tmpl.Checklists, 2)

	pre := tmpl.Checklists[0]
	assert.Equal(t, "pre-outing", pre.Phase)
	assert.Equal(t, 3, pre.EntryCount())
	assert.Equal(t, ItemGroup{Category: "Power", Entries: []string{"Charge battery", "Pack charger"}}, pre.Groups[0])
	assert.Equal(t, "elecraft-kx2", pre.Groups[1].RadioID)

	// Unknown phases survive parsing; the importer decides to skip them
	assert.Equal(t, "field-day", tmpl.Checklists[1].Phase)
}

func TestParseTemplate_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		path string
	}{
		{"no checklists", `{}`, "checklists"},
		{"no title", `{"checklists":[{"id":"a","phase":"cleanup","sortOrder":1,"items":[]}]}`, "checklists[0].title"},
		{"no sortOrder", `{"checklists":[{"id":"a","title":"A","phase":"cleanup","items":[]}]}`, "checklists[0].sortOrder"},
		{"no items", `{"checklists":[{"id":"a","title":"A","phase":"cleanup","sortOrder":1}]}`, "checklists[0].items"},
		{"no category", `{"checklists":[{"id":"a","title":"A","phase":"cleanup","sortOrder":1,"items":[{"entries":[]}]}]}`, "checklists[0].items[0].category"},
		{"no entries", `{"checklists":[{"id":"a","title":"A","phase":"cleanup","sortOrder":1,"items":[{"category":"X"}]}]}`, "checklists[0].items[0].entries"},
		{"unknown phase still validated", `{"checklists":[{"id":"a","title":"A","phase":"future","items":[]}]}`, "checklists[0].sortOrder"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTemplate([]byte(tt.doc))
			require.ErrorIs(t, err, ErrMissingField)

			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.path, perr.Path)
		})
	}
}

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(`{"version":1,"lastUpdated":"2026-01-02","radios":[{"id":"elecraft-kx2","model":"KX2","pdfSize":42}]}`))
	require.NoError(t, err)
	require.Len(t, m.Radios, 1)
	assert.Equal(t, int64(42), m.Radios[0].PDFSize)

	_, err = ParseManifest([]byte(`{"version":1,"radios":[{"model":"KX2"}]}`))
	require.ErrorIs(t, err, ErrMissingField)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "radios[0].id", perr.Path)
}
