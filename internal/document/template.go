package document

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Phase is one of the five fixed checklist phases
type Phase string

const (
	PhasePreOuting    Phase = "pre-outing"
	PhaseDuringOuting Phase = "during-outing"
	PhaseDebugging    Phase = "debugging"
	PhaseCleanup      Phase = "cleanup"
	PhasePostOuting   Phase = "post-outing"
)

// Phases lists every phase in outing order
var Phases = []Phase{
	PhasePreOuting,
	PhaseDuringOuting,
	PhaseDebugging,
	PhaseCleanup,
	PhasePostOuting,
}

var phaseTitles = map[Phase]string{
	PhasePreOuting:    "Pre-Outing",
	PhaseDuringOuting: "During Outing",
	PhaseDebugging:    "Debugging",
	PhaseCleanup:      "Cleanup",
	PhasePostOuting:   "Post-Outing",
}

// ParsePhase resolves an external phase id or deep-link path component.
// Matching ignores case, hyphens and underscores, so "pre-outing",
// "preOuting" and "PRE_OUTING" all resolve. Unknown ids return false.
func ParsePhase(s string) (Phase, bool) {
	key := normalizePhaseKey(s)
	if key == "" {
		return "", false
	}
	for _, p := range Phases {
		if normalizePhaseKey(string(p)) == key {
			return p, true
		}
	}
	return "", false
}

func normalizePhaseKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "")
	return strings.ReplaceAll(s, "_", "")
}

// Title returns the display title of the phase
func (p Phase) Title() string {
	if t, ok := phaseTitles[p]; ok {
		return t
	}
	return string(p)
}

// Template is a decoded checklist template document
type Template struct {
	Checklists []ChecklistTemplate
}

// ChecklistTemplate is one checklist entry of a template. Phase is kept as
// written so that newer, unknown phases can be skipped by the importer.
type ChecklistTemplate struct {
	ID        string
	Title     string
	Phase     string
	SortOrder int
	Groups    []ItemGroup
}

// ItemGroup is a category of checklist entries, optionally scoped to a radio
type ItemGroup struct {
	Category string
	RadioID  string // empty when the group applies to every radio
	Entries  []string
}

// EntryCount returns the number of item texts across all groups
func (c *ChecklistTemplate) EntryCount() int {
	n := 0
	for _, g := range c.Groups {
		n += len(g.Entries)
	}
	return n
}

type rawTemplate struct {
	Checklists *[]rawChecklist `json:"checklists"`
}

type rawChecklist struct {
	ID        *string         `json:"id"`
	Title     *string         `json:"title"`
	Phase     *string         `json:"phase"`
	SortOrder *int            `json:"sortOrder"`
	Items     *[]rawItemGroup `json:"items"`
}

type rawItemGroup struct {
	Category *string   `json:"category"`
	RadioID  *string   `json:"radioId"`
	Entries  *[]string `json:"entries"`
}

// ParseTemplate parses a checklist template document. Every required field
// must be present on every entry, including entries whose phase this
// version does not know.
func ParseTemplate(data []byte) (*Template, error) {
	var raw rawTemplate
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, parseErr("", fmt.Errorf("%w: %v", ErrMalformed, err))
	}
	if raw.Checklists == nil {
		return nil, missing("", "checklists")
	}

	tmpl := &Template{Checklists: make([]ChecklistTemplate, 0, len(*raw.Checklists))}
	for i, rc := range *raw.Checklists {
		path := indexPath("checklists", i)

		switch {
		case rc.ID == nil || *rc.ID == "":
			return nil, missing(path, "id")
		case rc.Title == nil:
			return nil, missing(path, "title")
		case rc.Phase == nil || *rc.Phase == "":
			return nil, missing(path, "phase")
		case rc.SortOrder == nil:
			return nil, missing(path, "sortOrder")
		case rc.Items == nil:
			return nil, missing(path, "items")
		}

		cl := ChecklistTemplate{
			ID:        *rc.ID,
			Title:     *rc.Title,
			Phase:     *rc.Phase,
			SortOrder: *rc.SortOrder,
			Groups:    make([]ItemGroup, 0, len(*rc.Items)),
		}

		for j, rg := range *rc.Items {
			groupPath := indexPath(joinPath(path, "items"), j)
			if rg.Category == nil {
				return nil, missing(groupPath, "category")
			}
			if rg.Entries == nil {
				return nil, missing(groupPath, "entries")
			}

			group := ItemGroup{
				Category: *rg.Category,
				Entries:  *rg.Entries,
			}
			if rg.RadioID != nil {
				group.RadioID = strings.TrimSpace(*rg.RadioID)
			}
			cl.Groups = append(cl.Groups, group)
		}

		tmpl.Checklists = append(tmpl.Checklists, cl)
	}

	return tmpl, nil
}
