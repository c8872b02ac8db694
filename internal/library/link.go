package library

import (
	"context"
	"fmt"
)

// LinkKind names what a deep link points at
type LinkKind string

const (
	LinkCollection LinkKind = "collection"
	LinkChecklist  LinkKind = "checklist"
)

// LinkRequest is a navigation request handed in by the caller, e.g. parsed
// from fieldguide://checklist/pre-outing
type LinkRequest struct {
	Kind LinkKind
	// ID is a collection id or a checklist phase path component
	ID string
}

// LinkTarget is the resolved destination. Exactly one field is set.
type LinkTarget struct {
	Collection *CollectionTarget
	Checklist  *ChecklistView
}

// CollectionTarget is a collection with its sections
type CollectionTarget struct {
	ID       string
	Title    string
	Sections []SectionView
}

// Resolve looks up the destination of a link. Unknown targets return
// db.ErrNotFound.
func (l *Library) Resolve(ctx context.Context, req LinkRequest) (*LinkTarget, error) {
	switch req.Kind {
	case LinkCollection:
		c, err := l.FindCollection(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		sections, err := l.Sections(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		return &LinkTarget{Collection: &CollectionTarget{
			ID:       c.ID,
			Title:    c.DisplayName(),
			Sections: sections,
		}}, nil

	case LinkChecklist:
		c, err := l.FindChecklistByPath(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		view, err := l.ChecklistView(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		return &LinkTarget{Checklist: view}, nil

	default:
		return nil, fmt.Errorf("unsupported link kind %q", req.Kind)
	}
}
