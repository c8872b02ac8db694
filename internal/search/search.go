// Package search runs substring queries over imported sections
package search

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/vonshlovens/fieldguide/internal/db"
)

// MinQueryLength is the number of characters needed before a query runs
const MinQueryLength = 2

// State is the user-visible outcome of a search
type State int

const (
	// StatePrompt means the query is too short and was not run
	StatePrompt State = iota
	// StateEmpty means the query ran and matched nothing
	StateEmpty
	// StateResults means the query matched at least one section
	StateResults
)

func (s State) String() string {
	switch s {
	case StatePrompt:
		return "prompt"
	case StateEmpty:
		return "empty"
	case StateResults:
		return "results"
	default:
		return "unknown"
	}
}

// Scope restricts which collections are searched. The zero value searches
// every downloaded collection.
type Scope struct {
	CollectionID  string
	FavoritesOnly bool
}

// Store is the query surface a Searcher needs
type Store interface {
	SearchSections(ctx context.Context, needle string, filter db.SearchFilter) ([]*db.SectionMatch, error)
}

// Result is the outcome of one search
type Result struct {
	Query   string
	State   State
	Matches []*db.SectionMatch
}

// Group is the matches of one collection
type Group struct {
	CollectionID string
	Title        string
	Matches      []*db.SectionMatch
}

// Groups splits matches by collection, keeping store order
func (r *Result) Groups() []Group {
	var groups []Group
	for _, m := range r.Matches {
		if n := len(groups); n > 0 && groups[n-1].CollectionID == m.CollectionID {
			groups[n-1].Matches = append(groups[n-1].Matches, m)
			continue
		}
		groups = append(groups, Group{
			CollectionID: m.CollectionID,
			Title:        strings.TrimSpace(m.Manufacturer + " " + m.Model),
			Matches:      []*db.SectionMatch{m},
		})
	}
	return groups
}

// Searcher runs gated queries against a Store
type Searcher struct {
	store Store
}

// New creates a Searcher
func New(store Store) *Searcher {
	return &Searcher{store: store}
}

// Search returns every section of a downloaded collection in scope whose
// title or search text contains query, ignoring case. Surrounding
// whitespace is trimmed first; the trimmed query is what is matched and what
// must reach MinQueryLength characters; shorter ones return StatePrompt
// without touching the store.
func (s *Searcher) Search(ctx context.Context, query string, scope Scope) (*Result, error) {
	query = strings.TrimSpace(query)
	result := &Result{Query: query, State: StatePrompt}

	if utf8.RuneCountInString(query) < MinQueryLength {
		return result, nil
	}

	matches, err := s.store.SearchSections(ctx, query, db.SearchFilter{
		CollectionID:  scope.CollectionID,
		FavoritesOnly: scope.FavoritesOnly,
	})
	if err != nil {
		return nil, err
	}

	result.Matches = matches
	result.State = StateEmpty
	if len(matches) > 0 {
		result.State = StateResults
	}
	return result, nil
}
