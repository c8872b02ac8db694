package db

import (
	"context"
	"strings"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE wildcards so s matches literally
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// SearchSections returns sections of downloaded collections whose title or
// search text contains needle, case-insensitively. Both sides are folded
// with strings.ToLower so non-ASCII text matches the same on every dialect.
// Results are ordered by collection and then by section sort order.
func (s queries) SearchSections(ctx context.Context, needle string, filter SearchFilter) ([]*SectionMatch, error) {
	pattern := "%" + EscapeLike(strings.ToLower(needle)) + "%"

	query := `
		SELECT s.id, s.collection_id, s.title, s.sort_order, s.search_text,
			c.manufacturer, c.model
		FROM sections s
		JOIN collections c ON c.id = s.collection_id
		WHERE c.is_downloaded = TRUE
			AND s.match_text LIKE ? ESCAPE '\'`
	args := []any{pattern}

	if filter.CollectionID != "" {
		query += " AND c.id = ?"
		args = append(args, filter.CollectionID)
	}
	if filter.FavoritesOnly {
		query += " AND c.is_favorite = TRUE"
	}
	query += " ORDER BY c.manufacturer, c.model, c.id, s.sort_order, s.id"

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*SectionMatch
	for rows.Next() {
		m := &SectionMatch{}
		if err := rows.Scan(
			&m.ID, &m.CollectionID, &m.Title, &m.SortOrder, &m.SearchText,
			&m.Manufacturer, &m.Model,
		); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}

	return matches, rows.Err()
}
