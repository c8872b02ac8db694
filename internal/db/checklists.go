package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vonshlovens/fieldguide/internal/document"
)

// InsertChecklistIfAbsent creates the checklist unless a row with the same
// id already exists. It reports whether a row was created; an existing
// checklist is left untouched, metadata included.
func (s queries) InsertChecklistIfAbsent(ctx context.Context, c *Checklist) (bool, error) {
	res, err := s.exec(ctx, `
		INSERT INTO checklists (id, title, phase, sort_order)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, c.ID, c.Title, string(c.Phase), c.SortOrder)
	if err != nil {
		return false, fmt.Errorf("failed to insert checklist %s: %w", c.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// InsertChecklistItem creates a checklist item row
func (s queries) InsertChecklistItem(ctx context.Context, item *ChecklistItem) error {
	_, err := s.exec(ctx, `
		INSERT INTO checklist_items (id, checklist_id, text, sort_order, category, radio_id, is_checked)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.ChecklistID, item.Text, item.SortOrder, item.Category, item.RadioID, item.IsChecked)
	if err != nil {
		return fmt.Errorf("failed to insert checklist item %s: %w", item.ID, err)
	}
	return nil
}

// DeleteChecklists removes the given checklists and, by cascade, their
// items. With no ids every checklist is deleted.
func (s queries) DeleteChecklists(ctx context.Context, ids ...string) (int64, error) {
	query := "DELETE FROM checklists"
	args := make([]any, 0, len(ids))
	if len(ids) > 0 {
		query += " WHERE id IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ") + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}

	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete checklists: %w", err)
	}
	return res.RowsAffected()
}

func scanChecklist(row rowScanner) (*Checklist, error) {
	c := &Checklist{}
	var phase string
	if err := row.Scan(&c.ID, &c.Title, &phase, &c.SortOrder); err != nil {
		return nil, err
	}
	c.Phase = document.Phase(phase)
	return c, nil
}

// GetChecklist retrieves a checklist by id
func (s queries) GetChecklist(ctx context.Context, id string) (*Checklist, error) {
	c, err := scanChecklist(s.queryRow(ctx,
		"SELECT id, title, phase, sort_order FROM checklists WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// GetChecklistByPhase retrieves the checklist materialized for a phase
func (s queries) GetChecklistByPhase(ctx context.Context, phase document.Phase) (*Checklist, error) {
	c, err := scanChecklist(s.queryRow(ctx,
		"SELECT id, title, phase, sort_order FROM checklists WHERE phase = ?", string(phase)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// ListChecklists returns every checklist in sort order
func (s queries) ListChecklists(ctx context.Context) ([]*Checklist, error) {
	rows, err := s.query(ctx, "SELECT id, title, phase, sort_order FROM checklists ORDER BY sort_order, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checklists []*Checklist
	for rows.Next() {
		c, err := scanChecklist(rows)
		if err != nil {
			return nil, err
		}
		checklists = append(checklists, c)
	}

	return checklists, rows.Err()
}

// ListChecklistItems returns a checklist's stored items in sort order,
// regardless of visibility
func (s queries) ListChecklistItems(ctx context.Context, checklistID string) ([]*ChecklistItem, error) {
	rows, err := s.query(ctx, `
		SELECT id, checklist_id, text, sort_order, category, radio_id, is_checked
		FROM checklist_items WHERE checklist_id = ?
		ORDER BY sort_order
	`, checklistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*ChecklistItem
	for rows.Next() {
		item := &ChecklistItem{}
		var radioID sql.NullString
		if err := rows.Scan(
			&item.ID, &item.ChecklistID, &item.Text, &item.SortOrder,
			&item.Category, &radioID, &item.IsChecked,
		); err != nil {
			return nil, err
		}
		if radioID.Valid {
			id := radioID.String
			item.RadioID = &id
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// SetItemChecked sets the user-owned check mark of one item
func (s queries) SetItemChecked(ctx context.Context, itemID string, checked bool) error {
	res, err := s.exec(ctx, "UPDATE checklist_items SET is_checked = ? WHERE id = ?", checked, itemID)
	if err != nil {
		return err
	}
	return expectOne(res, "checklist item", itemID)
}

// ToggleItemChecked flips an item's check mark and returns the new value
func (s queries) ToggleItemChecked(ctx context.Context, itemID string) (bool, error) {
	res, err := s.exec(ctx, "UPDATE checklist_items SET is_checked = NOT is_checked WHERE id = ?", itemID)
	if err != nil {
		return false, err
	}
	if err := expectOne(res, "checklist item", itemID); err != nil {
		return false, err
	}

	var checked bool
	if err := s.queryRow(ctx, "SELECT is_checked FROM checklist_items WHERE id = ?", itemID).Scan(&checked); err != nil {
		return false, err
	}
	return checked, nil
}

// UncheckAll clears every check mark of a checklist without touching its
// structure. It returns the number of items that were checked.
func (s queries) UncheckAll(ctx context.Context, checklistID string) (int64, error) {
	res, err := s.exec(ctx,
		"UPDATE checklist_items SET is_checked = FALSE WHERE checklist_id = ? AND is_checked = TRUE",
		checklistID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
