package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vonshlovens/fieldguide/internal/document"
)

const collectionColumns = `
	id, manufacturer, model, revision, pdf_filename, pdf_path,
	is_downloaded, downloaded_at, is_favorite, content_hash, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (*Collection, error) {
	c := &Collection{}
	var downloadedAt sql.NullTime
	if err := row.Scan(
		&c.ID, &c.Manufacturer, &c.Model, &c.Revision, &c.PDFFilename, &c.PDFPath,
		&c.IsDownloaded, &downloadedAt, &c.IsFavorite, &c.ContentHash, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if downloadedAt.Valid {
		t := downloadedAt.Time
		c.DownloadedAt = &t
	}
	return c, nil
}

// GetCollection retrieves a collection by id
func (s queries) GetCollection(ctx context.Context, id string) (*Collection, error) {
	c, err := scanCollection(s.queryRow(ctx,
		"SELECT"+collectionColumns+" FROM collections WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// InsertCollection creates a collection row. User-owned flags start false
// and the collection is not downloaded until its children are written.
func (s queries) InsertCollection(ctx context.Context, c *Collection) error {
	_, err := s.exec(ctx, `
		INSERT INTO collections (
			id, manufacturer, model, revision, pdf_filename, pdf_path,
			is_downloaded, downloaded_at, is_favorite, content_hash, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, FALSE, NULL, FALSE, ?, ?)
	`,
		c.ID, c.Manufacturer, c.Model, c.Revision, c.PDFFilename, c.PDFPath,
		c.ContentHash, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert collection %s: %w", c.ID, err)
	}
	return nil
}

// UpdateCollectionMetadata overwrites the document-owned fields of an
// existing collection. is_favorite is never written here.
func (s queries) UpdateCollectionMetadata(ctx context.Context, c *Collection) error {
	res, err := s.exec(ctx, `
		UPDATE collections SET
			manufacturer = ?,
			model = ?,
			revision = ?,
			pdf_filename = ?,
			pdf_path = ?,
			content_hash = ?,
			updated_at = ?
		WHERE id = ?
	`,
		c.Manufacturer, c.Model, c.Revision, c.PDFFilename, c.PDFPath,
		c.ContentHash, time.Now().UTC(), c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update collection %s: %w", c.ID, err)
	}
	return expectOne(res, "collection", c.ID)
}

// MarkDownloaded flags a collection as downloaded at the given time
func (s queries) MarkDownloaded(ctx context.Context, id string, at time.Time) error {
	res, err := s.exec(ctx,
		"UPDATE collections SET is_downloaded = TRUE, downloaded_at = ? WHERE id = ?",
		at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark collection %s downloaded: %w", id, err)
	}
	return expectOne(res, "collection", id)
}

// SetFavorite sets the user-owned favorite flag
func (s queries) SetFavorite(ctx context.Context, id string, favorite bool) error {
	res, err := s.exec(ctx, "UPDATE collections SET is_favorite = ? WHERE id = ?", favorite, id)
	if err != nil {
		return err
	}
	return expectOne(res, "collection", id)
}

// ToggleFavorite flips the favorite flag and returns the new value
func (s queries) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	res, err := s.exec(ctx, "UPDATE collections SET is_favorite = NOT is_favorite WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	if err := expectOne(res, "collection", id); err != nil {
		return false, err
	}

	var favorite bool
	if err := s.queryRow(ctx, "SELECT is_favorite FROM collections WHERE id = ?", id).Scan(&favorite); err != nil {
		return false, err
	}
	return favorite, nil
}

// ListCollections returns collections ordered by manufacturer and model
func (s queries) ListCollections(ctx context.Context, filter CollectionFilter) ([]*Collection, error) {
	var where []string
	if filter.DownloadedOnly {
		where = append(where, "is_downloaded = TRUE")
	}
	if filter.FavoritesOnly {
		where = append(where, "is_favorite = TRUE")
	}

	query := "SELECT" + collectionColumns + " FROM collections"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY manufacturer, model, id"

	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var collections []*Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		collections = append(collections, c)
	}

	return collections, rows.Err()
}

// DownloadedCollectionIDs returns the ids of every downloaded collection
func (s queries) DownloadedCollectionIDs(ctx context.Context) ([]string, error) {
	rows, err := s.query(ctx, "SELECT id FROM collections WHERE is_downloaded = TRUE ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// GetAllContentHashes returns a map of collection id -> content_hash
func (s queries) GetAllContentHashes(ctx context.Context) (map[string]string, error) {
	rows, err := s.query(ctx, "SELECT id, content_hash FROM collections")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, err
		}
		hashes[id] = hash
	}

	return hashes, rows.Err()
}

// DeleteSections removes every section of a collection. Blocks go with
// them through the foreign key cascade.
func (s queries) DeleteSections(ctx context.Context, collectionID string) (int64, error) {
	res, err := s.exec(ctx, "DELETE FROM sections WHERE collection_id = ?", collectionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sections of %s: %w", collectionID, err)
	}
	return res.RowsAffected()
}

// MatchText lowercases a section's title and search text for matching
func MatchText(title, searchText string) string {
	return strings.ToLower(title + " " + searchText)
}

// InsertSection creates a section row. An empty MatchText is derived from
// the title and search text.
func (s queries) InsertSection(ctx context.Context, sec *Section) error {
	match := sec.MatchText
	if match == "" {
		match = MatchText(sec.Title, sec.SearchText)
	}

	_, err := s.exec(ctx, `
		INSERT INTO sections (id, collection_id, title, sort_order, search_text, match_text)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sec.ID, sec.CollectionID, sec.Title, sec.SortOrder, sec.SearchText, match)
	if err != nil {
		return fmt.Errorf("failed to insert section %s: %w", sec.ID, err)
	}
	return nil
}

// InsertBlock creates a block row. The payload holds only the fields of
// the block's variant.
func (s queries) InsertBlock(ctx context.Context, b *Block) error {
	payload, err := document.MarshalPayload(b.Content)
	if err != nil {
		return fmt.Errorf("failed to encode block %s: %w", b.ID, err)
	}

	_, err = s.exec(ctx, `
		INSERT INTO blocks (id, section_id, sort_order, block_type, payload)
		VALUES (?, ?, ?, ?, ?)
	`, b.ID, b.SectionID, b.SortOrder, string(b.Content.Type()), string(payload))
	if err != nil {
		return fmt.Errorf("failed to insert block %s: %w", b.ID, err)
	}
	return nil
}

// ListSections returns a collection's sections in sort order
func (s queries) ListSections(ctx context.Context, collectionID string) ([]*Section, error) {
	rows, err := s.query(ctx, `
		SELECT id, collection_id, title, sort_order, search_text
		FROM sections WHERE collection_id = ?
		ORDER BY sort_order, id
	`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []*Section
	for rows.Next() {
		sec := &Section{}
		if err := rows.Scan(&sec.ID, &sec.CollectionID, &sec.Title, &sec.SortOrder, &sec.SearchText); err != nil {
			return nil, err
		}
		sections = append(sections, sec)
	}

	return sections, rows.Err()
}

// ListBlocks returns a section's blocks in sort order with decoded content
func (s queries) ListBlocks(ctx context.Context, sectionID string) ([]*Block, error) {
	rows, err := s.query(ctx, `
		SELECT id, section_id, sort_order, block_type, payload
		FROM blocks WHERE section_id = ?
		ORDER BY sort_order
	`, sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []*Block
	for rows.Next() {
		b := &Block{}
		var blockType, payload string
		if err := rows.Scan(&b.ID, &b.SectionID, &b.SortOrder, &blockType, &payload); err != nil {
			return nil, err
		}

		b.Type = document.BlockType(blockType)
		b.Content, err = document.UnmarshalPayload(b.Type, []byte(payload))
		if err != nil {
			return nil, fmt.Errorf("block %s: %w", b.ID, err)
		}
		blocks = append(blocks, b)
	}

	return blocks, rows.Err()
}

// GetStatus returns row counts across the store
func (s queries) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{Connected: true}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM collections", &status.Collections},
		{"SELECT COUNT(*) FROM collections WHERE is_downloaded = TRUE", &status.Downloaded},
		{"SELECT COUNT(*) FROM collections WHERE is_favorite = TRUE", &status.Favorites},
		{"SELECT COUNT(*) FROM sections", &status.Sections},
		{"SELECT COUNT(*) FROM blocks", &status.Blocks},
		{"SELECT COUNT(*) FROM checklists", &status.Checklists},
		{"SELECT COUNT(*) FROM checklist_items", &status.ChecklistItems},
		{"SELECT COUNT(*) FROM checklist_items WHERE is_checked = TRUE", &status.CheckedItems},
	}
	for _, c := range counts {
		if err := s.queryRow(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count rows: %w", err)
		}
	}

	// ORDER BY instead of MAX keeps the column type, which the SQLite
	// driver needs to return a time.Time
	var last time.Time
	err := s.queryRow(ctx, "SELECT finished_at FROM import_runs ORDER BY finished_at DESC LIMIT 1").Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to read last import time: %w", err)
	default:
		status.LastImportTime = &last
	}

	return status, nil
}
