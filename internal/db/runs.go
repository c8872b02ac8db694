package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// InsertImportRun records an import attempt. A zero ID is replaced with a
// fresh uuid.
func (s queries) InsertImportRun(ctx context.Context, run *ImportRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	_, err := s.exec(ctx, `
		INSERT INTO import_runs (id, kind, target, content_hash, outcome, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID.String(), run.Kind, run.Target, run.ContentHash, run.Outcome,
		run.Error, run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record import run: %w", err)
	}
	return nil
}

// LastImportRuns returns the most recent run per target, ordered by target
func (s queries) LastImportRuns(ctx context.Context) ([]*ImportRun, error) {
	rows, err := s.query(ctx, `
		SELECT r.id, r.kind, r.target, r.content_hash, r.outcome, r.error, r.started_at, r.finished_at
		FROM import_runs r
		WHERE r.finished_at = (
			SELECT MAX(finished_at) FROM import_runs WHERE target = r.target
		)
		ORDER BY r.kind, r.target
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*ImportRun
	for rows.Next() {
		run := &ImportRun{}
		var id string
		var runErr sql.NullString
		if err := rows.Scan(
			&id, &run.Kind, &run.Target, &run.ContentHash, &run.Outcome,
			&runErr, &run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, err
		}

		run.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid import run id %q: %w", id, err)
		}
		if runErr.Valid {
			msg := runErr.String
			run.Error = &msg
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
