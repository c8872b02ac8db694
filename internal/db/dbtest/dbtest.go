// Package dbtest opens throwaway SQLite stores for tests
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vonshlovens/fieldguide/internal/config"
	"github.com/vonshlovens/fieldguide/internal/db"
)

// Open returns a migrated store backed by a file in t.TempDir. It is closed
// when the test ends.
func Open(t testing.TB) *db.DB {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "fieldguide.db"),
	}

	ctx := context.Background()
	store, err := db.New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.RunMigrations(ctx))
	return store
}
