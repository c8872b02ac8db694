package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/vonshlovens/fieldguide/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Dialect identifies the SQL backend
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ErrNotFound is returned by lookups and updates that match no row
var ErrNotFound = errors.New("not found")

// DB wraps the store connection pool. Read and single-statement write
// queries are available directly; multi-statement writes go through WithTx.
type DB struct {
	queries

	conn            *sql.DB
	config          *config.DatabaseConfig
	Schema          string
	locks           *keyLocks
	retryMaxElapsed time.Duration
}

// Tx is the query surface inside a transaction
type Tx struct {
	queries
}

// Option configures a DB
type Option func(*DB)

// WithRetryMaxElapsed bounds how long transient transaction failures
// (SQLite busy, Postgres serialization failures) are retried. Zero disables
// retries.
func WithRetryMaxElapsed(d time.Duration) Option {
	return func(db *DB) {
		db.retryMaxElapsed = d
	}
}

// New opens the configured store
func New(ctx context.Context, cfg *config.DatabaseConfig, opts ...Option) (*DB, error) {
	driver, dialect := "sqlite", DialectSQLite
	if cfg.IsPostgres() {
		driver, dialect = "pgx", DialectPostgres
	} else if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open(driver, cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == DialectPostgres {
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(2)
		conn.SetConnMaxLifetime(time.Hour)
		conn.SetConnMaxIdleTime(30 * time.Minute)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		queries:         queries{q: conn, dialect: dialect},
		conn:            conn,
		config:          cfg,
		Schema:          cfg.Schema,
		locks:           newKeyLocks(),
		retryMaxElapsed: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	slog.Info("connected to database",
		"driver", cfg.Driver,
		"path", cfg.Path,
		"host", cfg.Host,
		"schema", cfg.Schema)

	return db, nil
}

// Close closes the connection pool
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	err := db.conn.Close()
	slog.Debug("database connection closed")
	return err
}

// Ping checks if the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Dialect returns the SQL backend in use
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// EnsureSchema creates the Postgres schema if it doesn't exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	if db.dialect != DialectPostgres || db.Schema == "" {
		return nil
	}

	if _, err := db.conn.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", db.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", db.Schema, err)
	}
	return nil
}

// RunMigrations applies all pending embedded migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	provider, err := db.migrationProvider()
	if err != nil {
		return err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	for _, r := range results {
		slog.Info("applied migration",
			"version", r.Source.Version,
			"duration_ms", r.Duration.Milliseconds())
	}
	slog.Debug("migrations up to date", "applied", len(results))
	return nil
}

// MigrationStatus reports applied and pending migrations
func (db *DB) MigrationStatus(ctx context.Context) ([]*goose.MigrationStatus, error) {
	provider, err := db.migrationProvider()
	if err != nil {
		return nil, err
	}
	return provider.Status(ctx)
}

func (db *DB) migrationProvider() (*goose.Provider, error) {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	dialect := goose.DialectSQLite3
	if db.dialect == DialectPostgres {
		dialect = goose.DialectPostgres
	}

	provider, err := goose.NewProvider(dialect, db.conn, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return provider, nil
}

// WithTx runs fn in a single transaction. The transaction commits only if
// fn returns nil; any error rolls back everything fn wrote. Transient
// backend conflicts are retried with exponential backoff, so fn must not
// have side effects outside tx.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	var bo backoff.BackOff = &backoff.StopBackOff{}
	if db.retryMaxElapsed > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = 20 * time.Millisecond
		exp.MaxElapsedTime = db.retryMaxElapsed
		bo = exp
	}

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := db.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return backoff.Permanent(err)
		}
		slog.Debug("transaction conflict, retrying", "attempt", attempt, "error", err)
		return err
	}, backoff.WithContext(bo, ctx))
}

func (db *DB) runTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(&Tx{queries: queries{q: sqlTx, dialect: db.dialect}}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// isTransient reports whether err is a lock or serialization conflict that
// may succeed on retry
func isTransient(err error) bool {
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}

	return false
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every statement. SQL is written with ? placeholders and
// rebound to $n for Postgres.
type queries struct {
	q       querier
	dialect Dialect
}

func (s queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.rebind(query), args...)
}

func (s queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.rebind(query), args...)
}

func (s queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s queries) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// expectOne converts a zero-row update into ErrNotFound
func expectOne(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", what, id, ErrNotFound)
	}
	return nil
}
