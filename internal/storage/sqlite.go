package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/IshaanNene/newsgoat/internal/types"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SQLiteStore keeps records in a local SQLite database. The url column is
// the primary key, so the database itself enforces exactly-once ingestion.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore opens the database at path and applies pending migrations.
// The path ":memory:" opens a private in-memory database.
func NewSQLiteStore(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	memory := path == ":memory:"
	if !memory {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, &types.StorageError{Backend: "sqlite", Op: "open", Err: err}
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &types.StorageError{Backend: "sqlite", Op: "open", Err: err}
	}
	if memory {
		// Every connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, &types.StorageError{Backend: "sqlite", Op: "open", Err: fmt.Errorf("%s: %w", pragma, err)}
			}
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &types.StorageError{Backend: "sqlite", Op: "open", Err: err}
	}

	version, err := runMigrations(db)
	if err != nil {
		db.Close()
		return nil, &types.StorageError{Backend: "sqlite", Op: "migrate", Err: err}
	}

	s := &SQLiteStore{
		db:     db,
		path:   path,
		logger: logger.With("component", "sqlite_store"),
	}
	s.logger.Debug("sqlite store opened", "path", path, "schema_version", version)
	return s, nil
}

// runMigrations applies all pending migrations and returns the schema version.
func runMigrations(db *sql.DB) (uint, error) {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("failed to create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, nil
}

func (s *SQLiteStore) Name() string { return "sqlite" }

func (s *SQLiteStore) Exists(ctx context.Context, url string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM media WHERE url = ? LIMIT 1`, url).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &types.StorageError{Backend: "sqlite", Op: "exists", Err: err}
	}
	return true, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, rec *types.MediaRecord) error {
	regions, err := json.Marshal(types.MergeRegions(nil, rec.Regions))
	if err != nil {
		return &types.StorageError{Backend: "sqlite", Op: "insert", Err: err}
	}
	fetchedAt := rec.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO media (url, title, body, regions, source, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO NOTHING`,
		rec.URL, rec.Title, rec.Body, string(regions), rec.Source, fetchedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return &types.StorageError{Backend: "sqlite", Op: "insert", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &types.StorageError{Backend: "sqlite", Op: "insert", Err: err}
	}
	if n == 0 {
		return types.ErrDuplicate
	}
	return nil
}

// Get returns the stored record for url, or nil if there is none.
func (s *SQLiteStore) Get(ctx context.Context, url string) (*types.MediaRecord, error) {
	var (
		rec       types.MediaRecord
		regions   string
		fetchedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT url, title, body, regions, source, fetched_at FROM media WHERE url = ?`, url,
	).Scan(&rec.URL, &rec.Title, &rec.Body, &regions, &rec.Source, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &types.StorageError{Backend: "sqlite", Op: "get", Err: err}
	}
	if err := json.NewDecoder(strings.NewReader(regions)).Decode(&rec.Regions); err != nil {
		return nil, &types.StorageError{Backend: "sqlite", Op: "get", Err: err}
	}
	rec.FetchedAt, _ = time.Parse(time.RFC3339Nano, fetchedAt)
	return &rec, nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media`).Scan(&n); err != nil {
		return 0, &types.StorageError{Backend: "sqlite", Op: "count", Err: err}
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	s.logger.Debug("sqlite store closing", "path", s.path)
	return s.db.Close()
}
