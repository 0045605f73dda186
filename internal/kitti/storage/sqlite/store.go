// Package sqlite stores cache blobs in a SQLite database, one row per
// fingerprint.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/tracklets/internal/kitti/cache"
	"github.com/banshee-data/tracklets/internal/monitoring"
	"github.com/banshee-data/tracklets/internal/timeutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var logf = monitoring.Component("sqlite")

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
}

// Entry describes one stored blob without its payload.
type Entry struct {
	Fingerprint string
	BuildID     string
	SizeBytes   int64
	CreatedAt   time.Time
}

// CacheStore implements cache.Store on SQLite.
type CacheStore struct {
	db    *sql.DB
	path  string
	clock timeutil.Clock
}

var _ cache.Store = (*CacheStore)(nil)

// Option configures a CacheStore.
type Option func(*CacheStore)

// WithClock sets the clock used for created_at; the default is wall time.
func WithClock(c timeutil.Clock) Option {
	return func(s *CacheStore) { s.clock = timeutil.OrReal(c) }
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(path string, opts ...Option) (*CacheStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", p, err)
		}
	}
	s := &CacheStore{db: db, path: path, clock: timeutil.RealClock{}}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// DB exposes the handle for admin tooling.
func (s *CacheStore) DB() *sql.DB { return s.db }

// Path returns the database file path.
func (s *CacheStore) Path() string { return s.path }

// Close closes the database.
func (s *CacheStore) Close() error { return s.db.Close() }

// MigrateUp applies all pending migrations.
func (s *CacheStore) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// Closing m would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateDown rolls back the most recent migration.
func (s *CacheStore) MigrateDown() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the applied schema version; 0 means none.
func (s *CacheStore) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (s *CacheStore) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	logf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }

// Get returns the blob stored under fingerprint.
func (s *CacheStore) Get(ctx context.Context, fingerprint string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT blob FROM tracklet_cache WHERE fingerprint = ?`, fingerprint,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", cache.ErrNotFound, fingerprint)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", fingerprint, err)
	}
	return blob, nil
}

// Put upserts the blob; the last writer wins.
func (s *CacheStore) Put(ctx context.Context, fingerprint string, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracklet_cache (fingerprint, build_id, blob, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			build_id   = excluded.build_id,
			blob       = excluded.blob,
			size_bytes = excluded.size_bytes,
			created_at = excluded.created_at
	`, fingerprint, uuid.NewString(), blob, len(blob), s.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("store %s: %w", fingerprint, err)
	}
	logf("stored %s (%d bytes)", fingerprint, len(blob))
	return nil
}

// List returns every stored entry ordered by fingerprint.
func (s *CacheStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fingerprint, build_id, size_bytes, created_at
		FROM tracklet_cache
		ORDER BY fingerprint
	`)
	if err != nil {
		return nil, fmt.Errorf("list cache: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Fingerprint, &e.BuildID, &e.SizeBytes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cache row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes one entry. Deleting an unknown fingerprint is not an error.
func (s *CacheStore) Delete(ctx context.Context, fingerprint string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tracklet_cache WHERE fingerprint = ?`, fingerprint); err != nil {
		return fmt.Errorf("delete %s: %w", fingerprint, err)
	}
	return nil
}
