// Package tilecache persists downloaded map tiles in a sqlite database so
// repeat flyovers of the same route skip the network entirely.
package tilecache

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/flyover/internal/tiles"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Cache is a sqlite-backed tile store.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if needed) the cache at path and applies pending
// schema migrations. Use ":memory:" for an ephemeral cache.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tile cache: %w", err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load tile cache migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Closing m would close the underlying DB connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("tile cache migration failed: %w", err)
	}
	return nil
}

func (c *Cache) Close() error { return c.db.Close() }

// Get returns the cached bytes for a tile, with ok=false on a miss.
func (c *Cache) Get(t tiles.Tile) ([]byte, bool, error) {
	var data []byte
	err := c.db.QueryRow(
		"SELECT data FROM tiles WHERE z = ? AND x = ? AND y = ?",
		t.Z, t.X, t.Y,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("tile cache read failed: %w", err)
	}
	return data, true, nil
}

// Put stores (or refreshes) a tile.
func (c *Cache) Put(t tiles.Tile, data []byte) error {
	_, err := c.db.Exec(`
		INSERT INTO tiles (z, x, y, data, fetched_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (z, x, y) DO UPDATE SET
			data = excluded.data,
			fetched_at = excluded.fetched_at
	`, t.Z, t.X, t.Y, data)
	if err != nil {
		return fmt.Errorf("tile cache write failed: %w", err)
	}
	return nil
}

// Prune deletes tiles older than maxAge and returns the rows removed.
func (c *Cache) Prune(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := c.db.Exec("DELETE FROM tiles WHERE fetched_at < ?", cutoff.Format("2006-01-02 15:04:05"))
	if err != nil {
		return 0, fmt.Errorf("tile cache prune failed: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of cached tiles.
func (c *Cache) Count() (int, error) {
	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM tiles").Scan(&n); err != nil {
		return 0, fmt.Errorf("tile cache count failed: %w", err)
	}
	return n, nil
}
