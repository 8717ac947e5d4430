// Package sqlitecache persists geocode results in a SQLite file so repeated
// runs over the same dataset do not hit the upstream geocoder again.
package sqlitecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/datavis-fr/geobatch/geocode"
)

const schema = `
CREATE TABLE IF NOT EXISTS locations (
	query        TEXT PRIMARY KEY,
	lat          REAL NOT NULL,
	lon          REAL NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	updated_at   INTEGER NOT NULL
)`

// Cache is a geocode.Cache backed by SQLite.
type Cache struct {
	db *sql.DB
}

var _ geocode.Cache = (*Cache)(nil)

// Open opens (creating if needed) the cache database at path.
// ":memory:" gives a private in-memory cache.
func Open(ctx context.Context, path string) (*Cache, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitecache: open %s: %w", path, err)
	}
	// A single connection serializes writers and keeps ":memory:" to one database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitecache: create schema: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Get(ctx context.Context, query string) (geocode.Location, bool, error) {
	var loc geocode.Location
	err := c.db.QueryRowContext(ctx,
		`SELECT lat, lon, display_name FROM locations WHERE query = ?`, key(query),
	).Scan(&loc.Lat, &loc.Lon, &loc.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return geocode.Location{}, false, nil
	}
	if err != nil {
		return geocode.Location{}, false, fmt.Errorf("sqlitecache: get %q: %w", query, err)
	}
	return loc, true, nil
}

func (c *Cache) Put(ctx context.Context, query string, loc geocode.Location) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO locations (query, lat, lon, display_name, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(query) DO UPDATE SET
			lat = excluded.lat,
			lon = excluded.lon,
			display_name = excluded.display_name,
			updated_at = excluded.updated_at`,
		key(query), loc.Lat, loc.Lon, loc.DisplayName, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlitecache: put %q: %w", query, err)
	}
	return nil
}

// Len returns the number of cached queries.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM locations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlitecache: count: %w", err)
	}
	return n, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func key(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}
