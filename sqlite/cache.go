// Package sqlite provides a SQLite-backed implementation of
// flagup.LocationCache for users who prefer a database over the JSON blob.
package sqlite

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/rs/zerolog"
	"github.com/vigneshmr/flagup"
)

// DefaultTTL matches the blob cache: entries live 30 days from the last
// write or flush.
const DefaultTTL = 30 * 24 * time.Hour

// Ensure Cache implements flagup.LocationCache at compile time.
var _ flagup.LocationCache = (*Cache)(nil)

// Cache is a durable handle → location cache backed by SQLite.
//
// Unlike the blob cache there is no write debounce: every Put is written
// through, the database being the durable form already. Get still serves
// from an in-memory view loaded at open time.
//
// Cache is safe for concurrent use.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	log zerolog.Logger
	now func() time.Time

	mu      sync.Mutex
	entries map[string]flagup.Location
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the entry lifetime.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) { c.ttl = d }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// Open opens (creating if needed) the cache database at path.
// Use ":memory:" for an in-memory database. Expired rows are purged and the
// remainder loaded into the in-memory view.
func Open(path string, opts ...Option) (*Cache, error) {
	c := &Cache{
		ttl:     DefaultTTL,
		log:     zerolog.Nop(),
		now:     time.Now,
		entries: make(map[string]flagup.Location),
	}
	for _, opt := range opts {
		opt(c)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, flagup.Errorf(flagup.EINTERNAL, "open cache database: %v", err)
	}

	// SQLite only supports one writer at a time, so limit to one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, flagup.Errorf(flagup.EUNAVAILABLE, "connect to cache database: %v", err)
	}

	// Wait up to 5 seconds on lock contention instead of failing.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, flagup.Errorf(flagup.EINTERNAL, "set busy timeout: %v", err)
	}

	// WAL mode is not supported for in-memory databases.
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, flagup.Errorf(flagup.EINTERNAL, "enable WAL mode: %v", err)
		}
	}

	c.db = db

	if err := c.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := c.loadEntries(); err != nil {
		db.Close()
		return nil, err
	}

	return c, nil
}

func (c *Cache) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS locations (
			handle TEXT PRIMARY KEY,
			location TEXT NOT NULL DEFAULT '',
			found INTEGER NOT NULL,
			cached_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		);
	`
	if _, err := c.db.Exec(schema); err != nil {
		return flagup.Errorf(flagup.EINTERNAL, "create cache schema: %v", err)
	}
	return nil
}

// loadEntries purges expired rows and loads the rest into memory.
func (c *Cache) loadEntries() error {
	ctx := context.Background()
	now := c.now().UTC().Format(time.RFC3339)

	if _, err := c.db.ExecContext(ctx, `DELETE FROM locations WHERE expires_at <= ?`, now); err != nil {
		return flagup.Errorf(flagup.EINTERNAL, "purge expired cache rows: %v", err)
	}

	rows, err := c.db.QueryContext(ctx, `SELECT handle, location, found FROM locations`)
	if err != nil {
		return flagup.Errorf(flagup.EINTERNAL, "load cache rows: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var handle, location string
		var found bool
		if err := rows.Scan(&handle, &location, &found); err != nil {
			return flagup.Errorf(flagup.EINTERNAL, "scan cache row: %v", err)
		}
		c.entries[handle] = flagup.Location{Text: location, Found: found}
	}
	return rows.Err()
}

// Get returns the cached location for a handle. In-memory only.
func (c *Cache) Get(handle string) (flagup.Location, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	loc, ok := c.entries[handle]
	return loc, ok
}

// Put records a lookup result. The in-memory view updates immediately; the
// row write happens inline and failures are logged, not surfaced.
func (c *Cache) Put(handle string, loc flagup.Location) {
	c.mu.Lock()
	c.entries[handle] = loc
	c.mu.Unlock()

	now := c.now().UTC()
	_, err := c.db.Exec(`
		INSERT INTO locations (handle, location, found, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (handle) DO UPDATE SET
			location = excluded.location,
			found = excluded.found,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at
	`, handle, loc.Text, loc.Found, now.Format(time.RFC3339), now.Add(c.ttl).Format(time.RFC3339))
	if err != nil {
		c.log.Warn().Err(err).Str("handle", handle).Msg("cache write failed")
	}
}

// Entries reads every row back, for inspection.
func (c *Cache) Entries() (map[string]flagup.CacheEntry, error) {
	rows, err := c.db.Query(`SELECT handle, location, found, cached_at, expires_at FROM locations`)
	if err != nil {
		return nil, flagup.Errorf(flagup.EINTERNAL, "read cache rows: %v", err)
	}
	defer rows.Close()

	out := make(map[string]flagup.CacheEntry)
	for rows.Next() {
		var handle string
		var entry flagup.CacheEntry
		var cachedAt, expiresAt string
		if err := rows.Scan(&handle, &entry.Location, &entry.Found, &cachedAt, &expiresAt); err != nil {
			return nil, flagup.Errorf(flagup.EINTERNAL, "scan cache row: %v", err)
		}
		entry.CachedAt, _ = time.Parse(time.RFC3339, cachedAt)
		entry.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)
		out[handle] = entry
	}
	return out, rows.Err()
}

// Clear drops every entry, in memory and in the database.
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.entries = make(map[string]flagup.Location)
	c.mu.Unlock()

	if _, err := c.db.Exec(`DELETE FROM locations`); err != nil {
		return flagup.Errorf(flagup.EINTERNAL, "clear cache: %v", err)
	}
	return nil
}

// Flush stamps a fresh expiry on every row, mirroring the blob cache's
// save-extends-lifetime behavior.
func (c *Cache) Flush() error {
	expires := c.now().UTC().Add(c.ttl).Format(time.RFC3339)
	if _, err := c.db.Exec(`UPDATE locations SET expires_at = ?`, expires); err != nil {
		return flagup.Errorf(flagup.EINTERNAL, "restamp cache expiries: %v", err)
	}
	return nil
}

// Close flushes and closes the database.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	if err := c.Flush(); err != nil {
		c.log.Warn().Err(err).Msg("cache flush on close failed")
	}
	err := c.db.Close()
	c.db = nil
	return err
}
