package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - units table
// 2 - units.stats
const currentSchemaVersion = 2

// Entry is one cached unit.
type Entry struct {
	Key     string
	Path    string
	StoreID string
	Data    []byte
	// Stats is opaque JSON; Put stores "{}" when it is empty.
	Stats []byte
	Size  int64
	Seq     int64
}

// Stats summarizes the cache contents and this process's lookups.
type Stats struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Cache stores compiled units in SQLite. It is safe for concurrent use.
type Cache struct {
	db     *sql.DB
	clock  Clock
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the logical clock, typically with a deterministic
// one in tests.
func WithClock(c Clock) Option {
	return func(cc *Cache) { cc.clock = c }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(cc *Cache) { cc.logger = l }
}

// Open creates or opens the cache database at path, creating the parent
// directory when needed. Applies required pragmas and migrations
// automatically; safe to call repeatedly on the same path.
func Open(path string, opts ...Option) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	c := &Cache{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		var last int64
		if err := db.QueryRow("SELECT COALESCE(MAX(seq), 0) FROM units").Scan(&last); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to read clock: %w", err)
		}
		c.clock = newClockAt(last)
	}
	return c, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("cache schema version %d is newer than supported %d", version, currentSchemaVersion)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if version == 1 {
		if _, err := db.Exec(`ALTER TABLE units ADD COLUMN stats BLOB NOT NULL DEFAULT '{}'`); err != nil {
			return fmt.Errorf("migrate to version 2: %w", err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Get returns the entry for key and marks it as recently used. ok is false
// on a miss.
func (c *Cache) Get(ctx context.Context, key string) (e Entry, ok bool, err error) {
	seq := c.clock.Next()
	res, err := c.db.ExecContext(ctx, `UPDATE units SET seq = ? WHERE key = ?`, seq, key)
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache get: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.misses.Add(1)
		return Entry{}, false, nil
	}
	err = c.db.QueryRowContext(ctx, `
		SELECT key, path, store_id, data, stats, size, seq FROM units WHERE key = ?
	`, key).Scan(&e.Key, &e.Path, &e.StoreID, &e.Data, &e.Stats, &e.Size, &e.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		// evicted between the two statements
		c.misses.Add(1)
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache get: %w", err)
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", shortKey(key), "path", e.Path)
	return e, true, nil
}

// Put inserts or replaces the entry for e.Key. Size and Seq are set by
// the cache.
func (c *Cache) Put(ctx context.Context, e Entry) error {
	if e.Key == "" {
		return errors.New("cache put: empty key")
	}
	stats := e.Stats
	if len(stats) == 0 {
		stats = []byte("{}")
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO units (key, path, store_id, data, stats, size, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			path = excluded.path,
			store_id = excluded.store_id,
			data = excluded.data,
			stats = excluded.stats,
			size = excluded.size,
			seq = excluded.seq
	`, e.Key, e.Path, e.StoreID, e.Data, stats, len(e.Data), c.clock.Next())
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Evict removes least recently used entries until the total payload size
// is at most limit, and returns how many were removed.
func (c *Cache) Evict(ctx context.Context, limit int64) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("cache evict: %w", err)
	}
	defer tx.Rollback()

	var total int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(SUM(size), 0) FROM units`).Scan(&total); err != nil {
		return 0, fmt.Errorf("cache evict: %w", err)
	}
	if total <= limit {
		return 0, nil
	}

	rows, err := tx.QueryContext(ctx, `SELECT key, size FROM units ORDER BY seq ASC, key ASC`)
	if err != nil {
		return 0, fmt.Errorf("cache evict: %w", err)
	}
	var victims []string
	for rows.Next() && total > limit {
		var key string
		var size int64
		if err := rows.Scan(&key, &size); err != nil {
			rows.Close()
			return 0, fmt.Errorf("cache evict: %w", err)
		}
		victims = append(victims, key)
		total -= size
	}
	if err := rows.Close(); err != nil {
		return 0, fmt.Errorf("cache evict: %w", err)
	}

	for _, key := range victims {
		if _, err := tx.ExecContext(ctx, `DELETE FROM units WHERE key = ?`, key); err != nil {
			return 0, fmt.Errorf("cache evict: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("cache evict: %w", err)
	}
	c.logger.Debug("cache evicted", "entries", len(victims), "limit", limit)
	return len(victims), nil
}

// Stats reports the number of entries, their total size and the hit and
// miss counts since Open.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(size), 0) FROM units`).Scan(&st.Entries, &st.Bytes)
	if err != nil {
		return Stats{}, fmt.Errorf("cache stats: %w", err)
	}
	st.Hits = c.hits.Load()
	st.Misses = c.misses.Load()
	return st, nil
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
