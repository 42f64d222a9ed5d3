// Package cache implements the offline response cache: a named, versioned
// store of HTTP responses plus a gateway applying the two fetch strategies
// (network-first for navigations, cache-first with background revalidation
// for assets).
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one cached HTTP response.
type Entry struct {
	URL      string
	Status   int
	Header   http.Header
	Body     []byte
	CachedAt time.Time
}

// Store persists cache entries in SQLite, keyed by (cache name, URL).
// Cached responses survive restarts, the way the browser cache storage
// outlives the worker that populated it.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the cache database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping cache database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize cache schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS cache_entries (
		cache_name TEXT NOT NULL,
		url TEXT NOT NULL,
		status INTEGER NOT NULL,
		headers TEXT NOT NULL,
		body BLOB,
		cached_at INTEGER NOT NULL,
		PRIMARY KEY (cache_name, url)
	);
	CREATE INDEX IF NOT EXISTS idx_cache_name ON cache_entries(cache_name);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Get retrieves a cached entry, or nil if the URL is not cached under the
// given cache name.
func (s *Store) Get(ctx context.Context, cacheName, url string) (*Entry, error) {
	query := `SELECT status, headers, body, cached_at FROM cache_entries WHERE cache_name = ? AND url = ?`
	row := s.db.QueryRowContext(ctx, query, cacheName, url)

	var (
		entry      Entry
		headerJSON string
		cachedAt   int64
	)
	err := row.Scan(&entry.Status, &headerJSON, &entry.Body, &cachedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan cache entry: %w", err)
	}

	if err := json.Unmarshal([]byte(headerJSON), &entry.Header); err != nil {
		return nil, fmt.Errorf("decode cached headers: %w", err)
	}
	entry.URL = url
	entry.CachedAt = time.Unix(cachedAt, 0)
	return &entry, nil
}

// Put stores (or replaces) a cache entry.
func (s *Store) Put(ctx context.Context, cacheName string, entry *Entry) error {
	headerJSON, err := json.Marshal(entry.Header)
	if err != nil {
		return fmt.Errorf("encode cached headers: %w", err)
	}

	query := `
	INSERT INTO cache_entries (cache_name, url, status, headers, body, cached_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(cache_name, url) DO UPDATE SET
		status = excluded.status,
		headers = excluded.headers,
		body = excluded.body,
		cached_at = excluded.cached_at`

	cachedAt := entry.CachedAt
	if cachedAt.IsZero() {
		cachedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, query,
		cacheName, entry.URL, entry.Status, string(headerJSON), entry.Body, cachedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// DropOtherCaches deletes every entry belonging to a cache name other than
// current. This is the activation step that retires stale cache versions.
func (s *Store) DropOtherCaches(ctx context.Context, current string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE cache_name != ?`, current)
	if err != nil {
		return 0, fmt.Errorf("drop stale caches: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return deleted, nil
}

// Close closes the cache database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close cache database: %w", err)
	}
	return nil
}
