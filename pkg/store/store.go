// Package store is the Persistent Store (component A): a pooled,
// WAL-mode SQLite database with a shared name-addressable row factory.
// Package kv's prefix-indexed Store interface showed the pattern worth
// keeping (hierarchical keys, prefix invalidation) but this component
// needs real SQL joins and aggregates for reputation/quest/topic queries,
// so it is built directly on database/sql over modernc.org/sqlite — the
// one dependency this expansion adds that the teacher itself has no
// equivalent for (see DESIGN.md).
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/fracturedsurvival/npcruntime/internal/apperr"
)

// Store is the SQLite-backed data store shared by every component that
// persists state (B-F). It owns the connection pool and WAL configuration;
// callers never open their own *sql.DB.
type Store struct {
	db   *sql.DB
	pool *Pool
}

// Options configures Store construction.
type Options struct {
	// Path is the SQLite database file, or ":memory:" for an ephemeral store.
	Path string
	// PoolSize bounds concurrent logical-worker leases. Default 10.
	PoolSize int
	// PageCacheKB sets SQLite's page cache target. Default 64MB.
	PageCacheKB int
}

// Open creates (or opens) the SQLite database at opts.Path, applies WAL
// pragmas, runs the schema migration, and returns a ready Store.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		opts.Path = ":memory:"
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 10
	}
	if opts.PageCacheKB <= 0 {
		opts.PageCacheKB = 64 * 1024
	}

	dsn := opts.Path
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", opts.Path, err)
	}
	// Physical connections are capped at the same size as the
	// logical-worker lease pool.
	db.SetMaxOpenConns(opts.PoolSize)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		fmt.Sprintf("PRAGMA cache_size = -%d", opts.PageCacheKB),
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate schema: %w", err)
	}

	return &Store{db: db, pool: NewPool(opts.PoolSize)}, nil
}

// DB returns the underlying *sql.DB for components that need raw SQL access
// (pkg/memory, pkg/topic, pkg/social, pkg/fleet all do).
func (s *Store) DB() *sql.DB { return s.db }

// Lease acquires a pool slot for owner (typically an agent ID or "fleet"),
// reusable for the lifetime of the caller's request.
func (s *Store) Lease(ctx context.Context, owner string) (*Lease, error) {
	l, err := s.pool.Acquire(ctx, owner)
	if err != nil {
		return nil, apperr.Unavailablef(err, "store: pool lease for %q", owner)
	}
	return l, nil
}

// Close closes every pooled connection. Safe to call once at shutdown.
func (s *Store) Close() error {
	return s.db.Close()
}

// Analyze refreshes SQLite's query-planner statistics (§4.1: "table
// statistics are refreshed on demand"), used by the scaling substrate's
// optimize operation.
func (s *Store) Analyze(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "ANALYZE")
	if err != nil {
		return apperr.Integrityf(err, "store: analyze")
	}
	return nil
}

// Row is a name-addressable result row, the "shared row factory" of §4.1.
type Row map[string]any

// ScanRows drains rows into a slice of name-addressable Row maps and closes
// rows. It is the single place raw *sql.Rows are turned into application
// values, so every caller gets the same column-name addressing regardless
// of the underlying query shape.
func ScanRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = raw[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// String returns column key as a string, or "" if absent/NULL.
func (r Row) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

// Float64 returns column key as a float64, or 0 if absent/NULL/unparseable.
func (r Row) Float64(key string) float64 {
	v, ok := r[key]
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	default:
		return 0
	}
}

// Int64 returns column key as an int64, or 0 if absent/NULL/unparseable.
func (r Row) Int64(key string) int64 {
	v, ok := r[key]
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case int64:
		return t
	case float64:
		return int64(t)
	default:
		return 0
	}
}
