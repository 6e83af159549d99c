// Package dbopen opens the two SQLite files of zona9 with the modernc
// driver: the report records and the telemetry database (metrics, events,
// request logs, rate-limit rules). Each Role carries its own pragmas, which
// travel in the DSN so every pooled connection gets them, not only the
// first one.
//
//	db, err := dbopen.Open("data/zona9.db", dbopen.WithMkdirAll(), dbopen.WithSchema(store.Schema))
//	obs, err := dbopen.Open("data/obs.db", dbopen.WithRole(dbopen.Telemetry))
//
// In tests:
//
//	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
package dbopen

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

// MemoryPath is the DSN of a private in-memory database.
const MemoryPath = ":memory:"

const driverName = "sqlite"

// Role says what a database holds.
type Role int

const (
	// Records holds the daily entries. Foreign keys are enforced, a
	// committed save survives a power cut, and write transactions take the
	// lock at BEGIN so a bulk save never fails halfway on an upgrade.
	Records Role = iota

	// Telemetry holds metrics and logs written behind every export. A lost
	// datapoint is acceptable, a capture stalled on a lock is not.
	Telemetry
)

func (r Role) String() string {
	if r == Telemetry {
		return "telemetry"
	}
	return "records"
}

// pragmas returns the per-connection pragmas and the BEGIN mode of r.
func (r Role) pragmas() (pragmas []string, txlock string) {
	switch r {
	case Telemetry:
		return []string{"busy_timeout(2000)", "foreign_keys(0)", "synchronous(NORMAL)"}, "deferred"
	default:
		return []string{"busy_timeout(10000)", "foreign_keys(1)", "synchronous(FULL)"}, "immediate"
	}
}

type config struct {
	role     Role
	mkdirAll bool
	schemas  []string
}

// Option customises Open.
type Option func(*config)

// WithRole selects the pragma set. Default: Records.
func WithRole(r Role) Option { return func(c *config) { c.role = r } }

// WithMkdirAll creates the parent directories of the database file.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// WithSchema queues DDL to run once the database is open. Schemas run in
// the order given and must be idempotent: they run on every start.
func WithSchema(s string) Option { return func(c *config) { c.schemas = append(c.schemas, s) } }

// dsn appends the role pragmas to path as modernc query parameters.
func dsn(path string, r Role) string {
	pragmas, txlock := r.pragmas()
	q := url.Values{"_txlock": {txlock}}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return path + "?" + q.Encode()
}

// Open opens the database at path for its role, switches a file database
// to WAL and applies the queued schemas.
//
// An in-memory database is pinned to a single connection: every new
// connection to ":memory:" would otherwise see its own empty database.
func Open(path string, opts ...Option) (*sql.DB, error) {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}
	if path == "" || strings.ContainsRune(path, '?') {
		return nil, fmt.Errorf("dbopen: invalid path %q", path)
	}
	memory := path == MemoryPath

	if cfg.mkdirAll && !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir: %w", err)
		}
	}

	db, err := sql.Open(driverName, dsn(path, cfg.role))
	if err != nil {
		return nil, fmt.Errorf("dbopen: open %s: %w", cfg.role, err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbopen: %s: %w", cfg.role, err)
	}
	if !memory {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: %s: journal_mode: %w", cfg.role, err)
		}
	}

	for _, s := range cfg.schemas {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: %s: exec schema: %w", cfg.role, err)
		}
	}
	return db, nil
}

// OpenMemory opens an in-memory database for tests and closes it through
// t.Cleanup.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(MemoryPath, opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
