package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const defaultBusyTimeout = 5 * time.Second

var (
	// ErrReadOnly is returned by writes against a store opened with ReadOnly.
	ErrReadOnly = errors.New("database opened read-only")
	// ErrSchemaOutdated is returned when a read-only open finds a store that
	// has not been migrated to the current schema.
	ErrSchemaOutdated = errors.New("database schema is not current")
)

// DB is the SQLite store holding the imported corpus table.
type DB struct {
	conn     *sql.DB
	path     string
	readOnly bool
}

type options struct {
	readOnly    bool
	busyTimeout time.Duration
}

// Option configures Open.
type Option func(*options)

// ReadOnly opens an existing, migrated store and rejects writes. Commands
// that only report on the store use it so they never migrate or create one.
func ReadOnly() Option {
	return func(o *options) { o.readOnly = true }
}

// WithBusyTimeout sets how long a statement waits on a lock held by another
// process, such as a concurrent import, before failing.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busyTimeout = d }
}

// Open opens the store at dbPath. A writable open creates the file and
// brings its schema up to date; a ReadOnly open requires both already.
func Open(ctx context.Context, dbPath string, opts ...Option) (*DB, error) {
	o := options{busyTimeout: defaultBusyTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	if o.readOnly {
		if _, err := os.Stat(dbPath); err != nil {
			return nil, fmt.Errorf("opening database read-only: %w", err)
		}
	} else if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dsn(dbPath, o))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to %s: %w", dbPath, err)
	}

	if o.readOnly {
		version, err := schemaVersion(ctx, conn)
		if err == nil && version != latestVersion() {
			err = fmt.Errorf("%w: version %d, want %d", ErrSchemaOutdated, version, latestVersion())
		}
		if err != nil {
			conn.Close()
			return nil, err
		}
	} else if err := migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath, readOnly: o.readOnly}, nil
}

// dsn encodes the connection pragmas as modernc.org/sqlite _pragma
// parameters, which the driver applies to every pooled connection.
func dsn(path string, o options) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", o.busyTimeout.Milliseconds()))
	q.Add("_pragma", "foreign_keys(1)")
	if o.readOnly {
		q.Add("_pragma", "query_only(1)")
	} else {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	return path + "?" + q.Encode()
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// ReadOnly reports whether the store was opened with ReadOnly.
func (db *DB) ReadOnly() bool {
	return db.readOnly
}
