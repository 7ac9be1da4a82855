package database

import (
	"context"
	"database/sql"
)

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(ctx context.Context, tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS imports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    columns TEXT NOT NULL DEFAULT '',
    document_count INTEGER NOT NULL DEFAULT 0,
    imported_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS documents (
    import_id INTEGER NOT NULL REFERENCES imports(id) ON DELETE CASCADE,
    row_index INTEGER NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    author TEXT NOT NULL DEFAULT '',
    url TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    keywords TEXT NOT NULL DEFAULT '',
    entities TEXT NOT NULL DEFAULT '',
    triples TEXT NOT NULL DEFAULT '',
    sentiment TEXT NOT NULL DEFAULT '',
    crawl_time TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (import_id, row_index)
);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "role table columns",
		Up: func(ctx context.Context, tx *sql.Tx) error {
			for _, col := range []string{"directors", "actors", "genres"} {
				exists, err := hasColumn(ctx, tx, "documents", col)
				if err != nil {
					return err
				}
				if exists {
					continue
				}
				if _, err := tx.ExecContext(ctx, "ALTER TABLE documents ADD COLUMN " + col + " TEXT NOT NULL DEFAULT ''"); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_imports_fingerprint ON imports(fingerprint)")
			return err
		},
	},
}

// hasColumn reports whether table already has col, so ALTER TABLE steps can re-run.
func hasColumn(ctx context.Context, tx *sql.Tx, table, col string) (bool, error) {
	var count int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, col,
	).Scan(&count)
	return count > 0, err
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
