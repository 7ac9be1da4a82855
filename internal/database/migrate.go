package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"
)

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// schemaVersion reads PRAGMA user_version.
func schemaVersion(ctx context.Context, q queryer) (int, error) {
	var version int
	if err := q.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

func setSchemaVersion(ctx context.Context, conn *sql.DB, version int) error {
	// PRAGMA does not take bind parameters.
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("setting schema version %d: %w", version, err)
	}
	return nil
}

// unversionedSchema reports which migration an unversioned store already
// matches: 0 unless both imports and documents exist, 2 when documents
// carries every role column and the fingerprint index exists, 1 otherwise.
func unversionedSchema(ctx context.Context, q queryer) (int, error) {
	var tables int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('imports', 'documents')",
	).Scan(&tables)
	if err != nil {
		return 0, fmt.Errorf("inspecting unversioned schema: %w", err)
	}
	if tables < 2 {
		return 0, nil
	}

	var roleColumns int
	err = q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pragma_table_info('documents') WHERE name IN ('directors', 'actors', 'genres')",
	).Scan(&roleColumns)
	if err != nil {
		return 0, fmt.Errorf("inspecting documents columns: %w", err)
	}
	var indexed int
	err = q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_imports_fingerprint'",
	).Scan(&indexed)
	if err != nil {
		return 0, fmt.Errorf("inspecting imports indexes: %w", err)
	}
	if roleColumns == 3 && indexed == 1 {
		return 2, nil
	}
	return 1, nil
}

// migrate brings the schema to latestVersion, one transaction per step.
func migrate(ctx context.Context, conn *sql.DB) error {
	current, err := schemaVersion(ctx, conn)
	if err != nil {
		return err
	}

	if current == 0 {
		matched, err := unversionedSchema(ctx, conn)
		if err != nil {
			return err
		}
		if matched > 0 {
			log.Warn("stamping unversioned corpus store", "version", matched)
			if err := setSchemaVersion(ctx, conn, matched); err != nil {
				return err
			}
			current = matched
		}
	}

	latest := latestVersion()
	if current > latest {
		return fmt.Errorf("schema version %d is newer than this build supports (%d)", current, latest)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := applyMigration(ctx, conn, m); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(ctx context.Context, conn *sql.DB, m Migration) error {
	log.Info("applying migration", "version", m.Version, "description", m.Description)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if err := m.Up(ctx, tx); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	// Stamped after commit; every step is idempotent and re-runs if this fails.
	return setSchemaVersion(ctx, conn, m.Version)
}
