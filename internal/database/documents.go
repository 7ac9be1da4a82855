package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/TobiSchelling/annograph/internal/corpus"
)

// EmptyVersion is the table version reported when nothing has been imported.
const EmptyVersion = "empty"

// ImportTable replaces the stored table with t. Earlier imports and their
// documents are removed in the same transaction, so readers see either the
// old table or the new one.
func (db *DB) ImportTable(ctx context.Context, t *corpus.Table) (*Import, error) {
	if db.readOnly {
		return nil, ErrReadOnly
	}
	if t == nil {
		t = corpus.Empty()
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	// Documents go with their import via ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx, "DELETE FROM imports"); err != nil {
		return nil, fmt.Errorf("clearing imports: %w", err)
	}

	columns := t.Columns()
	res, err := tx.ExecContext(ctx,
		"INSERT INTO imports (source, fingerprint, columns, document_count) VALUES (?, ?, ?, ?)",
		t.Source, t.Version, strings.Join(columns, ","), t.Len(),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting import: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (import_id, row_index, title, author, url, content,
		    keywords, entities, triples, sentiment, crawl_time, directors, actors, genres)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("preparing document insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range t.Documents() {
		if _, err := stmt.ExecContext(ctx, id, d.ID, d.Title, d.Author, d.URL, d.Content,
			d.Keywords, d.Entities, d.Triples, d.Sentiment, d.Timestamp,
			d.Directors, d.Actors, d.Genres,
		); err != nil {
			return nil, fmt.Errorf("inserting document %d: %w", d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}
	return db.CurrentImport(ctx)
}

// CurrentImport returns the stored table's metadata, or nil if nothing has
// been imported.
func (db *DB) CurrentImport(ctx context.Context) (*Import, error) {
	var imp Import
	var columns string
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, source, fingerprint, columns, document_count, imported_at
		 FROM imports ORDER BY id DESC LIMIT 1`,
	).Scan(&imp.ID, &imp.Source, &imp.Fingerprint, &columns, &imp.DocumentCount, &imp.ImportedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	imp.Columns = splitColumns(columns)
	return &imp, nil
}

// TableVersion returns the fingerprint of the stored table, or EmptyVersion.
func (db *DB) TableVersion(ctx context.Context) (string, error) {
	imp, err := db.CurrentImport(ctx)
	if err != nil {
		return "", err
	}
	if imp == nil {
		return EmptyVersion, nil
	}
	return imp.Fingerprint, nil
}

// LoadTable reads the stored table back. An empty store yields an empty table.
func (db *DB) LoadTable(ctx context.Context) (*corpus.Table, error) {
	imp, err := db.CurrentImport(ctx)
	if err != nil {
		return nil, err
	}
	if imp == nil {
		return corpus.Empty(), nil
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT row_index, title, author, url, content, keywords, entities, triples,
		       sentiment, crawl_time, directors, actors, genres
		FROM documents WHERE import_id = ? ORDER BY row_index`, imp.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]corpus.Document, 0, imp.DocumentCount)
	for rows.Next() {
		var d corpus.Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Author, &d.URL, &d.Content,
			&d.Keywords, &d.Entities, &d.Triples, &d.Sentiment, &d.Timestamp,
			&d.Directors, &d.Actors, &d.Genres,
		); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return corpus.FromDocuments(imp.Source, imp.Fingerprint, imp.Columns, docs), nil
}

// GetStats returns store statistics.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	s := &Stats{}
	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM imports", &s.Imports},
		{"SELECT COUNT(*) FROM documents", &s.Documents},
		{"SELECT COUNT(*) FROM documents WHERE TRIM(content) != ''", &s.WithContent},
		{"SELECT COUNT(*) FROM documents WHERE TRIM(triples) != ''", &s.WithTriples},
		{"SELECT COUNT(*) FROM documents WHERE TRIM(entities) != ''", &s.WithEntities},
	}
	for _, q := range queries {
		if err := db.conn.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	imp, err := db.CurrentImport(ctx)
	if err != nil {
		return nil, err
	}
	if imp != nil {
		s.CurrentSource = imp.Source
		s.ImportedAt = imp.ImportedAt
	}
	return s, nil
}

func splitColumns(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
