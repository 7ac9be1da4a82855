// Package corpus holds the immutable document table that every analysis
// folds over, and the loaders that build it from tabular files.
package corpus

import (
	"strings"
)

// Canonical column names. Header cells are matched against these and their
// aliases after trimming and lower-casing.
const (
	ColTitle     = "title"
	ColAuthor    = "author"
	ColURL       = "url"
	ColContent   = "content"
	ColKeywords  = "keywords"
	ColEntities  = "entities"
	ColTriples   = "triples"
	ColSentiment = "sentiment"
	ColTimestamp = "crawl_time"
	ColDirectors = "directors"
	ColActors    = "actors"
	ColGenres    = "genres"
)

var columnAliases = map[string]string{
	"title":           ColTitle,
	"movie_title":     ColTitle,
	"author":          ColAuthor,
	"url":             ColURL,
	"movie_url":       ColURL,
	"source":          ColURL,
	"content":         ColContent,
	"keywords":        ColKeywords,
	"entities":        ColEntities,
	"triples":         ColTriples,
	"sentiment":       ColSentiment,
	"sentiment_score": ColSentiment,
	"crawl_time":      ColTimestamp,
	"timestamp":       ColTimestamp,
	"date":            ColTimestamp,
	"published_date":  ColTimestamp,
	"directors":       ColDirectors,
	"actors":          ColActors,
	"genres":          ColGenres,
}

// CanonicalColumn maps a header cell to its canonical column name.
// Unknown headers are returned lower-cased so they still round-trip.
func CanonicalColumn(header string) string {
	h := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header, "\ufeff")))
	if c, ok := columnAliases[h]; ok {
		return c
	}
	return h
}

// Document is one annotated row. Annotation fields are kept exactly as they
// appeared in the table; decoding happens later and never mutates them.
type Document struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	URL       string `json:"url"`
	Content   string `json:"content"`
	Keywords  string `json:"keywords"`
	Entities  string `json:"entities"`
	Triples   string `json:"triples"`
	Sentiment string `json:"sentiment"`
	Timestamp string `json:"crawl_time"`
	Directors string `json:"directors,omitempty"`
	Actors    string `json:"actors,omitempty"`
	Genres    string `json:"genres,omitempty"`
}

// Table is a loaded corpus. It is never modified after construction, so it
// can be shared between concurrent analyses without locking.
type Table struct {
	Version   string
	Source    string
	columns   map[string]bool
	documents []Document
}

// NewTable builds a table from a header row and data rows. Rows shorter than
// the header are padded with empty values; columns missing from the header
// read as empty for every row. The first occurrence of a canonical column wins.
func NewTable(source, version string, header []string, rows [][]string) *Table {
	index := make(map[string]int, len(header))
	for i, h := range header {
		c := CanonicalColumn(h)
		if c == "" {
			continue
		}
		if _, seen := index[c]; !seen {
			index[c] = i
		}
	}

	get := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	t := &Table{
		Version:   version,
		Source:    source,
		columns:   make(map[string]bool, len(index)),
		documents: make([]Document, 0, len(rows)),
	}
	for c := range index {
		t.columns[c] = true
	}

	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		t.documents = append(t.documents, Document{
			ID:        len(t.documents),
			Title:     strings.TrimSpace(get(row, ColTitle)),
			Author:    strings.TrimSpace(get(row, ColAuthor)),
			URL:       strings.TrimSpace(get(row, ColURL)),
			Content:   get(row, ColContent),
			Keywords:  get(row, ColKeywords),
			Entities:  get(row, ColEntities),
			Triples:   get(row, ColTriples),
			Sentiment: strings.TrimSpace(get(row, ColSentiment)),
			Timestamp: strings.TrimSpace(get(row, ColTimestamp)),
			Directors: get(row, ColDirectors),
			Actors:    get(row, ColActors),
			Genres:    get(row, ColGenres),
		})
	}
	return t
}

// FromDocuments builds a table from already-materialized documents, e.g. rows
// read back from the store. Document IDs are reassigned to row positions.
func FromDocuments(source, version string, columns []string, docs []Document) *Table {
	t := &Table{
		Version:   version,
		Source:    source,
		columns:   make(map[string]bool, len(columns)),
		documents: make([]Document, len(docs)),
	}
	for _, c := range columns {
		t.columns[CanonicalColumn(c)] = true
	}
	for i, d := range docs {
		d.ID = i
		t.documents[i] = d
	}
	return t
}

// Empty returns a table with no documents.
func Empty() *Table {
	return &Table{Version: "empty", columns: map[string]bool{}}
}

// Len returns the number of documents.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.documents)
}

// Document returns the document with the given row index.
func (t *Table) Document(id int) (Document, bool) {
	if t == nil || id < 0 || id >= len(t.documents) {
		return Document{}, false
	}
	return t.documents[id], true
}

// Documents returns a copy of the document slice.
func (t *Table) Documents() []Document {
	if t == nil {
		return nil
	}
	out := make([]Document, len(t.documents))
	copy(out, t.documents)
	return out
}

// HasColumn reports whether the source header carried the canonical column.
func (t *Table) HasColumn(col string) bool {
	return t != nil && t.columns[col]
}

// Columns returns the canonical columns present, in a stable order.
func (t *Table) Columns() []string {
	var out []string
	for _, c := range orderedColumns {
		if t.HasColumn(c) {
			out = append(out, c)
		}
	}
	return out
}

// IsRoleTable reports whether the table describes works with role columns
// (directors, actors, genres) rather than free-text annotations.
func (t *Table) IsRoleTable() bool {
	return t.HasColumn(ColDirectors) || t.HasColumn(ColActors) || t.HasColumn(ColGenres)
}

var orderedColumns = []string{
	ColTitle, ColAuthor, ColURL, ColContent, ColKeywords, ColEntities, ColTriples,
	ColSentiment, ColTimestamp, ColDirectors, ColActors, ColGenres,
}

func isBlankRow(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
