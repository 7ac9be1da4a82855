package corpus

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/xuri/excelize/v2"
)

// Load reads a CSV or XLSX table from disk, choosing the format by extension.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ParseXLSX(path, data)
	default:
		return ParseCSV(path, data)
	}
}

// ParseCSV parses CSV bytes. Quoting is lenient and rows may have any number
// of fields; rows the reader cannot recover are skipped with a warning.
func ParseCSV(source string, data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var header []string
	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				log.Warn("skipping unreadable CSV row", "source", source, "line", perr.Line, "err", perr.Err)
				continue
			}
			return nil, fmt.Errorf("reading CSV: %w", err)
		}
		if header == nil {
			header = record
			continue
		}
		rows = append(rows, record)
	}

	if header == nil {
		log.Warn("table has no header row", "source", source)
		return NewTable(source, Fingerprint(data), nil, nil), nil
	}

	t := NewTable(source, Fingerprint(data), header, rows)
	logMissingColumns(t)
	return t, nil
}

// ParseXLSX parses the first sheet of an XLSX workbook.
func ParseXLSX(source string, data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return NewTable(source, Fingerprint(data), nil, nil), nil
	}

	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	if len(all) == 0 {
		return NewTable(source, Fingerprint(data), nil, nil), nil
	}

	t := NewTable(source, Fingerprint(data), all[0], all[1:])
	logMissingColumns(t)
	return t, nil
}

// Fingerprint derives a table version from the source bytes.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

func logMissingColumns(t *Table) {
	var missing []string
	for _, c := range []string{ColTitle, ColAuthor, ColURL, ColContent, ColKeywords, ColEntities, ColTriples} {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 && !t.IsRoleTable() {
		log.Warn("table is missing expected columns; treating them as empty",
			"source", t.Source, "columns", strings.Join(missing, ","))
	}
}
