package database

// Import describes one stored corpus table.
type Import struct {
	ID            int64    `json:"id"`
	Source        string   `json:"source"`
	Fingerprint   string   `json:"fingerprint"`
	Columns       []string `json:"columns"`
	DocumentCount int      `json:"document_count"`
	ImportedAt    *string  `json:"imported_at,omitempty"`
}

// Stats holds store statistics for the status command.
type Stats struct {
	Imports       int
	Documents     int
	WithContent   int
	WithTriples   int
	WithEntities  int
	CurrentSource string
	ImportedAt    *string
}
