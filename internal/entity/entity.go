// Package entity keeps the corpus identity table: every distinct
// (name, category) pair gets a stable integer handle, an occurrence counter,
// and the set of documents it appears in.
package entity

import (
	"slices"
	"strings"

	"github.com/TobiSchelling/annograph/internal/decode"
)

// Handle identifies one (name, category) identity. Handles are allocated
// 0, 1, 2, ... in first-encounter order.
type Handle int

// Identity is the resolved form of a handle.
type Identity struct {
	Handle   Handle          `json:"handle"`
	Name     string          `json:"name"`
	Category decode.Category `json:"category"`
}

type key struct {
	name     string
	category decode.Category
}

type entry struct {
	identity  Identity
	count     int
	documents []int
	docSet    map[int]struct{}
}

// Table is a mutable identity table. It is not safe for concurrent writes;
// callers fold documents in sequence and publish the table read-only.
type Table struct {
	handles map[key]Handle
	entries []*entry
	folded  int
}

// NewTable returns an empty identity table.
func NewTable() *Table {
	return &Table{handles: make(map[key]Handle)}
}

// Register folds the mentions of one document into the table and returns
// the handles it touched, deduplicated, in first-touch order. Names are
// trimmed; empty names are skipped.
func (t *Table) Register(mentions []decode.Mention, docID int) []Handle {
	t.folded++
	touched := make([]Handle, 0, len(mentions))
	seen := make(map[Handle]bool, len(mentions))

	for _, m := range mentions {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			continue
		}
		k := key{name: name, category: m.Category}
		h, ok := t.handles[k]
		if !ok {
			h = Handle(len(t.entries))
			t.handles[k] = h
			t.entries = append(t.entries, &entry{
				identity: Identity{Handle: h, Name: name, Category: m.Category},
				docSet:   make(map[int]struct{}),
			})
		}

		e := t.entries[h]
		e.count++
		if _, ok := e.docSet[docID]; !ok {
			e.docSet[docID] = struct{}{}
			e.documents = append(e.documents, docID)
		}

		if !seen[h] {
			seen[h] = true
			touched = append(touched, h)
		}
	}
	return touched
}

// Lookup returns the handle for a (name, category) pair.
func (t *Table) Lookup(name string, category decode.Category) (Handle, bool) {
	h, ok := t.handles[key{name: strings.TrimSpace(name), category: category}]
	return h, ok
}

// Identity resolves a handle.
func (t *Table) Identity(h Handle) (Identity, bool) {
	if !t.valid(h) {
		return Identity{}, false
	}
	return t.entries[h].identity, true
}

// Count is the corpus-wide occurrence count of a handle.
func (t *Table) Count(h Handle) int {
	if !t.valid(h) {
		return 0
	}
	return t.entries[h].count
}

// Documents lists the documents a handle appears in, in registration order.
func (t *Table) Documents(h Handle) []int {
	if !t.valid(h) {
		return []int{}
	}
	return slices.Clone(t.entries[h].documents)
}

// Identities lists every identity in handle order.
func (t *Table) Identities() []Identity {
	out := make([]Identity, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.identity
	}
	return out
}

// Len is the number of distinct identities.
func (t *Table) Len() int { return len(t.entries) }

// Version is the number of documents folded into the table so far.
func (t *Table) Version() int { return t.folded }

// Clone returns an independent copy of the table.
func (t *Table) Clone() *Table {
	c := &Table{
		handles: make(map[key]Handle, len(t.handles)),
		entries: make([]*entry, len(t.entries)),
		folded:  t.folded,
	}
	for k, h := range t.handles {
		c.handles[k] = h
	}
	for i, e := range t.entries {
		docSet := make(map[int]struct{}, len(e.docSet))
		for d := range e.docSet {
			docSet[d] = struct{}{}
		}
		c.entries[i] = &entry{
			identity:  e.identity,
			count:     e.count,
			documents: slices.Clone(e.documents),
			docSet:    docSet,
		}
	}
	return c
}

func (t *Table) valid(h Handle) bool {
	return h >= 0 && int(h) < len(t.entries)
}
