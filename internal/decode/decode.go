// Package decode turns the serialized annotation fields of a document into
// typed values. Every field is decoded by an ordered chain of candidate
// parsers; the first candidate that succeeds wins, and when all of them fail
// the field decodes to an empty value and a warning is logged. Nothing in
// this package returns an error to its caller.
package decode

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/TobiSchelling/annograph/internal/corpus"
)

// Field names a decodable document field.
type Field string

const (
	FieldKeywords Field = "keywords"
	FieldEntities Field = "entities"
	FieldTriples  Field = "triples"
	FieldRoles    Field = "roles"
)

// Outcome records which candidate produced a field's value.
type Outcome string

const (
	OutcomeEmpty      Outcome = "empty"
	OutcomeStructured Outcome = "structured"
	OutcomeRepaired   Outcome = "repaired"
	OutcomeFallback   Outcome = "fallback"
	OutcomeFailed     Outcome = "failed"
)

// Observer is notified once per decoded field.
type Observer interface {
	Observe(field Field, outcome Outcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(field Field, outcome Outcome)

func (f ObserverFunc) Observe(field Field, outcome Outcome) { f(field, outcome) }

// Predicates used for triples synthesized from role columns.
const (
	PredicateDirects   = "导演"
	PredicateActsIn    = "出演"
	PredicateBelongsTo = "属于"
)

var errExhausted = errors.New("no candidate parser accepted the value")

var nullMarkers = map[string]bool{
	"":     true,
	"nan":  true,
	"none": true,
	"null": true,
	"nil":  true,
	"n/a":  true,
}

// candidate is one encoding the chain will try.
type candidate[T any] struct {
	outcome Outcome
	parse   func(raw string) (T, error)
}

// runChain applies candidates in order and stops at the first success.
func runChain[T any](raw string, chain []candidate[T]) (T, Outcome, error) {
	var errs []error
	for _, c := range chain {
		v, err := c.parse(raw)
		if err == nil {
			return v, c.outcome, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", c.outcome, err))
	}
	var zero T
	return zero, OutcomeFailed, errors.Join(append([]error{errExhausted}, errs...)...)
}

// Decoder decodes annotation fields. The zero value is ready to use.
type Decoder struct {
	observer Observer
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithObserver reports every field outcome to o.
func WithObserver(o Observer) Option {
	return func(d *Decoder) { d.observer = o }
}

// New creates a Decoder.
func New(opts ...Option) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var std = New()

// Keywords decodes a keyword field with the default decoder.
func Keywords(raw string) []string { return std.Keywords(raw) }

// DecodeEntities decodes an entity field with the default decoder.
func DecodeEntities(raw string) Entities { return std.Entities(raw) }

// Triples decodes a triple field with the default decoder.
func Triples(raw string) []Triple { return std.Triples(raw) }

// Keywords splits a comma-delimited keyword list. A JSON array of strings is
// accepted as well.
func (d *Decoder) Keywords(raw string) []string {
	return d.keywords(raw, -1)
}

// Entities decodes a named-entity field.
func (d *Decoder) Entities(raw string) Entities {
	return d.entities(raw, -1)
}

// Triples decodes a relation-triple field.
func (d *Decoder) Triples(raw string) []Triple {
	return d.triples(raw, -1)
}

func (d *Decoder) keywords(raw string, docID int) []string {
	if isNull(raw) {
		d.observe(FieldKeywords, OutcomeEmpty)
		return []string{}
	}
	kws, outcome, err := runChain(raw, keywordChain)
	if err != nil {
		d.fail(FieldKeywords, raw, docID, err)
		return []string{}
	}
	d.observe(FieldKeywords, outcome)
	return kws
}

func (d *Decoder) entities(raw string, docID int) Entities {
	if isNull(raw) {
		d.observe(FieldEntities, OutcomeEmpty)
		return emptyEntities()
	}
	ents, outcome, err := runChain(raw, entityChain)
	if err != nil {
		d.fail(FieldEntities, raw, docID, err)
		return emptyEntities()
	}
	d.observe(FieldEntities, outcome)
	return ents
}

func (d *Decoder) triples(raw string, docID int) []Triple {
	if isNull(raw) {
		d.observe(FieldTriples, OutcomeEmpty)
		return []Triple{}
	}
	triples, outcome, err := runChain(raw, tripleChain)
	if err != nil {
		d.fail(FieldTriples, raw, docID, err)
		return []Triple{}
	}
	d.observe(FieldTriples, outcome)
	return triples
}

// Document decodes every annotation field of doc. For role tables the
// entities and triples are derived from the director, actor and genre
// columns; any authored triples are appended after the derived ones.
func (d *Decoder) Document(doc corpus.Document, roleTable bool) Record {
	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = fmt.Sprintf("Document %d", doc.ID)
	}

	rec := Record{
		DocumentID: doc.ID,
		Title:      title,
		Keywords:   d.keywords(doc.Keywords, doc.ID),
	}

	if !roleTable {
		rec.Entities = d.entities(doc.Entities, doc.ID)
		rec.Mentions = rec.Entities.Mentions()
		rec.Triples = d.triples(doc.Triples, doc.ID)
		return rec
	}

	directors := splitList(doc.Directors)
	actors := splitList(doc.Actors)
	genres := splitList(doc.Genres)
	if len(directors)+len(actors)+len(genres) == 0 {
		d.observe(FieldRoles, OutcomeEmpty)
	} else {
		d.observe(FieldRoles, OutcomeStructured)
	}

	rec.Entities = Entities{
		Person:       append(append([]string{}, directors...), actors...),
		Place:        []string{},
		Organization: append([]string{}, genres...),
	}
	rec.Mentions = make([]Mention, 0, len(directors)+len(actors)+len(genres))
	rec.Triples = make([]Triple, 0, len(directors)+len(actors)+len(genres))
	for _, n := range directors {
		rec.Mentions = append(rec.Mentions, Mention{Name: n, Category: Director})
		rec.Triples = append(rec.Triples, Triple{Subject: n, Predicate: PredicateDirects, Object: title})
	}
	for _, n := range actors {
		rec.Mentions = append(rec.Mentions, Mention{Name: n, Category: Actor})
		rec.Triples = append(rec.Triples, Triple{Subject: n, Predicate: PredicateActsIn, Object: title})
	}
	for _, n := range genres {
		rec.Mentions = append(rec.Mentions, Mention{Name: n, Category: Genre})
		rec.Triples = append(rec.Triples, Triple{Subject: title, Predicate: PredicateBelongsTo, Object: n})
	}

	if !isNull(doc.Triples) {
		rec.Triples = append(rec.Triples, d.triples(doc.Triples, doc.ID)...)
	}
	if len(rec.Keywords) == 0 {
		rec.Keywords = append([]string{}, genres...)
	}
	return rec
}

func (d *Decoder) observe(field Field, outcome Outcome) {
	if d.observer != nil {
		d.observer.Observe(field, outcome)
	}
}

func (d *Decoder) fail(field Field, raw string, docID int, err error) {
	d.observe(field, OutcomeFailed)
	kv := []any{"field", string(field), "raw", truncate(raw, 80), "err", err}
	if docID >= 0 {
		kv = append([]any{"document", docID}, kv...)
	}
	log.Warn("field decode failed; using empty value", kv...)
}

func isNull(raw string) bool {
	return nullMarkers[strings.ToLower(strings.TrimSpace(raw))]
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
