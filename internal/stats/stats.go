// Package stats computes corpus aggregates over decoded documents: keyword
// and entity frequencies, sentiment buckets, a content length histogram, a
// date series, and the topic and triple tables shown on the analysis page.
//
// An Engine never fails on bad input. Unparsable numbers and missing fields
// are excluded from the affected aggregate only, and an empty corpus yields
// empty, non-nil results.
package stats

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/TobiSchelling/annograph/internal/corpus"
	"github.com/TobiSchelling/annograph/internal/decode"
)

// OtherLabel names the remainder bucket of the topic distribution.
const OtherLabel = "Other"

var datePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// Options holds the tunable thresholds.
type Options struct {
	SentimentHigh float64
	SentimentLow  float64
}

// DefaultOptions are the default sentiment thresholds.
var DefaultOptions = Options{SentimentHigh: 0.6, SentimentLow: 0.4}

// Validate checks that the thresholds are ordered.
func (o Options) Validate() error {
	if o.SentimentHigh <= o.SentimentLow {
		return fmt.Errorf("sentiment high threshold %.2f must exceed low threshold %.2f", o.SentimentHigh, o.SentimentLow)
	}
	return nil
}

// TermCount is one row of a frequency table.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// EntityCount is one row of the entity frequency table.
type EntityCount struct {
	Name     string          `json:"name"`
	Category decode.Category `json:"category"`
	Count    int             `json:"count"`
}

// Distribution is the sentiment bucket count.
type Distribution struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// Total is the number of documents bucketed.
func (d Distribution) Total() int { return d.Positive + d.Neutral + d.Negative }

// Bucket is one histogram bin covering [Low, High); the last bin is closed.
type Bucket struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// Label renders the bucket range as "low-high".
func (b Bucket) Label() string {
	return fmt.Sprintf("%d-%d", int(b.Low), int(b.High))
}

// DateCount is one point of the time series.
type DateCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// TripleStats holds the predicate, subject and object frequency tables.
type TripleStats struct {
	Predicates []TermCount `json:"predicates"`
	Subjects   []TermCount `json:"subjects"`
	Objects    []TermCount `json:"objects"`
}

// Summary is the headline count set of a corpus.
type Summary struct {
	Documents      int `json:"documents"`
	WithContent    int `json:"with_content"`
	Keywords       int `json:"keywords"`
	DistinctTerms  int `json:"distinct_keywords"`
	EntityMentions int `json:"entity_mentions"`
	Identities     int `json:"identities"`
	Triples        int `json:"triples"`
	Dated          int `json:"dated"`
}

// Engine computes aggregates over a fixed set of documents and their
// decoded records. records[i] must belong to docs[i].
type Engine struct {
	docs    []corpus.Document
	records []decode.Record
	opts    Options
}

// New creates an Engine.
func New(docs []corpus.Document, records []decode.Record, opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(docs) != len(records) {
		return nil, errors.New("documents and records differ in length")
	}
	return &Engine{docs: docs, records: records, opts: opts}, nil
}

func matchesCategory(filter, c decode.Category) bool {
	switch {
	case filter == "" || filter == c:
		return true
	case filter == decode.Person:
		return c == decode.Director || c == decode.Actor
	}
	return false
}

// KeywordFrequencies counts every decoded keyword across the corpus, sorted
// by count descending, then term.
func (e *Engine) KeywordFrequencies() []TermCount {
	counts := make(map[string]int)
	var order []string
	for _, r := range e.records {
		for _, kw := range r.Keywords {
			if counts[kw] == 0 {
				order = append(order, kw)
			}
			counts[kw]++
		}
	}
	return sortedTerms(order, counts)
}

// EntityFrequencies counts entity mentions. An empty filter counts every
// category; otherwise only mentions of that category are counted. Person
// also matches the director and actor mentions of a role table.
func (e *Engine) EntityFrequencies(filter decode.Category) []EntityCount {
	type key struct {
		name     string
		category decode.Category
	}
	counts := make(map[key]int)
	var order []key
	for _, r := range e.records {
		for _, m := range r.Mentions {
			if !matchesCategory(filter, m.Category) {
				continue
			}
			name := strings.TrimSpace(m.Name)
			if name == "" {
				continue
			}
			k := key{name, m.Category}
			if counts[k] == 0 {
				order = append(order, k)
			}
			counts[k]++
		}
	}

	out := make([]EntityCount, 0, len(order))
	for _, k := range order {
		out = append(out, EntityCount{Name: k.name, Category: k.category, Count: counts[k]})
	}
	slices.SortStableFunc(out, func(a, b EntityCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return out
}

// SentimentDistribution buckets documents by score: above the high
// threshold is positive, below the low threshold negative, anything else,
// including a missing or unparsable score, neutral.
func (e *Engine) SentimentDistribution() Distribution {
	var d Distribution
	for _, doc := range e.docs {
		score, ok := parseScore(doc.Sentiment)
		switch {
		case ok && score > e.opts.SentimentHigh:
			d.Positive++
		case ok && score < e.opts.SentimentLow:
			d.Negative++
		default:
			d.Neutral++
		}
	}
	return d
}

func parseScore(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// LengthHistogram partitions content lengths, in characters, into the given
// number of equal-width bins over the observed [min, max] range. Documents without
// content are left out. When every length is equal there is a single bin.
func (e *Engine) LengthHistogram(buckets int) []Bucket {
	buckets = max(buckets, 1)

	var lengths []int
	for _, doc := range e.docs {
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}
		lengths = append(lengths, utf8.RuneCountInString(doc.Content))
	}
	if len(lengths) == 0 {
		return []Bucket{}
	}

	lo, hi := slices.Min(lengths), slices.Max(lengths)
	if lo == hi {
		return []Bucket{{Low: float64(lo), High: float64(hi), Count: len(lengths)}}
	}

	width := float64(hi-lo) / float64(buckets)
	out := make([]Bucket, buckets)
	for i := range out {
		out[i].Low = float64(lo) + float64(i)*width
		out[i].High = float64(lo) + float64(i+1)*width
	}
	out[buckets-1].High = float64(hi)

	for _, l := range lengths {
		i := int(float64(l-lo) / width)
		if i >= buckets {
			i = buckets - 1
		}
		out[i].Count++
	}
	return out
}

// TimeSeries counts documents per calendar date found in the timestamp
// field, ascending. Documents without a date are left out.
func (e *Engine) TimeSeries() []DateCount {
	counts := make(map[string]int)
	for _, doc := range e.docs {
		if date := datePattern.FindString(doc.Timestamp); date != "" {
			counts[date]++
		}
	}
	out := make([]DateCount, 0, len(counts))
	for date, n := range counts {
		out = append(out, DateCount{Date: date, Count: n})
	}
	slices.SortFunc(out, func(a, b DateCount) int { return cmp.Compare(a.Date, b.Date) })
	return out
}

// TopicDistribution takes the first keyword of each document as its topic
// and returns the top topics plus an Other bucket for the rest.
func (e *Engine) TopicDistribution(top int) []TermCount {
	counts := make(map[string]int)
	var order []string
	total := 0
	for _, r := range e.records {
		if len(r.Keywords) == 0 {
			continue
		}
		topic := r.Keywords[0]
		if counts[topic] == 0 {
			order = append(order, topic)
		}
		counts[topic]++
		total++
	}

	out := Top(sortedTerms(order, counts), top)
	shown := 0
	for _, tc := range out {
		shown += tc.Count
	}
	if rest := total - shown; rest > 0 {
		out = append(out, TermCount{Term: OtherLabel, Count: rest})
	}
	return out
}

// TripleStatistics returns the most frequent predicates, subjects and
// objects across every decoded triple.
func (e *Engine) TripleStatistics(top int) TripleStats {
	pred, subj, obj := map[string]int{}, map[string]int{}, map[string]int{}
	var po, so, oo []string
	for _, r := range e.records {
		for _, t := range r.Triples {
			po = tally(pred, po, t.Predicate)
			so = tally(subj, so, t.Subject)
			oo = tally(obj, oo, t.Object)
		}
	}
	return TripleStats{
		Predicates: Top(sortedTerms(po, pred), top),
		Subjects:   Top(sortedTerms(so, subj), top),
		Objects:    Top(sortedTerms(oo, obj), top),
	}
}

// Summary returns the headline counts.
func (e *Engine) Summary() Summary {
	s := Summary{Documents: len(e.docs)}
	terms := make(map[string]bool)
	ids := make(map[decode.Mention]bool)
	for _, r := range e.records {
		s.Keywords += len(r.Keywords)
		for _, kw := range r.Keywords {
			terms[kw] = true
		}
		for _, m := range r.Mentions {
			if strings.TrimSpace(m.Name) == "" {
				continue
			}
			s.EntityMentions++
			ids[decode.Mention{Name: strings.TrimSpace(m.Name), Category: m.Category}] = true
		}
		s.Triples += len(r.Triples)
	}
	for _, doc := range e.docs {
		if strings.TrimSpace(doc.Content) != "" {
			s.WithContent++
		}
		if datePattern.MatchString(doc.Timestamp) {
			s.Dated++
		}
	}
	s.DistinctTerms = len(terms)
	s.Identities = len(ids)
	return s
}

// Top returns the first n items; n <= 0 returns all of them.
func Top[T any](items []T, n int) []T {
	if n <= 0 || n >= len(items) {
		return items
	}
	return items[:n]
}

func tally(counts map[string]int, order []string, term string) []string {
	if counts[term] == 0 {
		order = append(order, term)
	}
	counts[term]++
	return order
}

func sortedTerms(order []string, counts map[string]int) []TermCount {
	out := make([]TermCount, 0, len(order))
	for _, t := range order {
		out = append(out, TermCount{Term: t, Count: counts[t]})
	}
	slices.SortFunc(out, func(a, b TermCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Term, b.Term)
	})
	return out
}
