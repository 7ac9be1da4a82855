package decode

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var (
	errNotStructured = errors.New("value does not look structured")
	errLooksBroken   = errors.New("value looks like a broken structure")
	errNoRecords     = errors.New("no usable records")
	errWrongShape    = errors.New("unexpected JSON shape")
)

var keywordChain = []candidate[[]string]{
	{OutcomeStructured, parseJSONStringList},
	{OutcomeRepaired, func(raw string) ([]string, error) { return parseRepairedJSON(raw, keywordsFromJSON) }},
	{OutcomeFallback, parseDelimitedList},
}

var entityChain = []candidate[Entities]{
	{OutcomeStructured, func(raw string) (Entities, error) { return parseJSON(raw, entitiesFromJSON) }},
	{OutcomeRepaired, func(raw string) (Entities, error) { return parseRepairedJSON(raw, entitiesFromJSON) }},
	{OutcomeFallback, parseFlatEntities},
}

var tripleChain = []candidate[[]Triple]{
	{OutcomeStructured, func(raw string) ([]Triple, error) { return parseJSON(raw, triplesFromJSON) }},
	{OutcomeRepaired, func(raw string) ([]Triple, error) { return parseRepairedJSON(raw, triplesFromJSON) }},
	{OutcomeFallback, parseTuples},
}

// looksStructured reports whether raw opens like a JSON object or array.
func looksStructured(raw string) bool {
	s := strings.TrimSpace(raw)
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// parseJSON unmarshals raw and hands the generic value to interpret. A JSON
// string holding JSON (double encoding) is unwrapped once.
func parseJSON[T any](raw string, interpret func(any) (T, error)) (T, error) {
	var zero T
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		return zero, err
	}
	if inner, ok := v.(string); ok && looksStructured(inner) {
		if err := json.Unmarshal([]byte(strings.TrimSpace(inner)), &v); err != nil {
			return zero, err
		}
	}
	return interpret(v)
}

// parseRepairedJSON runs jsonrepair over values that open like JSON but fail
// strict parsing: single-quoted literals, trailing commas, missing brackets.
func parseRepairedJSON[T any](raw string, interpret func(any) (T, error)) (T, error) {
	var zero T
	if !looksStructured(raw) {
		return zero, errNotStructured
	}
	repaired, err := jsonrepair.JSONRepair(strings.TrimSpace(raw))
	if err != nil {
		return zero, fmt.Errorf("json repair: %w", err)
	}
	return parseJSON(repaired, interpret)
}

// --- keywords ---

func parseJSONStringList(raw string) ([]string, error) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "[") {
		return nil, errNotStructured
	}
	var items []any
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, err
	}
	return cleanStrings(items)
}

// keywordsFromJSON accepts only a list; a repaired object is not a keyword list.
func keywordsFromJSON(v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %T", errWrongShape, v)
	}
	return cleanStrings(items)
}

func parseDelimitedList(raw string) ([]string, error) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return splitList(raw), nil
	}
	// An unrepairable bracketed list: drop the brackets and any stray quotes.
	parts := splitList(stripBrackets(s))
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(strings.Trim(p, `"'`)); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// splitList splits on ASCII and full-width commas, trimming and dropping
// empty tokens.
func splitList(raw string) []string {
	raw = strings.ReplaceAll(raw, "，", ",")
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// --- entities ---

var entityKeys = []struct {
	category Category
	keys     []string
}{
	{Person, []string{"person", "PER", "persons", "people"}},
	{Place, []string{"place", "LOC", "location", "places"}},
	{Organization, []string{"organization", "ORG", "organisation", "organizations"}},
}

func entitiesFromJSON(v any) (Entities, error) {
	out := emptyEntities()
	switch val := v.(type) {
	case map[string]any:
		for _, ek := range entityKeys {
			names, err := namesFromKeys(val, ek.keys)
			if err != nil {
				return Entities{}, fmt.Errorf("%s: %w", ek.category, err)
			}
			switch ek.category {
			case Person:
				out.Person = names
			case Place:
				out.Place = names
			case Organization:
				out.Organization = names
			}
		}
		return out, nil
	case []any:
		names, err := cleanStrings(val)
		if err != nil {
			return Entities{}, err
		}
		out.Person = names
		return out, nil
	default:
		return Entities{}, fmt.Errorf("%w: %T", errWrongShape, v)
	}
}

// namesFromKeys returns the names under the first key present.
func namesFromKeys(m map[string]any, keys []string) ([]string, error) {
	for _, k := range keys {
		raw, ok := m[k]
		if !ok || raw == nil {
			continue
		}
		switch val := raw.(type) {
		case []any:
			return cleanStrings(val)
		case string:
			return splitList(val), nil
		default:
			return nil, fmt.Errorf("%w: %T under %q", errWrongShape, raw, k)
		}
	}
	return []string{}, nil
}

// parseFlatEntities treats a plain comma list as person names.
func parseFlatEntities(raw string) (Entities, error) {
	if looksStructured(raw) {
		return Entities{}, errLooksBroken
	}
	names := splitList(raw)
	if len(names) == 0 {
		return Entities{}, errNoRecords
	}
	out := emptyEntities()
	out.Person = names
	return out, nil
}

// --- triples ---

func triplesFromJSON(v any) ([]Triple, error) {
	switch val := v.(type) {
	case map[string]any:
		t, ok := tripleFromRecord(val)
		if !ok {
			return nil, errNoRecords
		}
		return []Triple{t}, nil
	case []any:
		if len(val) == 0 {
			return []Triple{}, nil
		}
		if ts, ok := tupleStrings(val); ok {
			return ts, nil
		}
		// A bare three-string array is a single triple, not a list.
		if t, ok := tripleFromArray(val); ok {
			return []Triple{t}, nil
		}
		out := make([]Triple, 0, len(val))
		for _, item := range val {
			switch rec := item.(type) {
			case string:
				if ts, err := parseTuples(rec); err == nil {
					out = append(out, ts...)
				}
			case map[string]any:
				if t, ok := tripleFromRecord(rec); ok {
					out = append(out, t)
				}
			case []any:
				if t, ok := tripleFromArray(rec); ok {
					out = append(out, t)
				}
			}
		}
		if len(out) == 0 {
			return nil, errNoRecords
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", errWrongShape, v)
	}
}

// tupleStrings decodes a list whose every item is a "(s,p,o)" string.
func tupleStrings(items []any) ([]Triple, bool) {
	out := make([]Triple, 0, len(items))
	for _, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, false
		}
		ts, err := parseTuples(str)
		if err != nil || len(ts) != 1 {
			return nil, false
		}
		out = append(out, ts[0])
	}
	return out, true
}

func tripleFromRecord(m map[string]any) (Triple, bool) {
	s, ok1 := scalarString(m["subject"])
	p, ok2 := scalarString(m["predicate"])
	o, ok3 := scalarString(m["object"])
	if !ok1 || !ok2 || !ok3 {
		return Triple{}, false
	}
	return nonEmptyTriple(s, p, o)
}

func tripleFromArray(a []any) (Triple, bool) {
	if len(a) != 3 {
		return Triple{}, false
	}
	s, ok1 := scalarString(a[0])
	p, ok2 := scalarString(a[1])
	o, ok3 := scalarString(a[2])
	if !ok1 || !ok2 || !ok3 {
		return Triple{}, false
	}
	return nonEmptyTriple(s, p, o)
}

func nonEmptyTriple(s, p, o string) (Triple, bool) {
	if s == "" || p == "" || o == "" {
		return Triple{}, false
	}
	return Triple{Subject: s, Predicate: p, Object: o}, true
}

// parseTuples reads the "(s,p,o);(s,p,o)" encoding. Items that do not split
// into exactly three non-empty parts are dropped on their own.
func parseTuples(raw string) ([]Triple, error) {
	s := strings.NewReplacer("；", ";", "\r\n", ";", "\n", ";").Replace(raw)

	var out []Triple
	for _, item := range strings.Split(s, ";") {
		item = stripBrackets(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		parts := strings.Split(strings.ReplaceAll(item, "，", ","), ",")
		if len(parts) != 3 {
			continue
		}
		t := Triple{
			Subject:   strings.TrimSpace(parts[0]),
			Predicate: strings.TrimSpace(parts[1]),
			Object:    strings.TrimSpace(parts[2]),
		}
		if t.Subject == "" || t.Predicate == "" || t.Object == "" {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, errNoRecords
	}
	return out, nil
}

var bracketPairs = [][2]string{{"(", ")"}, {"（", "）"}, {"[", "]"}}

func stripBrackets(s string) string {
	for _, p := range bracketPairs {
		if strings.HasPrefix(s, p[0]) && strings.HasSuffix(s, p[1]) && len(s) >= len(p[0])+len(p[1]) {
			return strings.TrimSpace(s[len(p[0]) : len(s)-len(p[1])])
		}
	}
	return s
}

// --- helpers ---

// cleanStrings converts JSON list items to trimmed, non-empty strings.
// Numbers are formatted; objects and nested lists are rejected.
func cleanStrings(items []any) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		s, ok := scalarString(item)
		if !ok {
			return nil, fmt.Errorf("%w: list item %T", errWrongShape, item)
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}
