package decode

import (
	"encoding/json"
	"strings"
)

// FormatTriples renders triples in the "(s,p,o);(s,p,o)" encoding.
func FormatTriples(triples []Triple) string {
	parts := make([]string, len(triples))
	for i, t := range triples {
		parts[i] = "(" + t.Subject + "," + t.Predicate + "," + t.Object + ")"
	}
	return strings.Join(parts, ";")
}

// MarshalTriples renders triples as a JSON array of records.
func MarshalTriples(triples []Triple) (string, error) {
	if triples == nil {
		triples = []Triple{}
	}
	data, err := json.Marshal(triples)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// MarshalEntities renders entities as a JSON object keyed by category.
func MarshalEntities(e Entities) (string, error) {
	e = normalizeEntities(e)
	data, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func normalizeEntities(e Entities) Entities {
	if e.Person == nil {
		e.Person = []string{}
	}
	if e.Place == nil {
		e.Place = []string{}
	}
	if e.Organization == nil {
		e.Organization = []string{}
	}
	return e
}
