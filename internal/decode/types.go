package decode

import "strings"

// Category classifies an entity mention. The first three come from the
// annotation backends; the role categories come from tables that list the
// people and genres attached to a work.
type Category string

const (
	Person       Category = "person"
	Place        Category = "place"
	Organization Category = "organization"
	Director     Category = "director"
	Actor        Category = "actor"
	Genre        Category = "genre"
)

// Categories lists every known category in display order.
var Categories = []Category{Person, Place, Organization, Director, Actor, Genre}

// ParseCategory resolves a category name, accepting the short NER tags.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "person", "per":
		return Person, true
	case "place", "loc":
		return Place, true
	case "organization", "org":
		return Organization, true
	case "director":
		return Director, true
	case "actor":
		return Actor, true
	case "genre":
		return Genre, true
	}
	return "", false
}

// ParseFilter resolves an entity filter. Empty or "all" selects every
// category and yields the empty Category.
func ParseFilter(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return "", true
	}
	return ParseCategory(s)
}

// Entities is the decoded named-entity field of one document.
type Entities struct {
	Person       []string `json:"person"`
	Place        []string `json:"place"`
	Organization []string `json:"organization"`
}

// Empty reports whether no category holds a name.
func (e Entities) Empty() bool {
	return len(e.Person) == 0 && len(e.Place) == 0 && len(e.Organization) == 0
}

// Count returns the number of names across all categories.
func (e Entities) Count() int {
	return len(e.Person) + len(e.Place) + len(e.Organization)
}

// Mentions flattens the entities into category-tagged mentions, person
// first, then place, then organization.
func (e Entities) Mentions() []Mention {
	out := make([]Mention, 0, e.Count())
	for _, n := range e.Person {
		out = append(out, Mention{Name: n, Category: Person})
	}
	for _, n := range e.Place {
		out = append(out, Mention{Name: n, Category: Place})
	}
	for _, n := range e.Organization {
		out = append(out, Mention{Name: n, Category: Organization})
	}
	return out
}

func emptyEntities() Entities {
	return Entities{Person: []string{}, Place: []string{}, Organization: []string{}}
}

// Triple is a subject-predicate-object statement.
type Triple struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// Mention is a single entity name tagged with its category.
type Mention struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
}

// Record is everything decoded from one document.
type Record struct {
	DocumentID int       `json:"document_id"`
	Title      string    `json:"title"`
	Keywords   []string  `json:"keywords"`
	Entities   Entities  `json:"entities"`
	Mentions   []Mention `json:"mentions"`
	Triples    []Triple  `json:"triples"`
}
