// Package report composes a markdown report of an analysis snapshot: a
// TL;DR of the headline numbers followed by one section per topic cluster.
package report

import (
	"fmt"
	"strings"

	"github.com/TobiSchelling/annograph/internal/analysis"
	"github.com/TobiSchelling/annograph/internal/cluster"
	"github.com/TobiSchelling/annograph/internal/corpus"
	"github.com/TobiSchelling/annograph/internal/stats"
)

const brieflyNotedLabel = "Briefly Noted"

// Report is a composed markdown report.
type Report struct {
	Snapshot  string
	TLDR      string
	Body      string
	Topics    int
	Documents int
}

// Markdown joins the TL;DR and the body into one document.
func (r Report) Markdown() string {
	return "# Corpus report\n\n" + r.TLDR + "\n\n---\n\n" + r.Body + "\n"
}

// Compose builds the report for snap. top limits the keyword and entity
// lists in the TL;DR.
func Compose(snap *analysis.Snapshot, top int) Report {
	if top <= 0 {
		top = 3
	}
	topics := snap.Topics()

	var clustered int
	for _, t := range topics {
		if t.Label != cluster.UnclusteredLabel {
			clustered++
		}
	}

	return Report{
		Snapshot:  snap.ID,
		TLDR:      tldr(snap, top),
		Body:      assembleBody(topics, snap.Documents()),
		Topics:    clustered,
		Documents: snap.Len(),
	}
}

func tldr(snap *analysis.Snapshot, top int) string {
	summary := snap.Summary()
	if summary.Documents == 0 {
		return "- No documents imported."
	}
	engine := snap.Stats()

	bullets := []string{
		fmt.Sprintf("- %d documents, %d with content.", summary.Documents, summary.WithContent),
	}

	if kws := stats.Top(engine.KeywordFrequencies(), top); len(kws) > 0 {
		terms := make([]string, len(kws))
		for i, kw := range kws {
			terms[i] = fmt.Sprintf("%s (%d)", kw.Term, kw.Count)
		}
		bullets = append(bullets, fmt.Sprintf("- %d distinct keywords; most frequent: %s.",
			summary.DistinctTerms, strings.Join(terms, ", ")))
	}

	if ents := stats.Top(engine.EntityFrequencies(""), top); len(ents) > 0 {
		names := make([]string, len(ents))
		for i, e := range ents {
			names[i] = fmt.Sprintf("%s (%s, %d)", e.Name, e.Category, e.Count)
		}
		bullets = append(bullets, fmt.Sprintf("- %d entities; most mentioned: %s.",
			summary.Identities, strings.Join(names, ", ")))
	}

	dist := engine.SentimentDistribution()
	bullets = append(bullets, fmt.Sprintf("- Sentiment: %d positive, %d neutral, %d negative.",
		dist.Positive, dist.Neutral, dist.Negative))

	if summary.Triples > 0 {
		line := fmt.Sprintf("- %d relation triples", summary.Triples)
		if preds := engine.TripleStatistics(1).Predicates; len(preds) > 0 {
			line += fmt.Sprintf("; most common predicate: %s", preds[0].Term)
		}
		bullets = append(bullets, line+".")
	}
	return strings.Join(bullets, "\n")
}

func assembleBody(topics []cluster.Topic, docs []corpus.Document) string {
	var mainTopics []cluster.Topic
	var brieflyNoted *cluster.Topic
	for i := range topics {
		if topics[i].Label == cluster.UnclusteredLabel {
			brieflyNoted = &topics[i]
		} else {
			mainTopics = append(mainTopics, topics[i])
		}
	}

	var sections []string
	for _, t := range mainTopics {
		section := fmt.Sprintf("## %s\n\nKeywords: %s", t.Label, strings.Join(t.Keywords, ", "))
		section += "\n\n**Documents:**\n" + strings.Join(references(t.Documents, docs), "\n")
		sections = append(sections, section)
	}

	if brieflyNoted != nil {
		sections = append(sections, fmt.Sprintf("## %s\n\n%s",
			brieflyNotedLabel, strings.Join(references(brieflyNoted.Documents, docs), "\n")))
	}

	if len(sections) == 0 {
		return "No topics found."
	}
	return strings.Join(sections, "\n\n---\n\n")
}

func references(ids []int, docs []corpus.Document) []string {
	refs := make([]string, 0, len(ids))
	for _, id := range ids {
		if id < 0 || id >= len(docs) {
			continue
		}
		d := docs[id]
		title := d.Title
		if title == "" {
			title = fmt.Sprintf("Document %d", id)
		}
		if d.URL != "" {
			refs = append(refs, fmt.Sprintf("- [%s](%s)", title, d.URL))
		} else {
			refs = append(refs, "- "+title)
		}
	}
	return refs
}
