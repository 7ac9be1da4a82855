// Package cluster groups documents into topics by Ward linkage over their
// keyword vectors.
package cluster

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/TobiSchelling/annograph/internal/decode"
)

const (
	UnclusteredLabel    = "Unclustered"
	DefaultThreshold    = 1.0
	DefaultMaxDocuments = 500
	labelKeywords       = 3
)

// Topic is one group of documents sharing keywords.
type Topic struct {
	Label     string   `json:"label"`
	Keywords  []string `json:"keywords"`
	Documents []int    `json:"documents"`
}

// Size is the number of documents in the topic.
func (t Topic) Size() int { return len(t.Documents) }

// Cluster groups records by their keywords. Each record becomes an
// L2-normalized keyword count vector; Ward linkage is cut at threshold and
// every group of two or more documents becomes a topic labelled by its most
// frequent keywords. Documents left alone go to a trailing Unclustered topic.
// Records without keywords are skipped, and only the first maxDocs records
// with keywords are considered.
func Cluster(records []decode.Record, threshold float64, maxDocs int) []Topic {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if maxDocs <= 0 {
		maxDocs = DefaultMaxDocuments
	}

	var docs []decode.Record
	for _, r := range records {
		if len(r.Keywords) > 0 {
			docs = append(docs, r)
		}
	}
	if len(docs) > maxDocs {
		log.Debug("clustering capped", "documents", len(docs), "max", maxDocs)
		docs = docs[:maxDocs]
	}

	if len(docs) == 0 {
		return []Topic{}
	}
	if len(docs) < 2 {
		return []Topic{unclustered(docs)}
	}

	vectors := keywordVectors(docs)
	merges := wardLinkage(pairwiseDistances(vectors))
	labels := cutDendrogram(merges, len(docs), threshold)

	groups := make(map[int][]decode.Record)
	for i, l := range labels {
		groups[l] = append(groups[l], docs[i])
	}

	var topics []Topic
	var singles []decode.Record
	for l := 0; l < len(groups); l++ {
		group := groups[l]
		if len(group) < 2 {
			singles = append(singles, group...)
			continue
		}
		keywords := topKeywords(group, labelKeywords)
		topics = append(topics, Topic{
			Label:     generateLabel(group, keywords),
			Keywords:  keywords,
			Documents: documentIDs(group),
		})
	}
	slices.SortStableFunc(topics, func(a, b Topic) int {
		return cmp.Compare(b.Size(), a.Size())
	})

	if len(singles) > 0 {
		topics = append(topics, unclustered(singles))
	}

	log.Debug("clustering complete", "topics", len(topics), "unclustered", len(singles), "documents", len(docs))
	return topics
}

func unclustered(docs []decode.Record) Topic {
	return Topic{Label: UnclusteredLabel, Keywords: []string{}, Documents: documentIDs(docs)}
}

func documentIDs(docs []decode.Record) []int {
	ids := make([]int, len(docs))
	for i, d := range docs {
		ids[i] = d.DocumentID
	}
	slices.Sort(ids)
	return ids
}

// keywordVectors builds one L2-normalized count vector per record over the
// shared keyword vocabulary.
func keywordVectors(docs []decode.Record) [][]float64 {
	vocab := make(map[string]int)
	for _, d := range docs {
		for _, kw := range d.Keywords {
			if _, ok := vocab[kw]; !ok {
				vocab[kw] = len(vocab)
			}
		}
	}

	vectors := make([][]float64, len(docs))
	for i, d := range docs {
		v := make([]float64, len(vocab))
		for _, kw := range d.Keywords {
			v[vocab[kw]]++
		}
		var norm float64
		for _, x := range v {
			norm += x * x
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for k := range v {
				v[k] /= norm
			}
		}
		vectors[i] = v
	}
	return vectors
}

// topKeywords returns the n most frequent keywords of a group, ties broken
// alphabetically.
func topKeywords(group []decode.Record, n int) []string {
	counts := make(map[string]int)
	for _, d := range group {
		for _, kw := range d.Keywords {
			counts[kw]++
		}
	}
	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	slices.SortFunc(words, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

func generateLabel(group []decode.Record, keywords []string) string {
	if len(keywords) > 0 {
		return strings.Join(keywords, " / ")
	}

	// Fallback: first title truncated
	title := []rune(group[0].Title)
	if len(title) > 50 {
		title = title[:50]
	}
	return string(title)
}
