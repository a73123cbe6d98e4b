// Package e2e provides end-to-end tests with a corpus of near-duplicate note groups.
package e2e

import (
	"fmt"
	"strings"
)

// CorpusNote is one note file in the corpus.
type CorpusNote struct {
	FileName string
	Text     string
	Group    int
}

// Corpus holds groups of notes that share the same words. Notes in one group differ only in
// case, word order, and punctuation, so they must be reported as similar to each other and to
// nothing else.
type Corpus struct {
	Notes      []CorpusNote
	GroupSize  int
	TotalNotes int
}

var topics = []string{
	"Python is a high-level programming language used for web development and data science.",
	"Kubernetes is an open-source container orchestration platform that automates deployment and scaling.",
	"React is a JavaScript library where hooks and components enable building user interfaces.",
	"Go is a statically typed language and concurrency is achieved with goroutines and channels.",
	"PostgreSQL is an advanced relational database that supports JSON and full-text search.",
	"Docker enables building and shipping applications as portable container images.",
	"Machine learning is a subset of AI where algorithms learn patterns from data.",
	"Neural networks are inspired by the brain and deep learning powers modern AI.",
	"Redis is an in-memory key value store often used as a cache or message broker.",
	"Terraform describes infrastructure as code and plans changes before applying them.",
	"Prometheus scrapes metrics over HTTP and stores them as labelled time series.",
	"Event sourcing records every state change as an immutable event in an append-only log.",
}

// BuildCorpus returns groupSize variants for every topic.
func BuildCorpus(groupSize int) *Corpus {
	var notes []CorpusNote
	for g, text := range topics {
		for v := 0; v < groupSize; v++ {
			notes = append(notes, CorpusNote{
				FileName: fmt.Sprintf("topic-%02d-%d.md", g+1, v+1),
				Text:     variant(text, v),
				Group:    g,
			})
		}
	}
	return &Corpus{Notes: notes, GroupSize: groupSize, TotalNotes: len(notes)}
}

// variant rewrites text without changing its multiset of lowercase words.
func variant(text string, v int) string {
	words := strings.Fields(strings.TrimSuffix(text, "."))
	switch v % 3 {
	case 0:
		return text
	case 1:
		return strings.ToUpper(strings.Join(words, " ")) + "!"
	default:
		for i, j := 0, len(words)-1; i < j; i, j = i+1, j-1 {
			words[i], words[j] = words[j], words[i]
		}
		return strings.Join(words, ", ") + "?"
	}
}

// Groups maps every note text to its group number.
func (c *Corpus) Groups() map[string]int {
	out := make(map[string]int, len(c.Notes))
	for _, n := range c.Notes {
		out[n.Text] = n.Group
	}
	return out
}
