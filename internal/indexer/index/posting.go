// Package index holds the in-memory inverted indexes built from the catalog:
// positional indexes for free-text fields and categorical (set) indexes for
// attribute fields. Builders are safe for concurrent writers; Snapshots are
// frozen copies meant for read-only querying and export.
package index

import "sort"

// Lookup is the read side shared by every index kind. DocIDs reports the
// documents that carry term and whether the term exists at all.
type Lookup interface {
	DocIDs(term string) ([]string, bool)
}

// Postings maps a document ID to the ordered positions of a term in that
// document's field.
type Postings map[string][]int

// PositionalSnapshot is a frozen term -> document -> positions index.
type PositionalSnapshot map[string]Postings

// DocIDs returns the documents holding term, sorted.
func (s PositionalSnapshot) DocIDs(term string) ([]string, bool) {
	postings, ok := s[term]
	if !ok {
		return nil, false
	}
	ids := make([]string, 0, len(postings))
	for docID := range postings {
		ids = append(ids, docID)
	}
	sort.Strings(ids)
	return ids, true
}

// Positions returns the positions of term in docID, or nil.
func (s PositionalSnapshot) Positions(term, docID string) []int {
	return s[term][docID]
}

// Terms returns every term of the index in lexical order.
func (s PositionalSnapshot) Terms() []string {
	return sortedKeys(s)
}

// CategoricalSnapshot is a frozen term -> documents index. Each list holds
// a document at most once.
type CategoricalSnapshot map[string][]string

// DocIDs returns the documents holding term.
func (s CategoricalSnapshot) DocIDs(term string) ([]string, bool) {
	ids, ok := s[term]
	return ids, ok
}

// Terms returns every term of the index in lexical order.
func (s CategoricalSnapshot) Terms() []string {
	return sortedKeys(s)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
