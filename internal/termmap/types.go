package termmap

import "sort"

// TermMap maps source language terms to the translation they must keep
// across every batch of a video, typically names and recurring jargon.
type TermMap map[string]string

// MatchResult holds the terms found in a batch
type MatchResult struct {
	Matched TermMap
}

// Terms returns the matched source terms in a stable order
func (r MatchResult) Terms() []string {
	terms := make([]string, 0, len(r.Matched))
	for source := range r.Matched {
		terms = append(terms, source)
	}
	sort.Strings(terms)
	return terms
}
