// Package query parses free-text triage queries into a task token and intent
// flags. Parsing is pure: no I/O, deterministic for a given keyword set.
package query

import (
	"regexp"
	"strings"

	"opstriage-agent/src/contracts"
)

var taskIDPattern = regexp.MustCompile(`(?i)TID[-_]?\d+`)

// Extractor classifies queries against configurable keyword sets.
type Extractor struct {
	performanceKeywords []string
	errorKeywords       []string
}

// NewExtractor builds an extractor. The keyword sets are matched as
// case-insensitive substrings and should be disjoint.
func NewExtractor(performanceKeywords, errorKeywords []string) *Extractor {
	return &Extractor{
		performanceKeywords: performanceKeywords,
		errorKeywords:       errorKeywords,
	}
}

// Extract parses the raw query. A query without a task token yields
// contracts.UnknownTaskID; downstream stages return empty results for it
// rather than failing.
func (e *Extractor) Extract(raw string) contracts.Query {
	q := contracts.Query{
		Raw:    raw,
		TaskID: contracts.UnknownTaskID,
	}

	if m := taskIDPattern.FindString(raw); m != "" {
		q.TaskID = m
	}

	lower := strings.ToLower(raw)
	q.IsPerformance = containsAny(lower, e.performanceKeywords)
	q.IsError = containsAny(lower, e.errorKeywords)

	return q
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
