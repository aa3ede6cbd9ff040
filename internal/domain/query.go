package domain

import "time"

const (
	DefaultMaxResults = 5
	MaxResultsLimit   = 20
)

// QuerySpec is the structured form of a free-text search question.
// MaxResults always lies in [1, MaxResultsLimit] when built with NewQuerySpec.
type QuerySpec struct {
	Keyword       *string
	Severity      *Severity
	MaxResults    int
	PublishedFrom *time.Time
	PublishedTo   *time.Time
	RawQuestion   string
}

// NewQuerySpec builds a spec and clamps maxResults.
func NewQuerySpec(rawQuestion string, keyword *string, severity *Severity, maxResults int, from, to *time.Time) QuerySpec {
	return QuerySpec{
		Keyword:       keyword,
		Severity:      severity,
		MaxResults:    ClampMaxResults(maxResults),
		PublishedFrom: from,
		PublishedTo:   to,
		RawQuestion:   rawQuestion,
	}
}

// ClampMaxResults defaults non-positive values to DefaultMaxResults and caps at MaxResultsLimit.
func ClampMaxResults(n int) int {
	if n <= 0 {
		return DefaultMaxResults
	}
	if n > MaxResultsLimit {
		return MaxResultsLimit
	}
	return n
}
