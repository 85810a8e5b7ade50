package core

import (
	"fmt"
	"math"
)

// Filter keys injected for principals that are not global admins
const (
	FilterKeyAdminsIn = "admins__in"
	FilterKeyEnabled  = "enabled"
)

// SearchQuery is the paginated search payload accepted by the search endpoints.
//
// Filter maps a field (optionally suffixed with a __operator) to either a list
// of OR-matched values or a single scalar. When Regex is set, list values are
// interpreted as case-insensitive regular expressions.
type SearchQuery struct {
	Filter map[string]interface{} `json:"filter"`
	Page   int                    `json:"page"`
	Range  int                    `json:"range"`
	Regex  bool                   `json:"regex"`
}

// Normalize applies the page and range defaults and caps range at maxRange.
// Pages beyond MaxSearchPage, or whose offset would overflow, are an
// ErrInvalidQuery.
func (q *SearchQuery) Normalize(defaultRange, maxRange int) error {
	if q.Filter == nil {
		q.Filter = map[string]interface{}{}
	}
	if q.Page < 1 {
		q.Page = DefaultSearchPage
	}
	if defaultRange < 1 {
		defaultRange = DefaultSearchRange
	}
	if maxRange < 1 {
		maxRange = MaxSearchRange
	}
	if q.Range < 1 {
		q.Range = defaultRange
	}
	if q.Range > maxRange {
		q.Range = maxRange
	}
	if q.Page > MaxSearchPage || int64(q.Page-1) > math.MaxInt64/int64(q.Range) {
		return fmt.Errorf("%w: page %d is out of range (max %d)", ErrInvalidQuery, q.Page, MaxSearchPage)
	}
	return nil
}

// Offset returns the number of documents to skip
func (q *SearchQuery) Offset() int64 {
	if q.Page <= 1 {
		return 0
	}
	return int64(q.Page-1) * int64(q.Range)
}

// SearchResult is one page of matches
type SearchResult[T any] struct {
	Items []T
	Total int64
}
