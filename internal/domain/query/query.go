// Package query assembles predicates, sort keys and pagination into immutable
// queries and executes them over a collection of items.
package query

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/kailas-cloud/semdex/internal/domain/explain"
	"github.com/kailas-cloud/semdex/internal/domain/item"
	"github.com/kailas-cloud/semdex/internal/domain/predicate"
)

// Direction is a sort order.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

func (d Direction) String() string {
	if d == Desc {
		return "descending"
	}
	return "ascending"
}

// Built-in sort fields. Any other name is a descriptor field, or a metadata key
// when prefixed with MetadataPrefix.
const (
	SortCreated    = "created_at"
	SortUpdated    = "updated_at"
	SortText       = "text"
	MetadataPrefix = "metadata."
)

// SortKey orders results by one attribute.
type SortKey struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// Query is an immutable predicate tree plus sort keys and pagination.
// The zero value selects every item in scan order.
type Query struct {
	pred   predicate.Predicate
	sort   []SortKey
	offset int
	limit  int
}

// Predicate returns the predicate tree; false when the query has no filter.
func (q Query) Predicate() (predicate.Predicate, bool) {
	return q.pred, !q.pred.IsZero()
}

// Sort returns a copy of the sort keys.
func (q Query) Sort() []SortKey { return slices.Clone(q.sort) }

// Offset returns the number of matches skipped.
func (q Query) Offset() int { return q.offset }

// Limit returns the page size; 0 means unbounded.
func (q Query) Limit() int { return q.limit }

// Matches reports whether it satisfies the query filter.
func (q Query) Matches(it item.Item) bool {
	if q.pred.IsZero() {
		return true
	}
	return q.pred.Matches(it)
}

// Explain describes the query in one sentence.
func (q Query) Explain() string {
	var parts []string
	if p, ok := q.Predicate(); ok {
		parts = append(parts, "Select items where "+explain.Predicate(p))
	} else {
		parts = append(parts, "Select all items")
	}

	if len(q.sort) > 0 {
		keys := make([]string, len(q.sort))
		for i, k := range q.sort {
			keys[i] = fmt.Sprintf("%s (%s)", k.Field, k.Direction)
		}
		parts = append(parts, "sorted by "+strings.Join(keys, ", then "))
	}

	switch {
	case q.offset > 0 && q.limit > 0 && q.limit <= math.MaxInt-q.offset:
		parts = append(parts, fmt.Sprintf("showing results %d to %d", q.offset+1, q.offset+q.limit))
	case q.offset > 0 && q.limit > 0:
		parts = append(parts, fmt.Sprintf("showing results from %d onward", q.offset+1))
	case q.offset > 0:
		parts = append(parts, fmt.Sprintf("skipping first %d results", q.offset))
	case q.limit > 0:
		parts = append(parts, fmt.Sprintf("limited to %d results", q.limit))
	}
	return strings.Join(parts, ", ") + "."
}

func (q Query) String() string { return q.Explain() }
