package query

import (
	"iter"
	"slices"

	"github.com/kailas-cloud/semdex/internal/domain/item"
	"github.com/kailas-cloud/semdex/internal/domain/predicate"
)

// Result is one page of matches.
type Result[T item.Item] struct {
	Items []T
	// Total counts every match before pagination.
	Total       int
	Explanation string
}

// Execute runs q over items. The caller must not mutate items during the call.
// Matches keep scan order unless q sorts them; sorting is stable.
func Execute[T item.Item](q Query, items []T) Result[T] {
	return ExecuteSeq(q, slices.Values(items))
}

// ExecuteSeq runs q over a sequence, consuming it fully.
func ExecuteSeq[T item.Item](q Query, seq iter.Seq[T]) Result[T] {
	var matches []T
	for it := range seq {
		if q.Matches(it) {
			matches = append(matches, it)
		}
	}
	total := len(matches)

	if len(q.sort) > 0 {
		slices.SortStableFunc(matches, func(a, b T) int { return compareKeys(q.sort, a, b) })
	}

	return Result[T]{
		Items:       paginate(matches, q.offset, q.limit),
		Total:       total,
		Explanation: q.Explain(),
	}
}

func paginate[T any](matches []T, offset, limit int) []T {
	if offset >= len(matches) {
		return []T{}
	}
	end := len(matches)
	if limit > 0 && limit < end-offset {
		end = offset + limit
	}
	return slices.Clone(matches[offset:end])
}

// Filter returns the items satisfying p, in order.
func Filter[T item.Item](items []T, p predicate.Predicate) []T {
	var out []T
	for _, it := range items {
		if p.Matches(it) {
			out = append(out, it)
		}
	}
	return out
}

// Count returns the number of items matching q, ignoring pagination.
func Count[T item.Item](q Query, items []T) int {
	n := 0
	for _, it := range items {
		if q.Matches(it) {
			n++
		}
	}
	return n
}

// First returns the first item of the query's first page.
func First[T item.Item](q Query, items []T) (T, bool) {
	res := Execute(q, items)
	if len(res.Items) == 0 {
		var zero T
		return zero, false
	}
	return res.Items[0], true
}

// Exists reports whether any item matches q.
func Exists[T item.Item](q Query, items []T) bool {
	return slices.ContainsFunc(items, func(it T) bool { return q.Matches(it) })
}
