package query

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/semdex/internal/domain/item"
)

// reportTopValues bounds the values listed per field in a verbose report.
const reportTopValues = 5

// ValueCount is how often one canonical value occurs among items.
type ValueCount struct {
	Value   string  `json:"value"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// FieldDistribution lists value counts for one field, most frequent first.
type FieldDistribution struct {
	Field  string       `json:"field"`
	Values []ValueCount `json:"values"`
}

// Distribution counts descriptor values per field. With no fields given, every
// field present on some item is counted. Fields with no values are omitted.
func Distribution[T item.Item](items []T, fields ...string) []FieldDistribution {
	if len(fields) == 0 {
		for _, it := range items {
			fields = append(fields, it.Descriptor().Names()...)
		}
		slices.Sort(fields)
		fields = slices.Compact(fields)
	}

	var out []FieldDistribution
	for _, field := range fields {
		counts := make(map[string]int)
		for _, it := range items {
			if v, ok := it.Descriptor().Get(field); ok {
				counts[v]++
			}
		}
		if len(counts) == 0 {
			continue
		}
		values := make([]ValueCount, 0, len(counts))
		for v, n := range counts {
			values = append(values, ValueCount{
				Value:   v,
				Count:   n,
				Percent: float64(n) * 100 / float64(len(items)),
			})
		}
		slices.SortFunc(values, func(a, b ValueCount) int {
			if c := cmp.Compare(b.Count, a.Count); c != 0 {
				return c
			}
			return strings.Compare(a.Value, b.Value)
		})
		out = append(out, FieldDistribution{Field: field, Values: values})
	}
	return out
}

// Report summarizes the result. Verbose adds the field distribution of the page.
func (r Result[T]) Report(verbose bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\nFound %d matching items", r.Explanation, r.Total)
	if len(r.Items) < r.Total {
		fmt.Fprintf(&b, " (showing %d)", len(r.Items))
	}
	if !verbose || len(r.Items) == 0 {
		return b.String()
	}

	b.WriteString("\n\nField Distribution:")
	for _, fd := range Distribution(r.Items) {
		fmt.Fprintf(&b, "\n  %s:", fd.Field)
		for i, vc := range fd.Values {
			if i == reportTopValues {
				break
			}
			fmt.Fprintf(&b, "\n    • %s: %d (%.1f%%)", vc.Value, vc.Count, vc.Percent)
		}
	}
	return b.String()
}

// Summarize lists up to maxItems items with a text preview and their descriptor.
func Summarize[T item.Item](items []T, maxItems int) string {
	if len(items) == 0 {
		return "No items found."
	}
	lines := []string{fmt.Sprintf("Found %d items:", len(items)), ""}
	for i, it := range items {
		if i == maxItems {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, preview(it.Text(), 60)))
		if d := it.Descriptor(); !d.IsEmpty() {
			lines = append(lines, "   "+d.String())
		}
		lines = append(lines, "")
	}
	if len(items) > maxItems {
		lines = append(lines, fmt.Sprintf("... and %d more items", len(items)-maxItems))
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// Identified items carry a stable identifier.
type Identified interface {
	item.Item
	ID() string
}

// Comparison is the overlap of two result pages.
type Comparison struct {
	Common    int
	OnlyLeft  int
	OnlyRight int
}

// Compare computes the overlap of two result pages by item ID.
func Compare[T Identified](left, right Result[T]) Comparison {
	ids := make(map[string]bool, len(left.Items))
	for _, it := range left.Items {
		ids[it.ID()] = true
	}
	var c Comparison
	seen := make(map[string]bool, len(right.Items))
	for _, it := range right.Items {
		seen[it.ID()] = true
		if ids[it.ID()] {
			c.Common++
		} else {
			c.OnlyRight++
		}
	}
	for id := range ids {
		if !seen[id] {
			c.OnlyLeft++
		}
	}
	return c
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
