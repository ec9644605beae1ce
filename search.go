package semdex

import (
	"time"

	"github.com/kailas-cloud/semdex/internal/domain/item"
	"github.com/kailas-cloud/semdex/internal/domain/predicate"
)

// Predicate is a composable filter over indexed items. Build one with the
// constructors below; invalid arguments surface as a *QueryError when the query runs.
type Predicate struct {
	p predicate.Predicate
}

// String renders the predicate as an English phrase.
func (p Predicate) String() string { return p.p.Phrase() }

// Field matches items whose field equals value after normalization.
func Field(field, value string) Predicate {
	return Predicate{predicate.FieldEquals(field, value)}
}

// FieldIn matches items whose field equals any of values.
func FieldIn(field string, values ...string) Predicate {
	return Predicate{predicate.FieldIn(field, values...)}
}

// StartsWith matches items whose field value begins with prefix, compared as plain text.
func StartsWith(field, prefix string) Predicate {
	return Predicate{predicate.FieldStartsWith(field, prefix)}
}

// Under matches items whose hierarchical value is ref or lies beneath it.
func Under(field, ref string) Predicate {
	return Predicate{predicate.HierarchyMatches(field, ref, false)}
}

// Exactly matches items whose hierarchical value is ref and nothing deeper.
func Exactly(field, ref string) Predicate {
	return Predicate{predicate.HierarchyMatches(field, ref, true)}
}

// Depth matches items whose value has between min and max path segments.
// A negative bound is open.
func Depth(field string, min, max int) Predicate {
	return Predicate{predicate.HierarchyDepth(field, min, max)}
}

// TextContains matches items whose text contains substring.
func TextContains(substring string, caseSensitive bool) Predicate {
	return Predicate{predicate.TextContains(substring, caseSensitive)}
}

// TextMatches matches items whose text satisfies fn. description names it in explanations.
func TextMatches(fn func(string) bool, description string) Predicate {
	return Predicate{predicate.TextMatches(fn, description)}
}

// Metadata matches items whose metadata key equals value.
func Metadata(key string, value any) Predicate {
	return Predicate{predicate.MetadataEquals(key, value)}
}

// HasMetadata matches items that carry key.
func HasMetadata(key string) Predicate {
	return Predicate{predicate.MetadataExists(key)}
}

// CreatedAfter matches items created after t.
func CreatedAfter(t time.Time, inclusive bool) Predicate {
	return Predicate{predicate.CreatedAfter(t, inclusive)}
}

// CreatedBefore matches items created before t.
func CreatedBefore(t time.Time, inclusive bool) Predicate {
	return Predicate{predicate.CreatedBefore(t, inclusive)}
}

// UpdatedAfter matches items updated after t.
func UpdatedAfter(t time.Time, inclusive bool) Predicate {
	return Predicate{predicate.UpdatedAfter(t, inclusive)}
}

// UpdatedBefore matches items updated before t.
func UpdatedBefore(t time.Time, inclusive bool) Predicate {
	return Predicate{predicate.UpdatedBefore(t, inclusive)}
}

// Custom matches items for which fn returns true. The item is passed as the
// low-level Item.
func Custom(fn func(Item) bool, description string) Predicate {
	if fn == nil {
		return Predicate{predicate.Custom(nil, description)}
	}
	return Predicate{predicate.Custom(func(it item.Item) bool {
		ix, ok := it.(item.Indexed)
		if !ok {
			return false
		}
		return fn(fromIndexed(ix))
	}, description)}
}

// And matches items satisfying every child.
func And(children ...Predicate) Predicate { return Predicate{predicate.And(unwrap(children)...)} }

// Or matches items satisfying at least one child.
func Or(children ...Predicate) Predicate { return Predicate{predicate.Or(unwrap(children)...)} }

// Not inverts a predicate.
func Not(child Predicate) Predicate { return Predicate{predicate.Not(child.p)} }

func unwrap(ps []Predicate) []predicate.Predicate {
	out := make([]predicate.Predicate, len(ps))
	for i, p := range ps {
		out[i] = p.p
	}
	return out
}
