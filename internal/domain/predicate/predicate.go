// Package predicate is the boolean expression engine over queryable items.
//
// A Predicate is a closed tagged variant: a leaf comparing one attribute of an
// item, or a combinator over child predicates. Predicates are immutable values
// built bottom-up, so a tree can never contain itself. Constructors never fail;
// bad arguments are recorded on the leaf and reported by Check before a query
// is built.
package predicate

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kailas-cloud/semdex/internal/domain"
	"github.com/kailas-cloud/semdex/internal/domain/item"
	"github.com/kailas-cloud/semdex/internal/domain/normalize"
)

// Kind tags the predicate variant.
type Kind string

// Predicate kinds.
const (
	KindAnd             Kind = "and"
	KindOr              Kind = "or"
	KindNot             Kind = "not"
	KindConst           Kind = "const"
	KindFieldEquals     Kind = "field_equals"
	KindFieldIn         Kind = "field_in"
	KindFieldStartsWith Kind = "field_starts_with"
	KindHierarchy       Kind = "hierarchy"
	KindDepth           Kind = "depth"
	KindTextContains    Kind = "text_contains"
	KindTextMatches     Kind = "text_matches"
	KindMetadataEquals  Kind = "metadata_equals"
	KindMetadataExists  Kind = "metadata_exists"
	KindTimeAfter       Kind = "time_after"
	KindTimeBefore      Kind = "time_before"
	KindCustom          Kind = "custom"
)

// IsCombinator reports whether k composes child predicates.
func (k Kind) IsCombinator() bool {
	return k == KindAnd || k == KindOr || k == KindNot
}

// TimeField selects which item timestamp a time predicate reads.
type TimeField string

// Timestamp fields.
const (
	Created TimeField = "created_at"
	Updated TimeField = "updated_at"
)

// Unbounded disables one side of a HierarchyDepth range.
const Unbounded = -1

// Predicate is an immutable boolean expression. The zero value is invalid.
type Predicate struct {
	kind Kind

	field  string
	value  string
	values []string
	exact  bool

	min, max int

	caseSensitive bool
	textFn        func(string) bool

	key  string
	meta any

	at        time.Time
	timeField TimeField
	inclusive bool

	fn          func(item.Item) bool
	description string
	truth       bool

	children []Predicate

	err *domain.QueryError
}

// FieldEquals matches items whose field canonically equals value.
func FieldEquals(field, value string) Predicate {
	p := Predicate{kind: KindFieldEquals, field: normalize.FieldName(field)}
	p.value, p.err = operand(p.field, value)
	return p.requireField()
}

// FieldIn matches items whose field value is one of values.
// The set is canonicalized, deduplicated and sorted.
func FieldIn(field string, values ...string) Predicate {
	p := Predicate{kind: KindFieldIn, field: normalize.FieldName(field)}
	set := make([]string, 0, len(values))
	for _, raw := range values {
		v, err := operand(p.field, raw)
		if err != nil {
			p.err = err
			return p
		}
		set = append(set, v)
	}
	slices.Sort(set)
	p.values = slices.Compact(set)
	if len(p.values) == 0 {
		p.err = &domain.QueryError{Field: p.field, Msg: "field_in needs at least one value"}
	}
	return p.requireField()
}

// FieldStartsWith matches items whose canonical field value starts with prefix.
// The comparison is per character, not per hierarchy segment.
func FieldStartsWith(field, prefix string) Predicate {
	p := Predicate{kind: KindFieldStartsWith, field: normalize.FieldName(field)}
	p.value, p.err = operand(p.field, prefix)
	return p.requireField()
}

// HierarchyMatches matches items whose field is ref or, unless exact, a descendant of ref.
func HierarchyMatches(field, ref string, exact bool) Predicate {
	p := Predicate{kind: KindHierarchy, field: normalize.FieldName(field), exact: exact}
	p.value, p.err = operand(p.field, ref)
	return p.requireField()
}

// HierarchyDepth matches items whose field has between min and max segments, inclusive.
// Pass Unbounded for an open side.
func HierarchyDepth(field string, min, max int) Predicate {
	p := Predicate{kind: KindDepth, field: normalize.FieldName(field), min: min, max: max}
	switch {
	case min < Unbounded || max < Unbounded:
		p.err = &domain.QueryError{Field: p.field, Msg: fmt.Sprintf("depth bounds must be non-negative, got %d..%d", min, max)}
	case min != Unbounded && max != Unbounded && min > max:
		p.err = &domain.QueryError{Field: p.field, Msg: fmt.Sprintf("min depth %d is greater than max depth %d", min, max)}
	}
	return p.requireField()
}

// MinDepth is HierarchyDepth with no upper bound.
func MinDepth(field string, min int) Predicate { return HierarchyDepth(field, min, Unbounded) }

// MaxDepth is HierarchyDepth with no lower bound.
func MaxDepth(field string, max int) Predicate { return HierarchyDepth(field, Unbounded, max) }

// TextContains matches items whose text contains substring.
func TextContains(substring string, caseSensitive bool) Predicate {
	return Predicate{kind: KindTextContains, value: substring, caseSensitive: caseSensitive}
}

// TextMatches matches items whose text satisfies fn. The description reads after "text".
func TextMatches(fn func(string) bool, description string) Predicate {
	p := Predicate{kind: KindTextMatches, textFn: fn, description: description}
	if fn == nil {
		p.err = &domain.QueryError{Msg: "text matcher function is nil"}
	}
	return p
}

// MetadataEquals matches items whose metadata key equals value. Numbers compare by value.
func MetadataEquals(key string, value any) Predicate {
	p := Predicate{kind: KindMetadataEquals, key: key, meta: value}
	if key == "" {
		p.err = &domain.QueryError{Msg: "metadata key is required"}
	}
	return p
}

// MetadataExists matches items that have the metadata key.
func MetadataExists(key string) Predicate {
	p := Predicate{kind: KindMetadataExists, key: key}
	if key == "" {
		p.err = &domain.QueryError{Msg: "metadata key is required"}
	}
	return p
}

// TimestampAfter matches items whose timestamp is after t (or equal, when inclusive).
func TimestampAfter(field TimeField, t time.Time, inclusive bool) Predicate {
	return timePredicate(KindTimeAfter, field, t, inclusive)
}

// TimestampBefore matches items whose timestamp is before t (or equal, when inclusive).
func TimestampBefore(field TimeField, t time.Time, inclusive bool) Predicate {
	return timePredicate(KindTimeBefore, field, t, inclusive)
}

// CreatedAfter is TimestampAfter on the creation time.
func CreatedAfter(t time.Time, inclusive bool) Predicate { return TimestampAfter(Created, t, inclusive) }

// CreatedBefore is TimestampBefore on the creation time.
func CreatedBefore(t time.Time, inclusive bool) Predicate {
	return TimestampBefore(Created, t, inclusive)
}

// UpdatedAfter is TimestampAfter on the modification time.
func UpdatedAfter(t time.Time, inclusive bool) Predicate { return TimestampAfter(Updated, t, inclusive) }

// UpdatedBefore is TimestampBefore on the modification time.
func UpdatedBefore(t time.Time, inclusive bool) Predicate {
	return TimestampBefore(Updated, t, inclusive)
}

func timePredicate(kind Kind, field TimeField, t time.Time, inclusive bool) Predicate {
	p := Predicate{kind: kind, timeField: field, at: t, inclusive: inclusive}
	if field != Created && field != Updated {
		p.err = &domain.QueryError{Field: string(field), Msg: "unknown timestamp field"}
	} else if t.IsZero() {
		p.err = &domain.QueryError{Field: string(field), Msg: "timestamp is required"}
	}
	return p
}

// Custom wraps an opaque function. The description is used only for explanation.
func Custom(fn func(item.Item) bool, description string) Predicate {
	p := Predicate{kind: KindCustom, fn: fn, description: description}
	if fn == nil {
		p.err = &domain.QueryError{Msg: "custom predicate function is nil"}
	}
	return p
}

// True always matches.
func True() Predicate { return Predicate{kind: KindConst, truth: true} }

// False never matches.
func False() Predicate { return Predicate{kind: KindConst} }

// And is true iff every child is true. An empty And is true.
func And(children ...Predicate) Predicate {
	return Predicate{kind: KindAnd, children: slices.Clone(children)}
}

// Or is true iff some child is true. An empty Or is false.
func Or(children ...Predicate) Predicate {
	return Predicate{kind: KindOr, children: slices.Clone(children)}
}

// Not negates child.
func Not(child Predicate) Predicate {
	return Predicate{kind: KindNot, children: []Predicate{child}}
}

func operand(field, raw string) (string, *domain.QueryError) {
	v, err := normalize.Value(raw)
	if err != nil {
		return "", &domain.QueryError{Field: field, Value: raw, Msg: "operand cannot be normalized"}
	}
	return v, nil
}

func (p Predicate) requireField() Predicate {
	if p.field == "" && p.err == nil {
		p.err = &domain.QueryError{Msg: fmt.Sprintf("%s needs a field name", p.kind)}
	}
	return p
}

// Kind returns the variant tag.
func (p Predicate) Kind() Kind { return p.kind }

// IsZero reports whether p is the zero value.
func (p Predicate) IsZero() bool { return p.kind == "" }

// IsLeaf reports whether p has no child predicates.
func (p Predicate) IsLeaf() bool { return p.kind != "" && !p.kind.IsCombinator() }

// Field returns the canonical field name of a field leaf.
func (p Predicate) Field() string { return p.field }

// Value returns the canonical operand of an equality, prefix or hierarchy leaf,
// or the substring of a text leaf.
func (p Predicate) Value() string { return p.value }

// Values returns the FieldIn set.
func (p Predicate) Values() []string { return slices.Clone(p.values) }

// Exact reports whether a hierarchy leaf requires equality.
func (p Predicate) Exact() bool { return p.exact }

// Bounds returns the depth range of a HierarchyDepth leaf.
func (p Predicate) Bounds() (min, max int) { return p.min, p.max }

// CaseSensitive reports the TextContains mode.
func (p Predicate) CaseSensitive() bool { return p.caseSensitive }

// Key returns the metadata key.
func (p Predicate) Key() string { return p.key }

// MetaValue returns the MetadataEquals operand.
func (p Predicate) MetaValue() any { return p.meta }

// Time returns the instant of a time leaf.
func (p Predicate) Time() time.Time { return p.at }

// TimeField returns which timestamp a time leaf reads.
func (p Predicate) TimeField() TimeField { return p.timeField }

// Inclusive reports whether a time leaf accepts equality.
func (p Predicate) Inclusive() bool { return p.inclusive }

// Description returns the caller text of Custom and TextMatches leaves.
func (p Predicate) Description() string { return p.description }

// Truth returns the value of a constant predicate.
func (p Predicate) Truth() bool { return p.truth }

// Children returns a copy of the child list.
func (p Predicate) Children() []Predicate { return slices.Clone(p.children) }

func (p Predicate) String() string { return p.Phrase() }

// Walk visits p and its descendants in pre-order until fn returns false.
func Walk(p Predicate, fn func(Predicate) bool) bool {
	if !fn(p) {
		return false
	}
	for _, c := range p.children {
		if !Walk(c, fn) {
			return false
		}
	}
	return true
}

// Leaves returns every leaf of p, left to right, one entry per occurrence.
func Leaves(p Predicate) []Predicate {
	var out []Predicate
	Walk(p, func(n Predicate) bool {
		if n.IsLeaf() {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Fields returns the distinct field names referenced by p, sorted.
func Fields(p Predicate) []string {
	var out []string
	Walk(p, func(n Predicate) bool {
		if n.field != "" {
			out = append(out, n.field)
		}
		return true
	})
	slices.Sort(out)
	return slices.Compact(out)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}
