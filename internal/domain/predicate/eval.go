package predicate

import (
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/kailas-cloud/semdex/internal/domain/item"
	"github.com/kailas-cloud/semdex/internal/domain/normalize"
)

// Matches evaluates p against it. It has no side effects. Combinators short-circuit.
// A predicate that fails Check never matches.
func (p Predicate) Matches(it item.Item) bool {
	if p.err != nil {
		return false
	}
	switch p.kind {
	case KindAnd:
		for _, c := range p.children {
			if !c.Matches(it) {
				return false
			}
		}
		return true
	case KindOr:
		for _, c := range p.children {
			if c.Matches(it) {
				return true
			}
		}
		return false
	case KindNot:
		return len(p.children) == 1 && !p.children[0].Matches(it)
	default:
		ok, _, _ := p.evalLeaf(it)
		return ok
	}
}

// Eval evaluates a leaf and also returns the actual value it compared, rendered as
// text. present is false when the item lacks the attribute. For combinators the
// actual value is empty and present is false.
func (p Predicate) Eval(it item.Item) (matched bool, actual string, present bool) {
	if p.kind.IsCombinator() {
		return p.Matches(it), "", false
	}
	if p.err != nil {
		return false, "", false
	}
	return p.evalLeaf(it)
}

func (p Predicate) evalLeaf(it item.Item) (bool, string, bool) {
	switch p.kind {
	case KindConst:
		return p.truth, "", false
	case KindFieldEquals:
		v, ok := it.Descriptor().Get(p.field)
		return ok && v == p.value, v, ok
	case KindFieldIn:
		v, ok := it.Descriptor().Get(p.field)
		if !ok {
			return false, "", false
		}
		_, found := slices.BinarySearch(p.values, v)
		return found, v, true
	case KindFieldStartsWith:
		v, ok := it.Descriptor().Get(p.field)
		return ok && strings.HasPrefix(v, p.value), v, ok
	case KindHierarchy:
		v, ok := it.Descriptor().Get(p.field)
		if !ok {
			return false, "", false
		}
		if p.exact {
			return v == p.value, v, true
		}
		return normalize.HasPrefix(v, p.value), v, true
	case KindDepth:
		v, ok := it.Descriptor().Get(p.field)
		if !ok {
			return false, "", false
		}
		d := normalize.Depth(v)
		if p.min != Unbounded && d < p.min {
			return false, v, true
		}
		if p.max != Unbounded && d > p.max {
			return false, v, true
		}
		return true, v, true
	case KindTextContains:
		text := it.Text()
		if p.caseSensitive {
			return strings.Contains(text, p.value), text, true
		}
		return strings.Contains(strings.ToLower(text), strings.ToLower(p.value)), text, true
	case KindTextMatches:
		return p.textFn(it.Text()), it.Text(), true
	case KindMetadataEquals:
		v, ok := it.Metadata()[p.key]
		if !ok {
			return false, "", false
		}
		return metaEqual(v, p.meta), formatAny(v), true
	case KindMetadataExists:
		v, ok := it.Metadata()[p.key]
		if !ok {
			return false, "", false
		}
		return true, formatAny(v), true
	case KindTimeAfter, KindTimeBefore:
		t := timestamp(it, p.timeField)
		actual := t.UTC().Format(time.RFC3339Nano)
		if p.kind == KindTimeAfter {
			if p.inclusive {
				return !t.Before(p.at), actual, true
			}
			return t.After(p.at), actual, true
		}
		if p.inclusive {
			return !t.After(p.at), actual, true
		}
		return t.Before(p.at), actual, true
	case KindCustom:
		return p.fn(it), "", false
	default:
		return false, "", false
	}
}

func timestamp(it item.Item, f TimeField) time.Time {
	if f == Updated {
		return it.UpdatedAt()
	}
	return it.CreatedAt()
}

func metaEqual(a, b any) bool {
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}
