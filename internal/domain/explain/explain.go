// Package explain renders predicate trees and per-item match traces as text.
// Output depends only on the predicate and the item, so repeated calls agree.
package explain

import (
	"strings"

	"github.com/kailas-cloud/semdex/internal/domain/item"
	"github.com/kailas-cloud/semdex/internal/domain/predicate"
)

// textPreview bounds how much item text a trace quotes.
const textPreview = 60

// Predicate renders p as a single composable phrase.
func Predicate(p predicate.Predicate) string { return p.Phrase() }

// Tree renders p as an indented structure, one node per line.
func Tree(p predicate.Predicate) string {
	var b strings.Builder
	writeTree(&b, p, 0)
	return strings.TrimSuffix(b.String(), "\n")
}

func writeTree(b *strings.Builder, p predicate.Predicate, depth int) {
	indent := strings.Repeat("  ", depth)
	switch p.Kind() {
	case predicate.KindAnd, predicate.KindOr, predicate.KindNot:
		b.WriteString(indent + strings.ToUpper(string(p.Kind())) + ":\n")
		for _, c := range p.Children() {
			writeTree(b, c, depth+1)
		}
	default:
		b.WriteString(indent + "• " + p.LeafPhrase() + "\n")
	}
}

// Step is one node of a trace.
type Step struct {
	Depth  int            `json:"depth"`
	Kind   predicate.Kind `json:"kind"`
	Phrase string         `json:"phrase"`
	Result bool           `json:"result"`
	// Actual is the item value the leaf compared; empty with HasActual false when absent.
	Actual    string `json:"actual,omitempty"`
	HasActual bool   `json:"has_actual"`
}

// Trace is the outcome of evaluating every node of a predicate against one item.
type Trace struct {
	Matched bool   `json:"matched"`
	Steps   []Step `json:"steps"`
}

// Evaluate traces p against it. Unlike Matches it visits every leaf, so the
// trace shows each comparison; the overall outcome is the same.
func Evaluate(it item.Item, p predicate.Predicate) Trace {
	var steps []Step
	matched := trace(it, p, 0, &steps)
	return Trace{Matched: matched, Steps: steps}
}

func trace(it item.Item, p predicate.Predicate, depth int, steps *[]Step) bool {
	idx := len(*steps)
	*steps = append(*steps, Step{Depth: depth, Kind: p.Kind(), Phrase: p.LeafPhrase()})

	var result bool
	switch p.Kind() {
	case predicate.KindAnd:
		result = true
		for _, c := range p.Children() {
			if !trace(it, c, depth+1, steps) {
				result = false
			}
		}
	case predicate.KindOr:
		for _, c := range p.Children() {
			if trace(it, c, depth+1, steps) {
				result = true
			}
		}
	case predicate.KindNot:
		children := p.Children()
		result = len(children) == 1 && !trace(it, children[0], depth+1, steps)
	default:
		ok, actual, present := p.Eval(it)
		result = ok
		if shown, has := actualFor(p, actual, present); has {
			(*steps)[idx].Actual, (*steps)[idx].HasActual = shown, true
		}
	}
	(*steps)[idx].Result = result
	return result
}

func actualFor(p predicate.Predicate, actual string, present bool) (string, bool) {
	switch p.Kind() {
	case predicate.KindConst, predicate.KindCustom:
		return "", false
	case predicate.KindTextContains, predicate.KindTextMatches:
		return preview(actual), true
	default:
		return actual, present
	}
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= textPreview {
		return s
	}
	return string(r[:textPreview]) + "..."
}

// String renders the trace, one marked line per step.
func (t Trace) String() string {
	var b strings.Builder
	for i, s := range t.Steps {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Repeat("  ", s.Depth))
		if s.Result {
			b.WriteString("✓ ")
		} else {
			b.WriteString("✗ ")
		}
		b.WriteString(s.Phrase)
		if !s.Kind.IsCombinator() && s.Kind != predicate.KindConst && s.Kind != predicate.KindCustom {
			if s.HasActual {
				b.WriteString(" (actual: '" + s.Actual + "')")
			} else {
				b.WriteString(" (actual: missing)")
			}
		}
	}
	return b.String()
}

type identified interface {
	ID() string
}

// Match explains why it did or did not satisfy p.
func Match(it item.Item, p predicate.Predicate) string {
	t := Evaluate(it, p)
	name := "Item"
	if id, ok := it.(identified); ok && id.ID() != "" {
		name = "Item " + id.ID()
	}
	verdict := " matched because:\n"
	if !t.Matched {
		verdict = " did NOT match because:\n"
	}
	return name + verdict + t.String()
}
