package predicate

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Phrase renders p as a composable natural-language phrase.
// Every leaf occurrence appears exactly once.
func (p Predicate) Phrase() string {
	switch p.kind {
	case KindAnd:
		return "ALL OF (" + joinPhrases(p.children) + ")"
	case KindOr:
		return "ANY OF (" + joinPhrases(p.children) + ")"
	case KindNot:
		return "NOT (" + joinPhrases(p.children) + ")"
	default:
		return p.LeafPhrase()
	}
}

func joinPhrases(ps []Predicate) string {
	parts := make([]string, len(ps))
	for i, c := range ps {
		parts[i] = c.Phrase()
	}
	return strings.Join(parts, ", ")
}

// LeafPhrase renders a single leaf; for combinators it names the combinator only.
func (p Predicate) LeafPhrase() string {
	switch p.kind {
	case KindAnd:
		return "ALL OF"
	case KindOr:
		return "ANY OF"
	case KindNot:
		return "NOT"
	case KindConst:
		if p.truth {
			return "always true"
		}
		return "always false"
	case KindFieldEquals:
		return p.field + " = " + quote(p.operandText())
	case KindFieldIn:
		quoted := make([]string, len(p.values))
		for i, v := range p.values {
			quoted[i] = quote(v)
		}
		return p.field + " in [" + strings.Join(quoted, ", ") + "]"
	case KindFieldStartsWith:
		return p.field + " starts with " + quote(p.operandText())
	case KindHierarchy:
		if p.exact {
			return p.field + " is exactly " + quote(p.operandText())
		}
		return p.field + " under " + quote(p.operandText())
	case KindDepth:
		return p.field + " " + depthPhrase(p.min, p.max)
	case KindTextContains:
		mode := "case-insensitive"
		if p.caseSensitive {
			mode = "case-sensitive"
		}
		return "text contains " + quote(p.value) + " (" + mode + ")"
	case KindTextMatches:
		if p.description == "" {
			return "text matches a custom function"
		}
		return "text " + p.description
	case KindMetadataEquals:
		return "metadata[" + quote(p.key) + "] = " + formatOperand(p.meta)
	case KindMetadataExists:
		return "metadata[" + quote(p.key) + "] exists"
	case KindTimeAfter:
		word := "after"
		if p.inclusive {
			word = "on or after"
		}
		return timeName(p.timeField) + " " + word + " " + p.at.UTC().Format(time.RFC3339)
	case KindTimeBefore:
		word := "before"
		if p.inclusive {
			word = "on or before"
		}
		return timeName(p.timeField) + " " + word + " " + p.at.UTC().Format(time.RFC3339)
	case KindCustom:
		if p.description == "" {
			return "custom predicate"
		}
		return p.description
	default:
		return "invalid predicate"
	}
}

// operandText is the canonical operand, or the rejected input when normalization failed.
func (p Predicate) operandText() string {
	if p.value == "" && p.err != nil {
		return p.err.Value
	}
	return p.value
}

func depthPhrase(min, max int) string {
	switch {
	case min == Unbounded && max == Unbounded:
		return "at any depth"
	case min == Unbounded:
		return fmt.Sprintf("depth at most %d", max)
	case max == Unbounded:
		return fmt.Sprintf("depth at least %d", min)
	case min == max:
		return fmt.Sprintf("depth exactly %d", min)
	default:
		return fmt.Sprintf("depth between %d and %d", min, max)
	}
}

func timeName(f TimeField) string {
	if f == Updated {
		return "updated"
	}
	return "created"
}

func formatOperand(v any) string {
	if s, ok := v.(string); ok {
		return quote(s)
	}
	return formatAny(v)
}

func formatAny(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(v)
	}
}
