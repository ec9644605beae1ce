// Package normalize puts field names and hierarchical values into canonical form.
//
// A canonical value has no leading or trailing whitespace, single spaces inside each
// segment, and segments joined by Separator. Value is idempotent: normalizing a
// canonical value returns it unchanged.
package normalize

import (
	"errors"
	"regexp"
	"slices"
	"strings"

	"github.com/kailas-cloud/semdex/internal/domain"
)

// Glyph is the hierarchy arrow.
const Glyph = "→"

// Separator joins the segments of a canonical hierarchical value.
const Separator = " " + Glyph + " "

// Aliases lists the accepted input spellings of the hierarchy separator.
var Aliases = []string{"->", Glyph, ">", "/", "|"}

// "->" must be tried before ">".
var aliasRe = regexp.MustCompile(`\s*(?:->|→|>|/|\|)\s*`)

// Value returns the canonical form of raw.
func Value(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", &domain.NormalizationError{Value: raw, Msg: "value is empty"}
	}
	unified := aliasRe.ReplaceAllString(raw, Glyph)
	segments := strings.Split(unified, Glyph)
	for i, seg := range segments {
		clean := collapse(seg)
		if clean == "" {
			return "", &domain.NormalizationError{Value: raw, Msg: "empty hierarchy segment"}
		}
		segments[i] = clean
	}
	return strings.Join(segments, Separator), nil
}

// MustValue is Value for literals known to be valid. It panics on error.
func MustValue(raw string) string {
	v, err := Value(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// Label canonicalizes a single path segment. It rejects separator aliases.
func Label(raw string) (string, error) {
	clean := collapse(raw)
	if clean == "" {
		return "", &domain.NormalizationError{Value: raw, Msg: "label is empty"}
	}
	if aliasRe.MatchString(clean) {
		return "", &domain.NormalizationError{Value: raw, Msg: "label contains a hierarchy separator"}
	}
	return clean, nil
}

// FieldName lowercases raw and replaces whitespace runs and hyphens with underscores.
func FieldName(raw string) string {
	s := strings.ToLower(raw)
	s = strings.ReplaceAll(s, "-", "_")
	return strings.Join(strings.Fields(s), "_")
}

// Fields normalizes every name and value of raw.
// Two names that collide after normalization are rejected.
func Fields(raw map[string]string) (map[string]string, error) {
	names := make([]string, 0, len(raw))
	for k := range raw {
		names = append(names, k)
	}
	slices.Sort(names)

	out := make(map[string]string, len(raw))
	origin := make(map[string]string, len(raw))
	for _, name := range names {
		field := FieldName(name)
		if field == "" {
			return nil, &domain.NormalizationError{Value: name, Msg: "field name is empty"}
		}
		if prev, dup := origin[field]; dup {
			return nil, &domain.NormalizationError{
				Field: field,
				Value: name,
				Msg:   "duplicate field after normalization: " + prev + " and " + name,
			}
		}
		v, err := Value(raw[name])
		if err != nil {
			return nil, withField(err, field)
		}
		out[field] = v
		origin[field] = name
	}
	return out, nil
}

// Path splits a value into its segments.
func Path(value string) []string {
	parts := strings.Split(value, Glyph)
	out := parts[:0]
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Join builds a canonical value from segments.
func Join(segments ...string) string {
	return strings.Join(segments, Separator)
}

// Depth returns the number of segments in value.
func Depth(value string) int {
	return len(Path(value))
}

// IsHierarchical reports whether value has more than one segment.
func IsHierarchical(value string) bool {
	return strings.Contains(value, Glyph)
}

// Parent drops the last segment. Root values have no parent.
func Parent(value string) (string, bool) {
	path := Path(value)
	if len(path) <= 1 {
		return "", false
	}
	return Join(path[:len(path)-1]...), true
}

// Root returns the first segment of value.
func Root(value string) string {
	path := Path(value)
	if len(path) == 0 {
		return ""
	}
	return path[0]
}

// HasPrefix reports whether ref's path is a prefix of value's path (ancestor-or-self).
func HasPrefix(value, ref string) bool {
	vp, rp := Path(value), Path(ref)
	if len(rp) == 0 || len(rp) > len(vp) {
		return false
	}
	return slices.Equal(vp[:len(rp)], rp)
}

// Equal reports whether a and b share a canonical form.
func Equal(a, b string) bool {
	na, err := Value(a)
	if err != nil {
		return false
	}
	nb, err := Value(b)
	if err != nil {
		return false
	}
	return na == nb
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func withField(err error, field string) error {
	var ne *domain.NormalizationError
	if errors.As(err, &ne) {
		cp := *ne
		cp.Field = field
		return &cp
	}
	return err
}
