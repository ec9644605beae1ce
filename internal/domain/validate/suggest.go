package validate

import (
	"cmp"
	"slices"
	"strings"
)

// MaxSuggestions bounds the candidates returned with an error.
const MaxSuggestions = 5

// Rank orders candidates by closeness to target: case-insensitive prefix matches
// first, then Levenshtein distance, then lexical order. At most limit are returned.
func Rank(target string, candidates []string, limit int) []string {
	if len(candidates) == 0 || limit <= 0 {
		return nil
	}
	type scored struct {
		value  string
		prefix bool
		dist   int
	}
	lt := strings.ToLower(target)
	all := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		lc := strings.ToLower(c)
		all = append(all, scored{
			value:  c,
			prefix: lt != "" && (strings.HasPrefix(lc, lt) || strings.HasPrefix(lt, lc)),
			dist:   levenshtein(lt, lc),
		})
	}
	slices.SortFunc(all, func(a, b scored) int {
		if a.prefix != b.prefix {
			if a.prefix {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return strings.Compare(a.value, b.value)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]string, len(all))
	for i, s := range all {
		out[i] = s.value
	}
	return out
}

// levenshtein counts rune edits between a and b.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
