package index

import (
	"sort"
	"strings"
	"unicode"

	"github.com/rubicon-ls/rubicon/internal/entry"
)

// Match-quality tiers, best first. Ties inside a tier break on score, then
// shorter fully-qualified name, then lexical order. The tier boundaries and
// editDistanceCap are tuning constants, not language rules.
const (
	tierPrefix = iota
	tierCamel
	tierSubsequence
	tierApproximate
	tierNone
)

// editDistanceCap bounds how different a candidate may be from the query
// and still count as an approximate match.
const editDistanceCap = 2

// FuzzySearch returns every entry whose name approximately matches query,
// best matches first: exact prefix, then camel-case-initial matches, then
// subsequence matches, then bounded-edit-distance matches. Entries declared
// only in out-of-project paths are excluded unless includeExternal is set.
func (ix *Index) FuzzySearch(query string, includeExternal bool) []entry.Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	type ranked struct {
		e     entry.Entry
		tier  int
		score int
	}
	var results []ranked
	for name, es := range ix.entries {
		tier, score := matchQuality(query, name)
		if tier == tierNone {
			continue
		}
		for _, e := range es {
			if !includeExternal && !e.InProject() {
				continue
			}
			results = append(results, ranked{e: e, tier: tier, score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.tier != b.tier {
			return a.tier < b.tier
		}
		if a.score != b.score {
			return a.score > b.score
		}
		an, bn := a.e.Name(), b.e.Name()
		if len(an) != len(bn) {
			return len(an) < len(bn)
		}
		return an < bn
	})

	out := make([]entry.Entry, len(results))
	for i, r := range results {
		out[i] = r.e
	}
	return out
}

// matchQuality classifies how well query matches a fully-qualified name.
// The last name segment is tried as well so "Foo" finds "Admin::Foo".
func matchQuality(query, name string) (int, int) {
	tier, score := matchQualityOne(query, name)
	if last := entry.LastSegment(name); last != name {
		if t2, s2 := matchQualityOne(query, last); t2 < tier || (t2 == tier && s2 > score) {
			tier, score = t2, s2
		}
	}
	return tier, score
}

func matchQualityOne(query, candidate string) (int, int) {
	if query == "" {
		return tierPrefix, 0
	}
	if strings.HasPrefix(candidate, query) || hasPrefixFold(candidate, query) {
		return tierPrefix, len(query)
	}
	if camelInitialsMatch(query, candidate) {
		return tierCamel, len(query)
	}
	if isSubsequenceFold(query, candidate) {
		return tierSubsequence, len(query)
	}
	if d := boundedEditDistance(strings.ToLower(query), strings.ToLower(candidate), editDistanceCap); d >= 0 {
		return tierApproximate, editDistanceCap - d
	}
	// Degraded approximate match: a meaningful prefix of the query appears
	// as a subsequence of the candidate ("CONF" still finds "CONSTANT").
	if n := queryPrefixSubsequence(query, candidate); n*2 >= len(query) && n >= 2 {
		return tierApproximate, n - editDistanceCap
	}
	return tierNone, 0
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// camelInitialsMatch reports whether query matches the capitalized segment
// initials of candidate in order ("FB" matches "FooBar", "fba" matches
// "foo_bar_accessor" style initials after separators).
func camelInitialsMatch(query, candidate string) bool {
	var initials []rune
	prev := rune(0)
	for i, r := range candidate {
		boundary := i == 0 ||
			(unicode.IsUpper(r) && !unicode.IsUpper(prev)) ||
			prev == '_' || prev == ':'
		if boundary && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			initials = append(initials, unicode.ToLower(r))
		}
		prev = r
	}
	if len(initials) < len(query) {
		return false
	}
	q := []rune(strings.ToLower(query))
	i := 0
	for _, r := range initials {
		if i < len(q) && q[i] == r {
			i++
		}
	}
	return i == len(q)
}

// isSubsequenceFold reports whether all of query's runes appear in
// candidate in order, case-insensitively.
func isSubsequenceFold(query, candidate string) bool {
	return subsequenceLen(query, candidate) == len([]rune(query))
}

// queryPrefixSubsequence returns the length of the longest prefix of query
// that is a subsequence of candidate.
func queryPrefixSubsequence(query, candidate string) int {
	return subsequenceLen(query, candidate)
}

func subsequenceLen(query, candidate string) int {
	q := []rune(strings.ToLower(query))
	i := 0
	for _, r := range strings.ToLower(candidate) {
		if i < len(q) && q[i] == r {
			i++
		}
	}
	return i
}

// boundedEditDistance returns the Levenshtein distance between a and b, or
// -1 when it exceeds cap. The band optimization keeps this O(len*cap).
func boundedEditDistance(a, b string, limit int) int {
	ra, rb := []rune(a), []rune(b)
	if abs(len(ra)-len(rb)) > limit {
		return -1
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			if cur[j] < rowMin {
				rowMin = cur[j]
			}
		}
		if rowMin > limit {
			return -1
		}
		prev, cur = cur, prev
	}
	if prev[len(rb)] > limit {
		return -1
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
