// Package text provides the tokenization and similarity kernel used by the
// synaptic linker: camelCase-aware tokenization, Jaccard similarity over
// token sets and cosine similarity over embedding vectors.
//
// Everything in this package is a pure function over its inputs. No state,
// no configuration, no I/O.
package text

import (
	"math"
	"strings"
	"unicode"
)

// stopWords are dropped during tokenization. The set is deliberately small
// and fixed: it only needs to keep glue words out of similarity scoring,
// not be a linguistics-grade list.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "in": {}, "is": {},
	"it": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {},
	"this": {}, "to": {}, "was": {}, "with": {},
}

// TokenSet is a set of normalized tokens extracted from a piece of text.
type TokenSet map[string]struct{}

// Contains reports whether the set holds the given token.
func (ts TokenSet) Contains(token string) bool {
	_, ok := ts[token]
	return ok
}

// Tokenize splits text into a normalized token set.
//
// Rules, applied in order:
//   - camelCase and PascalCase word boundaries split before lowercasing,
//     so "linkRetroactively" yields {link, retroactively} and
//     "HTTPServer" yields {http, server}
//   - any rune that is not a letter or digit acts as a separator
//   - tokens shorter than 2 runes are dropped
//   - stop words are dropped
//
// Tokenize("") returns an empty, non-nil set.
func Tokenize(s string) TokenSet {
	set := make(TokenSet)
	runes := []rune(s)
	var current []rune

	flush := func() {
		if len(current) == 0 {
			return
		}
		token := strings.ToLower(string(current))
		current = current[:0]
		if len([]rune(token)) < 2 {
			return
		}
		if _, stop := stopWords[token]; stop {
			return
		}
		set[token] = struct{}{}
	}

	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if len(current) > 0 && isCamelBoundary(runes, i) {
			flush()
		}
		current = append(current, r)
	}
	flush()
	return set
}

// isCamelBoundary reports whether a new word starts at index i. A boundary
// is an uppercase rune following a lowercase rune or digit ("fooBar"), or
// the last uppercase rune of an acronym run followed by a lowercase rune
// ("HTTPServer" breaks before "Server").
func isCamelBoundary(runes []rune, i int) bool {
	if !unicode.IsUpper(runes[i]) {
		return false
	}
	prev := runes[i-1]
	if unicode.IsLower(prev) || unicode.IsDigit(prev) {
		return true
	}
	if unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
		return true
	}
	return false
}

// Jaccard computes the Jaccard similarity |a ∩ b| / |a ∪ b| of two token
// sets.
//
// Two identical non-empty sets score exactly 1.0, disjoint sets score
// exactly 0.0, and two empty sets score 0 — never NaN.
func Jaccard(a, b TokenSet) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	intersection := 0
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	for token := range small {
		if large.Contains(token) {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Cosine computes the cosine similarity of two embedding vectors.
// Range: [-1, 1] where 1 = identical direction, 0 = orthogonal.
//
// Mismatched lengths, zero-length vectors and zero-magnitude vectors all
// score 0 — never NaN and never an error.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
