// Package relevance scores how well a candidate offer title matches the
// query using cosine similarity over term-frequency vectors. The score is
// a pure function of the two strings; it is used both to filter offers
// against per-source thresholds and to rank the final offer list.
package relevance

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDiacritics decomposes to NFD and strips combining marks, so
// "céramique" and "ceramique" tokenize identically.
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Tokenize lower-cases, strips diacritics, treats every non-alphanumeric
// rune as a separator, and drops empty tokens.
func Tokenize(s string) []string {
	s = strings.ToLower(s)
	if folded, _, err := transform.String(foldDiacritics, s); err == nil {
		s = folded
	}
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
}

// TermFreq builds a term-frequency multiset from tokens.
func TermFreq(tokens []string) map[string]int {
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}

// Cosine computes the cosine similarity of two term-frequency vectors
// over their union vocabulary. Either vector empty yields zero.
func Cosine(a, b map[string]int) float64 {
	var dot int
	for k, av := range a {
		dot += av * b[k]
	}
	var na, nb float64
	for _, v := range a {
		na += float64(v * v)
	}
	for _, v := range b {
		nb += float64(v * v)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float64(dot) / (math.Sqrt(na) * math.Sqrt(nb))
}

// Score returns the relevance of a candidate title to the query, in [0,1].
func Score(query, title string) float64 {
	return Cosine(TermFreq(Tokenize(query)), TermFreq(Tokenize(title)))
}

// Query holds a pre-tokenized query vector, so one estimation scores many
// candidate titles without re-tokenizing the product name.
type Query struct {
	tf map[string]int
}

// NewQuery tokenizes the product name once.
func NewQuery(name string) Query {
	return Query{tf: TermFreq(Tokenize(name))}
}

// Score returns the relevance of a candidate title to this query.
func (q Query) Score(title string) float64 {
	return Cosine(q.tf, TermFreq(Tokenize(title)))
}
