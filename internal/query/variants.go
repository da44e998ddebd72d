// Package query expands a free-text product name into up to two query
// variants: the original string plus an alternate-language rendering
// produced by whole-word dictionary substitution. Marketplaces are
// queried across two locales, so a French name gains an English variant
// and vice versa.
package query

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// wordMapFREN is the bundled FR->EN substitution dictionary. Whole-word,
// case-insensitive; multi-word entries substitute as a unit. The reverse
// direction is derived from it, first entry winning for duplicate
// targets ("céramique" and "ceramique" both map to "ceramic").
var wordMapFREN = []struct{ fr, en string }{
	{"huile d'olive", "olive oil"},
	{"bois", "wood"},
	{"céramique", "ceramic"},
	{"ceramique", "ceramic"},
	{"métal", "metal"},
	{"verre", "glass"},
	{"cuir", "leather"},
	{"lin", "linen"},
	{"argile", "clay"},
	{"savon", "soap"},
	{"bougie", "candle"},
	{"plat", "dish"},
	{"assiette", "plate"},
	{"tasse", "mug"},
	{"lampe", "lamp"},
	{"bol", "bowl"},
}

// frenchDiacriticRE matches diacritic characters characteristic of French.
var frenchDiacriticRE = regexp.MustCompile(`[àâçéèêëîïôùûüÿœ]`)

type substitution struct {
	re   *regexp.Regexp
	with string
}

// Builder produces query variants from a product name.
type Builder struct {
	frToEN []substitution
	enToFR []substitution
}

// NewBuilder compiles the bidirectional substitution dictionary.
func NewBuilder() *Builder {
	b := &Builder{}
	seenEN := make(map[string]bool, len(wordMapFREN))
	for _, entry := range wordMapFREN {
		b.frToEN = append(b.frToEN, substitution{wholeWord(entry.fr), entry.en})
		if !seenEN[entry.en] {
			seenEN[entry.en] = true
			b.enToFR = append(b.enToFR, substitution{wholeWord(entry.en), entry.fr})
		}
	}
	return b
}

// Build returns up to two distinct non-empty query strings: the trimmed
// name, plus its lower-cased substituted counterpart when substitution
// actually changed the string. Blank input yields nil, signaling the
// caller to short-circuit.
func (b *Builder) Build(name string) []string {
	base := strings.TrimSpace(name)
	if base == "" {
		return nil
	}

	low := strings.ToLower(base)
	variants := []string{base}
	if LooksFrench(low) {
		if en := applyAll(low, b.frToEN); en != low {
			variants = append(variants, en)
		}
	} else {
		if fr := applyAll(low, b.enToFR); fr != low {
			variants = append(variants, fr)
		}
	}

	seen := make(map[string]bool, len(variants))
	out := make([]string, 0, 2)
	for _, v := range variants {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
		if len(out) == 2 {
			break
		}
	}
	return out
}

// LooksFrench reports whether the string contains diacritics
// characteristic of French.
func LooksFrench(s string) bool {
	return frenchDiacriticRE.MatchString(strings.ToLower(s))
}

func wholeWord(term string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(term))
}

// apply substitutes every whole-word occurrence of the term. The regexp
// matches the bare term; word boundaries are checked on the neighboring
// runes, because regexp's \b is ASCII-only and would fire inside accented
// neighbors ("bol" in "bolée").
func (sub substitution) apply(s string) string {
	matches := sub.re.FindAllStringIndex(s, -1)
	if len(matches) == 0 {
		return s
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		if !boundaryBefore(s, m[0]) || !boundaryAfter(s, m[1]) {
			continue
		}
		b.WriteString(s[last:m[0]])
		b.WriteString(sub.with)
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

// boundaryBefore reports whether i is the start of the string or preceded
// by a rune that is neither a letter nor a digit.
func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// boundaryAfter reports whether i is the end of the string or followed by
// a rune that is neither a letter nor a digit.
func boundaryAfter(s string, i int) bool {
	if i == len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func applyAll(s string, subs []substitution) string {
	out := s
	for _, sub := range subs {
		out = sub.apply(out)
	}
	return out
}
