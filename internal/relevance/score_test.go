package relevance

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Savon à l'huile d'olive", []string{"savon", "a", "l", "huile", "d", "olive"}},
		{"Bol céramique 12cm", []string{"bol", "ceramique", "12cm"}},
		{"  ", nil},
		{"---", nil},
	}
	for _, tc := range tests {
		got := Tokenize(tc.in)
		if len(got) != len(tc.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tc.in, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("Tokenize(%q)[%d] = %q, want %q", tc.in, i, got[i], tc.want[i])
			}
		}
	}
}

func TestTokenizeFoldsDiacritics(t *testing.T) {
	a := Tokenize("céramique émaillée")
	b := Tokenize("ceramique emaillee")
	if len(a) != len(b) {
		t.Fatalf("token counts differ: %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("token %d: %q vs %q", i, a[i], b[i])
		}
	}
}

func TestScoreIdentical(t *testing.T) {
	if s := Score("wooden bowl", "wooden bowl"); !almostEqual(s, 1.0) {
		t.Errorf("identical strings should score 1.0, got %f", s)
	}
}

func TestScoreDisjoint(t *testing.T) {
	if s := Score("wooden bowl", "silk scarf"); s != 0 {
		t.Errorf("disjoint strings should score 0, got %f", s)
	}
}

func TestScoreEmptyTitle(t *testing.T) {
	if s := Score("wooden bowl", ""); s != 0 {
		t.Errorf("empty title should score 0, got %f", s)
	}
	if s := Score("", "wooden bowl"); s != 0 {
		t.Errorf("empty query should score 0, got %f", s)
	}
}

func TestScorePartialOverlap(t *testing.T) {
	// query: {wooden, bowl}; title: {wooden, bowl, handmade, large}
	// dot = 2, |a| = sqrt(2), |b| = 2 -> 2/(2*sqrt(2)) = 1/sqrt(2)
	got := Score("wooden bowl", "handmade large wooden bowl")
	want := 1 / math.Sqrt2
	if !almostEqual(got, want) {
		t.Errorf("got %f, want %f", got, want)
	}
}

func TestScoreCaseAndAccentInsensitive(t *testing.T) {
	a := Score("Bol Céramique", "bol ceramique")
	if !almostEqual(a, 1.0) {
		t.Errorf("case/accent variants should score 1.0, got %f", a)
	}
}

func TestQueryScoreMatchesScore(t *testing.T) {
	q := NewQuery("savon olive marseille")
	titles := []string{
		"Savon de Marseille à l'olive 125g",
		"Handmade ceramic bowl",
		"",
	}
	for _, title := range titles {
		if got, want := q.Score(title), Score("savon olive marseille", title); !almostEqual(got, want) {
			t.Errorf("Query.Score(%q) = %f, Score = %f", title, got, want)
		}
	}
}

func TestCosineRepeatedTerms(t *testing.T) {
	// Term frequency matters: a title spamming the query word does not
	// reach a perfect score against a multi-word query.
	single := Score("soap bar", "soap soap soap soap")
	if single >= 1.0 || single <= 0 {
		t.Errorf("expected partial score, got %f", single)
	}
}
