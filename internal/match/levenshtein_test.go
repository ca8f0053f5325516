package match

import (
	"math"
	"testing"
)

func TestDistanceBasics(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"Amsterdam", "Amsterdm", 1},
		{"paris", "paris", 0},
		{"résumé", "resume", 2},
	}
	for _, c := range cases {
		if got := Distance(c.a, c.b); got != c.want {
			t.Errorf("Distance(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestDistanceSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"amsterdam", "amsterdm"},
		{"quiz", "quizzes"},
		{"", "x"},
		{"göteborg", "goteborg"},
	}
	for _, p := range pairs {
		if Distance(p[0], p[1]) != Distance(p[1], p[0]) {
			t.Errorf("Distance(%q, %q) not symmetric", p[0], p[1])
		}
	}
}

func TestDistanceZeroIffEqual(t *testing.T) {
	if Distance("same", "same") != 0 {
		t.Errorf("distance between identical strings must be 0")
	}
	if Distance("same", "sane") == 0 {
		t.Errorf("distance between distinct strings must not be 0")
	}
}

func TestSimilarityRange(t *testing.T) {
	pairs := [][2]string{
		{"a", "completely different"},
		{"amsterdam", "amsterdm"},
		{"", ""},
		{"", "x"},
		{"x", "x"},
	}
	for _, p := range pairs {
		sim := Similarity(p[0], p[1])
		if sim < 0 || sim > 1 {
			t.Errorf("Similarity(%q, %q) = %f, out of [0,1]", p[0], p[1], sim)
		}
	}
	if Similarity("x", "x") != 1 {
		t.Errorf("identical non-empty strings must have similarity 1")
	}
	if Similarity("", "x") != 0 || Similarity("x", "") != 0 {
		t.Errorf("empty string must have similarity 0")
	}
}

func TestSimilarityAmsterdamBoundary(t *testing.T) {
	// One deletion out of nine runes: 1 - 1/9 ≈ 0.889, just below the 0.90
	// threshold used for answers longer than ten characters.
	sim := Similarity("amsterdam", "amsterdm")
	want := 1 - 1.0/9.0
	if math.Abs(sim-want) > 1e-9 {
		t.Fatalf("similarity = %f, want %f", sim, want)
	}
	if sim >= 0.90 {
		t.Fatalf("expected similarity below 0.90, got %f", sim)
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in            string
		caseSensitive bool
		want          string
	}{
		{"  paris ", false, "paris"},
		{"Paris", false, "paris"},
		{"Paris", true, "Paris"},
		{"  New   York  ", false, "new york"},
		{"café", false, "cafe"},
		{"Łódź", true, "Łodz"}, // Ł is not a combining mark, kept as-is
	}
	for _, c := range cases {
		if got := Normalize(c.in, c.caseSensitive); got != c.want {
			t.Errorf("Normalize(%q, %v) = %q, want %q", c.in, c.caseSensitive, got, c.want)
		}
	}
}
