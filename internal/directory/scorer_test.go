package directory

import (
	"math"
	"testing"
)

func TestTokenScorer(t *testing.T) {
	s := TokenScorer{}

	tests := []struct {
		name   string
		query  string
		fields []string
		want   float64
	}{
		{"exact", "ann", []string{"Ann"}, 0},
		{"case folded", "ANN", []string{"ann"}, 0},
		{"one typo", "john", []string{"Jon Smith"}, 0.25},
		{"prefix costs the untyped tail", "ali", []string{"Alice"}, 0.1 * 2 / 5},
		{"local part prefix", "jon", []string{"jonathan@x.com"}, 0.1 * 5 / 8},
		{"domain token whole match", "com", []string{"zed@x.com"}, 0},
		{"domain token no prefix", "c", []string{"zed@x.com"}, 2.0 / 3},
		{"best field wins", "jon", []string{"Zed", "jon@x.com"}, 0},
		{"mean over query tokens", "jon smyth", []string{"Jon Smith"}, 0.1},
		{"nothing in common", "john", []string{"Alice"}, 1},
		{"empty query", "", []string{"Ann"}, 1},
		{"no fields", "ann", nil, 1},
		{"empty field skipped", "ann", []string{"", "Ann"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Score(tt.query, tt.fields...)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Score(%q, %q) = %v, want %v", tt.query, tt.fields, got, tt.want)
			}
		})
	}
}

func TestTokenScorer_ExactBeatsPrefix(t *testing.T) {
	s := TokenScorer{}

	exact := s.Score("jon", "Jon")
	longer := s.Score("jon", "Jonathan")
	if !(exact < longer) {
		t.Errorf("Score(jon, Jon) = %v, Score(jon, Jonathan) = %v; exact must rank first", exact, longer)
	}
	if shorter := s.Score("jon", "Jona"); !(shorter < longer) {
		t.Errorf("Score(jon, Jona) = %v, want below Score(jon, Jonathan) = %v", shorter, longer)
	}
	if longer > DefaultThreshold {
		t.Errorf("Score(jon, Jonathan) = %v, want a prefix hit within the default threshold", longer)
	}
}

func TestFieldTokens(t *testing.T) {
	got := fieldTokens("Jon.Smith@Example.COM")
	want := []fieldToken{{"jon", true}, {"smith", true}, {"example", false}, {"com", false}}
	if len(got) != len(want) {
		t.Fatalf("fieldTokens() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("fieldTokens()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTokenize(t *testing.T) {
	got := tokenize("Jon.Smith+dev@Example.COM")
	want := []string{"jon", "smith", "dev", "example", "com"}
	if len(got) != len(want) {
		t.Fatalf("tokenize() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tokenize()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
