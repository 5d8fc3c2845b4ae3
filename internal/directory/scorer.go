package directory

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Scorer rates how far query is from a record's searchable fields.
// 0 means an exact match, 1 means nothing in common.
type Scorer interface {
	Score(query string, fields ...string) float64
}

// ScorerFunc adapts a plain function to Scorer.
type ScorerFunc func(query string, fields ...string) float64

func (f ScorerFunc) Score(query string, fields ...string) float64 { return f(query, fields...) }

// TokenScorer is the default Scorer: a token-based normalized edit distance.
//
// Query and fields are lowercased and split on anything that is not a letter
// or digit, so "jon@x.com" becomes [jon x com]. Each query token is matched
// against its closest field token; a field scores the mean of those
// distances, and the record scores its best field.
//
// A token distance is levenshtein(q, t) / max(len(q), len(t)) in runes. When
// the field token is longer than the query token, its prefix of the same
// length is tried too, so partial input ("ali" for "alice") still matches.
// A prefix hit costs prefixPenalty scaled by the untyped share of the token,
// which keeps exact matches ahead of partial ones. Tokens after the "@" of an
// email match whole only.
type TokenScorer struct{}

// prefixPenalty is the cost of a prefix hit whose untyped tail is the whole
// token. Kept well under DefaultThreshold.
const prefixPenalty = 0.1

type fieldToken struct {
	text   string
	prefix bool
}

func (TokenScorer) Score(query string, fields ...string) float64 {
	qTokens := tokenize(query)
	if len(qTokens) == 0 {
		return 1
	}

	best := 1.0
	for _, field := range fields {
		fTokens := fieldTokens(field)
		if len(fTokens) == 0 {
			continue
		}
		var sum float64
		for _, q := range qTokens {
			sum += closest(q, fTokens)
		}
		if s := sum / float64(len(qTokens)); s < best {
			best = s
		}
	}
	return best
}

func closest(q string, tokens []fieldToken) float64 {
	best := 1.0
	for _, t := range tokens {
		if d := tokenDistance(q, t); d < best {
			best = d
			if best == 0 {
				break
			}
		}
	}
	return best
}

func tokenDistance(q string, t fieldToken) float64 {
	qr, tr := []rune(q), []rune(t.text)
	d := normalized(qr, tr)
	if t.prefix && len(tr) > len(qr) {
		tail := float64(len(tr)-len(qr)) / float64(len(tr))
		if p := normalized(qr, tr[:len(qr)]) + prefixPenalty*tail; p < d {
			d = p
		}
	}
	return d
}

func normalized(a, b []rune) float64 {
	n := max(len(a), len(b))
	if n == 0 {
		return 0
	}
	return float64(levenshtein.ComputeDistance(string(a), string(b))) / float64(n)
}

// fieldTokens tokenizes a field. Everything after the last "@" is a domain:
// "c" must not find every address ending in ".com".
func fieldTokens(field string) []fieldToken {
	local, domain := field, ""
	if i := strings.LastIndex(field, "@"); i >= 0 {
		local, domain = field[:i], field[i+1:]
	}

	var out []fieldToken
	for _, t := range tokenize(local) {
		out = append(out, fieldToken{text: t, prefix: true})
	}
	for _, t := range tokenize(domain) {
		out = append(out, fieldToken{text: t})
	}
	return out
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
