// Package similarity measures textual overlap between questions for
// near-duplicate detection.
package similarity

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultThreshold is the Jaccard overlap at or above which two question
// texts are considered near-duplicates.
const DefaultThreshold = 0.60

// minTokenLen drops articles and most prepositions. Tokens containing a
// digit are kept regardless of length since they carry most of the signal
// in quant items.
const minTokenLen = 3

// Tokens is a normalized bag of distinct words.
type Tokens map[string]struct{}

// Words normalizes s (NFKC, case folding) and splits it on anything that
// is not a letter or digit, keeping text order and repeats. Short words are
// dropped unless nothing else is left; a text with no words at all yields
// its whitespace-collapsed form as a single word.
func Words(s string) []string {
	// Casers are stateful, so each call gets its own.
	s = cases.Fold().String(norm.NFKC.String(s))
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < minTokenLen && !hasDigit(f) {
			continue
		}
		out = append(out, f)
	}
	switch {
	case len(out) > 0:
		return out
	case len(fields) > 0:
		return fields
	}
	if rest := strings.Join(strings.Fields(s), " "); rest != "" {
		return []string{rest}
	}
	return nil
}

// Tokenize returns the distinct Words of s. Texts that normalize to the
// same string always get equal, non-empty token sets unless they are blank.
func Tokenize(s string) Tokens {
	words := Words(s)
	out := make(Tokens, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

// Jaccard returns |a ∩ b| / |a ∪ b|. Two empty sets have similarity 0.
func Jaccard(a, b Tokens) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Text returns the Jaccard similarity of two raw texts.
func Text(a, b string) float64 {
	return Jaccard(Tokenize(a), Tokenize(b))
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}
