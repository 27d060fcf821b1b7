// Package textsim holds the text folding and n-gram similarity helpers used by
// the classifier and the response guards.
package textsim

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases the text and removes diacritics ("Você já?" -> "voce ja?")
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// Words splits folded text into alphanumeric tokens
func Words(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Compact folds the text and keeps only letters and digits
func Compact(s string) string {
	var b strings.Builder
	for _, r := range Fold(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Hash returns a short stable hash of the compacted text
func Hash(s string) string {
	sum := sha256.Sum256([]byte(Compact(s)))
	return hex.EncodeToString(sum[:8])
}

// WordTrigramSimilarity is the Jaccard index of the word 3-grams of a and b.
// Texts with fewer than three words are compared as a single gram.
func WordTrigramSimilarity(a, b string) float64 {
	return jaccard(wordGrams(Words(a)), wordGrams(Words(b)))
}

// CharTrigramSimilarity is the Jaccard index of the character 3-grams of the
// compacted texts, which ignores spacing and punctuation differences.
func CharTrigramSimilarity(a, b string) float64 {
	return jaccard(charGrams(Compact(a)), charGrams(Compact(b)))
}

func wordGrams(words []string) map[string]struct{} {
	grams := make(map[string]struct{})
	if len(words) == 0 {
		return grams
	}
	if len(words) < 3 {
		grams[strings.Join(words, " ")] = struct{}{}
		return grams
	}
	for i := 0; i+3 <= len(words); i++ {
		grams[strings.Join(words[i:i+3], " ")] = struct{}{}
	}
	return grams
}

func charGrams(s string) map[string]struct{} {
	grams := make(map[string]struct{})
	r := []rune(s)
	if len(r) == 0 {
		return grams
	}
	if len(r) < 3 {
		grams[s] = struct{}{}
		return grams
	}
	for i := 0; i+3 <= len(r); i++ {
		grams[string(r[i:i+3])] = struct{}{}
	}
	return grams
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for g := range a {
		if _, ok := b[g]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
