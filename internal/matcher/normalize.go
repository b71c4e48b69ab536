package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// accentFolder strips combining marks so "suspensión" and "suspension"
// compare equal. Mexican news text mixes accented and unaccented spellings.
var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalize lowercases and accent-folds text for comparison.
func normalize(s string) string {
	folded, _, err := transform.String(accentFolder, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// token is one word of input text with its normalized and stemmed forms.
type token struct {
	Raw   string // Original surface form
	Norm  string // Lowercased, accent-folded form
	Stem  string // Light stem of the normalized form
	Start int    // Byte offset of the token in the original text
}

// tokenize splits text into word tokens, keeping byte offsets.
func tokenize(text string) []token {
	var tokens []token
	start := -1
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, newToken(text[start:i], start))
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, newToken(text[start:], start))
	}
	return tokens
}

func newToken(raw string, start int) token {
	n := normalize(raw)
	return token{Raw: raw, Norm: n, Stem: lightStem(n), Start: start}
}

// TokenSet returns the unique normalized word tokens of text, used by the
// near-duplicate similarity check.
func TokenSet(text string) []string {
	tokens := tokenize(text)
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, dup := seen[tok.Norm]; dup {
			continue
		}
		seen[tok.Norm] = struct{}{}
		out = append(out, tok.Norm)
	}
	return out
}

// suffixes stripped by lightStem, longest first. Accent-free because input is
// already folded; covers common Spanish derivations plus English -ing/-ed.
var stemSuffixes = []string{
	"amientos", "amiento", "aciones", "acion", "ciones", "cion",
	"idades", "idad", "mente", "adores", "ador", "ing", "ed", "es", "s",
}

// lightStem strips one derivational suffix from a normalized token. It is a
// crude stemmer, good enough to let "suspensiones" hit "suspension".
func lightStem(word string) string {
	for _, suffix := range stemSuffixes {
		if strings.HasSuffix(word, suffix) && len(word)-len(suffix) >= 3 {
			return word[:len(word)-len(suffix)]
		}
	}
	return word
}
