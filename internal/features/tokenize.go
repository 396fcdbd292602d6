// Package features turns message text into TF-IDF vectors over word n-grams.
package features

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// minTokenRunes drops single-character tokens.
const minTokenRunes = 2

// foldAccents returns a fresh transformer; transform.Chain values are not
// safe for concurrent use.
func foldAccents() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Normalize lower-cases text and strips combining accents ("café" -> "cafe").
func Normalize(text string) string {
	folded, _, err := transform.String(foldAccents(), text)
	if err != nil {
		folded = text
	}
	return strings.ToLower(folded)
}

// Tokenize splits normalized text into word tokens of two or more letters,
// digits or underscores. Apostrophes inside a word are dropped so "don't"
// becomes "dont".
func Tokenize(text string, dropStopWords bool) []string {
	text = Normalize(text)

	var (
		tokens []string
		cur    strings.Builder
		n      int
	)
	flush := func() {
		if n >= minTokenRunes {
			tok := cur.String()
			if !dropStopWords || !isStopWord(tok) {
				tokens = append(tokens, tok)
			}
		}
		cur.Reset()
		n = 0
	}

	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			cur.WriteRune(r)
			n++
		case (r == '\'' || r == '’') && n > 0:
			// contraction: keep accumulating
		default:
			flush()
		}
	}
	flush()

	return tokens
}

// NGrams expands tokens into space-joined n-grams for every n in [lo, hi].
func NGrams(tokens []string, lo, hi int) []string {
	if lo < 1 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}

	out := make([]string, 0, len(tokens)*(hi-lo+1))
	for n := lo; n <= hi; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

// stopWords is a short English function-word list. Words that carry signal
// in this domain (you, where, why, have, been, never, always, must) are
// left out.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		a about above after again all am an and any as at be before being
		below between both but by could did do does doing down during each few
		for from further had has he her hers herself him himself his how if
		in into is it its itself just me more most my myself nor of on once
		only or other our ours ourselves over own same she so some such than
		that the their theirs them themselves then these they this those
		through to too under until up very was we were which while whom with
		would`) {
		stopWords[w] = struct{}{}
	}
}

func isStopWord(tok string) bool {
	_, ok := stopWords[tok]
	return ok
}
