// Package tokenizer turns field text into positioned terms for the in-memory
// index. Two analyzers are provided: Simple lower-cases and splits on
// non-alphanumeric boundaries, English additionally drops stop-words and
// strips common suffixes.
package tokenizer

import (
	"fmt"
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Token is a normalised term and its position in the field. Positions of
// removed stop-words are kept as gaps so phrase offsets stay meaningful.
type Token struct {
	Term     string
	Position int
}

type Analyzer interface {
	Name() string
	Tokenize(text string) []Token
}

// Simple lower-cases text and splits it on anything that is not a letter or
// a digit.
type Simple struct{}

func (Simple) Name() string { return "simple" }

func (Simple) Tokenize(text string) []Token {
	words := split(text)
	tokens := make([]Token, 0, len(words))
	for i, w := range words {
		tokens = append(tokens, Token{Term: w, Position: i})
	}
	return tokens
}

// English extends Simple with stop-word removal and suffix stemming.
type English struct{}

func (English) Name() string { return "english" }

func (English) Tokenize(text string) []Token {
	words := split(text)
	tokens := make([]Token, 0, len(words)/2)
	for i, word := range words {
		if len(word) < 2 {
			continue
		}
		if _, isStop := stopWords[word]; isStop {
			continue
		}
		stemmed := Stem(word)
		if stemmed == "" {
			continue
		}
		tokens = append(tokens, Token{Term: stemmed, Position: i})
	}
	return tokens
}

// ByName resolves an analyzer from configuration.
func ByName(name string) (Analyzer, error) {
	switch strings.ToLower(name) {
	case "", "simple":
		return Simple{}, nil
	case "english":
		return English{}, nil
	default:
		return nil, fmt.Errorf("unknown analyzer %q", name)
	}
}

func split(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

var suffixes = []struct {
	suffix      string
	replacement string
	minLen      int
}{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// Stem strips the first matching suffix as long as enough of the word is
// left over.
func Stem(word string) string {
	for _, rule := range suffixes {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}
