// Package tokenizer provides text tokenisation for the catalog indexes.
// It lower-cases input, treats everything that is not an ASCII letter or
// digit as a separator, and removes stop-words. Query-time and index-time
// code must both go through this package.
package tokenizer

import "strings"

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "from": {}, "is": {}, "are": {}, "am": {},
	"be": {}, "been": {}, "being": {}, "that": {}, "this": {},
	"these": {}, "those": {}, "i": {}, "you": {}, "he": {}, "she": {},
	"it": {}, "we": {}, "they": {},
}

// Token represents a single normalised term and its position among the
// surviving terms of the input text.
type Token struct {
	Term     string
	Position int
}

// Tokenize breaks text into lowercased Tokens with stop-words removed.
// Duplicates are kept so positions reflect every occurrence.
func Tokenize(text string) []Token {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, isSeparator)
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		if _, isStop := stopWords[word]; isStop {
			continue
		}
		tokens = append(tokens, Token{
			Term:     word,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// Terms returns only the terms produced by Tokenize, in order.
func Terms(text string) []string {
	tokens := Tokenize(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}

// isSeparator reports whether r splits words. Input is lowercased first, so
// anything outside [a-z0-9] (whitespace, punctuation, non-ASCII) separates.
func isSeparator(r rune) bool {
	return (r < 'a' || r > 'z') && (r < '0' || r > '9')
}
