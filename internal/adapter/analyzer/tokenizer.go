package analyzer

import (
	"strings"
	"unicode"
)

// Tokenizer splits text into lowercase terms for lexical indexing. It is
// script-aware: Hangul and Han words keep single-rune tokens, other scripts
// drop them.
type Tokenizer struct {
	stopwords map[string]struct{}
}

// TokenizerOption configures a Tokenizer.
type TokenizerOption func(*Tokenizer)

// WithStopwords adds words to the stopword set.
func WithStopwords(words ...string) TokenizerOption {
	return func(t *Tokenizer) {
		for _, w := range words {
			t.stopwords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// NewTokenizer creates a new Tokenizer.
func NewTokenizer(opts ...TokenizerOption) *Tokenizer {
	t := &Tokenizer{stopwords: defaultStopwords()}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Tokenize splits text into tokens.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if len([]rune(word)) < 2 && !isCJK(word) {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// TermFrequencies tokenizes text and counts each term. The second value is
// the token count.
func (t *Tokenizer) TermFrequencies(text string) (map[string]int, int) {
	tokens := t.Tokenize(text)
	freqs := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freqs[tok]++
	}
	return freqs, len(tokens)
}

// CountTokens returns an approximate LLM token count. Latin words average
// about 1.3 tokens; Hangul and Han text is closer to one token per rune.
func (t *Tokenizer) CountTokens(text string) int {
	words := splitWords(text)
	if len(words) == 0 {
		return 0
	}
	var latin, cjk int
	for _, w := range words {
		if isCJK(w) {
			cjk += len([]rune(w))
		} else {
			latin++
		}
	}
	return int(float64(latin)*1.3) + cjk
}

func isCJK(word string) bool {
	for _, r := range word {
		if unicode.In(r, unicode.Hangul, unicode.Han) {
			return true
		}
	}
	return false
}

// splitWords splits text into words using unicode word boundaries.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
		} else {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

// defaultStopwords returns common English stopwords plus a few frequent
// standalone Korean function words.
func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall", "which",
		"who", "whom", "what", "when", "where", "why", "how", "all",
		"each", "every", "both", "few", "more", "most", "other",
		"some", "such", "than", "too", "very", "just", "also",
		"그리고", "그러나", "하지만", "또는", "및", "등",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
