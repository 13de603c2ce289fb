package analyzer

import (
	"testing"
)

func TestTokenizer_Tokenize(t *testing.T) {
	tok := NewTokenizer()

	tokens := tok.Tokenize("Running dogs are playing")
	expected := []string{"running", "dogs", "playing"}
	if len(tokens) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, tokens)
	}
	for i := range expected {
		if tokens[i] != expected[i] {
			t.Errorf("token %d: expected %q, got %q", i, expected[i], tokens[i])
		}
	}
}

func TestTokenizer_StopwordRemoval(t *testing.T) {
	tok := NewTokenizer()

	tokens := tok.Tokenize("the quick brown fox")
	for _, token := range tokens {
		if token == "the" {
			t.Errorf("stopword 'the' should be removed, got %v", tokens)
		}
	}
}

func TestTokenizer_ExtraStopwords(t *testing.T) {
	tok := NewTokenizer(WithStopwords("Fox"))

	tokens := tok.Tokenize("quick brown fox")
	if len(tokens) != 2 {
		t.Errorf("expected fox to be removed, got %v", tokens)
	}
}

func TestTokenizer_ShortWordRemoval(t *testing.T) {
	tok := NewTokenizer()

	tokens := tok.Tokenize("a I go x")
	if len(tokens) != 1 || tokens[0] != "go" {
		t.Errorf("expected only 'go', got %v", tokens)
	}
}

func TestTokenizer_Hangul(t *testing.T) {
	tok := NewTokenizer()

	tokens := tok.Tokenize("서울은 한국의 수도 그리고 꽃")
	expected := []string{"서울은", "한국의", "수도", "꽃"}
	if len(tokens) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, tokens)
	}
	for i := range expected {
		if tokens[i] != expected[i] {
			t.Errorf("token %d: expected %q, got %q", i, expected[i], tokens[i])
		}
	}
}

func TestTokenizer_TermFrequencies(t *testing.T) {
	tok := NewTokenizer()

	freqs, n := tok.TermFrequencies("cache miss, cache hit, cache")
	if n != 5 {
		t.Errorf("expected 5 tokens, got %d", n)
	}
	if freqs["cache"] != 3 {
		t.Errorf("expected cache=3, got %d", freqs["cache"])
	}
}

func TestTokenizer_CountTokens(t *testing.T) {
	tok := NewTokenizer()

	if got := tok.CountTokens(""); got != 0 {
		t.Errorf("expected 0 for empty text, got %d", got)
	}
	// 10 latin words -> 13, 3 hangul runes -> 3
	got := tok.CountTokens("one two three four five six seven eight nine ten 한국어")
	if got != 16 {
		t.Errorf("expected 16, got %d", got)
	}
}
