package port

import "ragchain/internal/domain"

// IndexStore persists the lexical index of passages.
type IndexStore interface {
	// BatchIndex upserts passages in one write. Re-indexing an id replaces
	// its postings and keeps its original insertion sequence.
	BatchIndex(passages []domain.PassageTerms) error

	GetPostings(term string) ([]domain.Posting, error)

	DeletePassage(passageID string) error

	GetStats() (domain.Stats, error)

	Close() error
}

type Tokenizer interface {
	Tokenize(text string) []string

	CountTokens(text string) int
}
