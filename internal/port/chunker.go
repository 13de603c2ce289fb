package port

import "ragchain/internal/domain"

// Splitter cuts a source text into passages.
type Splitter interface {
	Split(source, content string) []domain.Passage
}
