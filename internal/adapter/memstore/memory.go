package memstore

import (
	"sort"
	"sync"

	"ragchain/internal/domain"
	"ragchain/internal/port"
)

// MemoryStore is an in-process lexical index with the same behavior as the
// bolt store. Nothing survives Close.
type MemoryStore struct {
	mu       sync.RWMutex
	postings map[string]map[string]domain.Posting
	passages map[string]passageEntry
	seq      uint64
	stats    domain.Stats
}

var _ port.IndexStore = (*MemoryStore)(nil)

type passageEntry struct {
	length int
	seq    uint64
	terms  []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		postings: make(map[string]map[string]domain.Posting),
		passages: make(map[string]passageEntry),
	}
}

func (s *MemoryStore) BatchIndex(passages []domain.PassageTerms) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range passages {
		entry, exists := s.passages[p.ID]
		if exists {
			s.removeLocked(p.ID, entry)
		} else {
			s.seq++
			entry.seq = s.seq
		}

		entry.length = p.Length
		entry.terms = entry.terms[:0]
		for term, tf := range p.TermFreqs {
			byID, ok := s.postings[term]
			if !ok {
				byID = make(map[string]domain.Posting)
				s.postings[term] = byID
			}
			byID[p.ID] = domain.Posting{PassageID: p.ID, TF: tf, Length: p.Length, Seq: entry.seq}
			entry.terms = append(entry.terms, term)
		}
		s.passages[p.ID] = entry
		s.stats.TotalPassages++
		s.stats.TotalTokens += p.Length
	}
	s.refreshAvgLocked()
	return nil
}

func (s *MemoryStore) GetPostings(term string) ([]domain.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := s.postings[term]
	out := make([]domain.Posting, 0, len(byID))
	for _, p := range byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *MemoryStore) DeletePassage(passageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.passages[passageID]; ok {
		s.removeLocked(passageID, entry)
		delete(s.passages, passageID)
		s.refreshAvgLocked()
	}
	return nil
}

func (s *MemoryStore) GetStats() (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) removeLocked(id string, entry passageEntry) {
	for _, term := range entry.terms {
		delete(s.postings[term], id)
		if len(s.postings[term]) == 0 {
			delete(s.postings, term)
		}
	}
	s.stats.TotalPassages--
	s.stats.TotalTokens -= entry.length
}

func (s *MemoryStore) refreshAvgLocked() {
	if s.stats.TotalPassages > 0 {
		s.stats.AvgPassageLen = float64(s.stats.TotalTokens) / float64(s.stats.TotalPassages)
	} else {
		s.stats = domain.Stats{}
	}
}
