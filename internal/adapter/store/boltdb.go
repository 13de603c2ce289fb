package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"
	"ragchain/internal/domain"
	"ragchain/internal/port"
)

var (
	bucketTerms    = []byte("terms")
	bucketPassages = []byte("passages")
	bucketStats    = []byte("stats")
	keyStats       = []byte("corpus_stats")
)

// BoltStore is the lexical index. Postings are kept as one JSON list per
// term; the passages bucket remembers each passage's terms so that it can be
// replaced or removed.
type BoltStore struct {
	db *bbolt.DB
}

var _ port.IndexStore = (*BoltStore)(nil)

type passageMeta struct {
	Length int      `json:"len"`
	Seq    uint64   `json:"seq"`
	Terms  []string `json:"terms"`
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketTerms, bucketPassages, bucketStats, bucketVectors} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// DB exposes the handle so the vector store can share the file.
func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

func (s *BoltStore) BatchIndex(passages []domain.PassageTerms) error {
	if len(passages) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		termsBucket := tx.Bucket(bucketTerms)
		passagesBucket := tx.Bucket(bucketPassages)

		stats, err := readStats(tx)
		if err != nil {
			return err
		}

		// term -> passage id -> new posting (nil marks removal)
		changes := make(map[string]map[string]*domain.Posting)
		change := func(term, id string, p *domain.Posting) {
			m, ok := changes[term]
			if !ok {
				m = make(map[string]*domain.Posting)
				changes[term] = m
			}
			m[id] = p
		}

		for _, p := range passages {
			var meta passageMeta
			if data := passagesBucket.Get([]byte(p.ID)); data != nil {
				if err := json.Unmarshal(data, &meta); err != nil {
					return fmt.Errorf("corrupt passage record %q: %w", p.ID, err)
				}
				for _, term := range meta.Terms {
					change(term, p.ID, nil)
				}
				stats.TotalPassages--
				stats.TotalTokens -= meta.Length
			} else {
				seq, err := passagesBucket.NextSequence()
				if err != nil {
					return err
				}
				meta.Seq = seq
			}

			meta.Length = p.Length
			meta.Terms = meta.Terms[:0]
			for term, tf := range p.TermFreqs {
				meta.Terms = append(meta.Terms, term)
				change(term, p.ID, &domain.Posting{PassageID: p.ID, TF: tf, Length: p.Length, Seq: meta.Seq})
			}
			sort.Strings(meta.Terms)

			data, err := json.Marshal(meta)
			if err != nil {
				return err
			}
			if err := passagesBucket.Put([]byte(p.ID), data); err != nil {
				return err
			}
			stats.TotalPassages++
			stats.TotalTokens += p.Length
		}

		for term, byID := range changes {
			if err := applyPostings(termsBucket, term, byID); err != nil {
				return err
			}
		}

		return writeStats(tx, stats)
	})
}

func applyPostings(b *bbolt.Bucket, term string, byID map[string]*domain.Posting) error {
	var postings []domain.Posting
	if data := b.Get([]byte(term)); data != nil {
		if err := json.Unmarshal(data, &postings); err != nil {
			return fmt.Errorf("corrupt postings for %q: %w", term, err)
		}
	}

	out := postings[:0]
	for _, p := range postings {
		if _, touched := byID[p.PassageID]; !touched {
			out = append(out, p)
		}
	}
	for _, p := range byID {
		if p != nil {
			out = append(out, *p)
		}
	}

	if len(out) == 0 {
		return b.Delete([]byte(term))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return b.Put([]byte(term), data)
}

func (s *BoltStore) GetPostings(term string) ([]domain.Posting, error) {
	var postings []domain.Posting
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTerms).Get([]byte(term))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &postings)
	})
	return postings, err
}

func (s *BoltStore) DeletePassage(passageID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		passagesBucket := tx.Bucket(bucketPassages)
		data := passagesBucket.Get([]byte(passageID))
		if data == nil {
			return nil
		}
		var meta passageMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return fmt.Errorf("corrupt passage record %q: %w", passageID, err)
		}

		termsBucket := tx.Bucket(bucketTerms)
		for _, term := range meta.Terms {
			if err := applyPostings(termsBucket, term, map[string]*domain.Posting{passageID: nil}); err != nil {
				return err
			}
		}
		if err := passagesBucket.Delete([]byte(passageID)); err != nil {
			return err
		}

		stats, err := readStats(tx)
		if err != nil {
			return err
		}
		stats.TotalPassages--
		stats.TotalTokens -= meta.Length
		return writeStats(tx, stats)
	})
}

func (s *BoltStore) GetStats() (domain.Stats, error) {
	var stats domain.Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		stats, err = readStats(tx)
		return err
	})
	return stats, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func readStats(tx *bbolt.Tx) (domain.Stats, error) {
	var stats domain.Stats
	data := tx.Bucket(bucketStats).Get(keyStats)
	if data == nil {
		return stats, nil
	}
	err := json.Unmarshal(data, &stats)
	return stats, err
}

func writeStats(tx *bbolt.Tx, stats domain.Stats) error {
	if stats.TotalPassages > 0 {
		stats.AvgPassageLen = float64(stats.TotalTokens) / float64(stats.TotalPassages)
	} else {
		stats = domain.Stats{}
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketStats).Put(keyStats, data)
}
