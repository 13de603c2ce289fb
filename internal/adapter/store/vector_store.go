package store

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.etcd.io/bbolt"
	"ragchain/internal/domain"
	"ragchain/internal/port"
)

var (
	bucketVectors = []byte("vectors")
)

// BoltVectorStore implements VectorStore using BoltDB for persistence.
// Uses brute-force search for simplicity; can be replaced with HNSW for larger indexes.
type BoltVectorStore struct {
	db        *bbolt.DB
	dimension int
	mu        sync.RWMutex
	// In-memory cache for fast search
	vectors map[string]vectorEntry
}

var _ port.VectorStore = (*BoltVectorStore)(nil)

type vectorEntry struct {
	vector []float32
	seq    uint64
}

type storedVector struct {
	Vector []float32 `json:"v"`
	Seq    uint64    `json:"s"`
}

// NewBoltVectorStore creates a vector store in the given database. A zero
// dimension is fixed by the first stored vector.
func NewBoltVectorStore(db *bbolt.DB, dimension int) (*BoltVectorStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketVectors)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vectors bucket: %w", err)
	}

	store := &BoltVectorStore{
		db:        db,
		dimension: dimension,
		vectors:   make(map[string]vectorEntry),
	}

	if err := store.loadVectors(); err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}

	return store, nil
}

// loadVectors loads all vectors from BoltDB into memory.
func (s *BoltVectorStore) loadVectors() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // Skip corrupted entries
			}
			if s.dimension == 0 {
				s.dimension = len(stored.Vector)
			}
			if len(stored.Vector) != s.dimension {
				return domain.Configurationf(
					"stored vector %q has %d dimensions but %d are expected; re-ingest to rebuild the index",
					k, len(stored.Vector), s.dimension)
			}
			s.vectors[string(k)] = vectorEntry{vector: stored.Vector, seq: stored.Seq}
			return nil
		})
	})
}

// Dimension returns the vector size, 0 while the store is empty and unset.
func (s *BoltVectorStore) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// Upsert adds or updates vectors in the store.
func (s *BoltVectorStore) Upsert(items []port.VectorItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dimension
	if dim == 0 && len(items) > 0 {
		dim = len(items[0].Vector)
	}
	for _, item := range items {
		if len(item.Vector) != dim {
			return domain.InvalidArgumentf("vector dimension mismatch for %q: expected %d, got %d", item.ID, dim, len(item.Vector))
		}
	}

	staged := make(map[string]vectorEntry, len(items))
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return fmt.Errorf("vectors bucket not found")
		}

		for _, item := range items {
			entry, ok := staged[item.ID]
			if !ok {
				entry, ok = s.vectors[item.ID]
			}
			if !ok {
				seq, err := b.NextSequence()
				if err != nil {
					return err
				}
				entry.seq = seq
			}
			entry.vector = item.Vector

			data, err := json.Marshal(storedVector{Vector: entry.vector, Seq: entry.seq})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(item.ID), data); err != nil {
				return err
			}
			staged[item.ID] = entry
		}
		return nil
	})
	if err != nil {
		return err
	}

	// the cache only changes once the transaction committed
	for id, entry := range staged {
		s.vectors[id] = entry
	}
	s.dimension = dim
	return nil
}

// Search finds the k nearest vectors to the query using cosine similarity.
func (s *BoltVectorStore) Search(query []float32, k int) ([]port.VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) == 0 {
		return nil, nil
	}
	if len(query) != s.dimension {
		return nil, domain.InvalidArgumentf("query dimension mismatch: expected %d, got %d", s.dimension, len(query))
	}

	type scored struct {
		id    string
		score float64
		seq   uint64
	}

	scores := make([]scored, 0, len(s.vectors))
	for id, entry := range s.vectors {
		scores = append(scores, scored{
			id:    id,
			score: cosineSimilarity(query, entry.vector),
			seq:   entry.seq,
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].seq < scores[j].seq
	})

	if k > len(scores) {
		k = len(scores)
	}

	results := make([]port.VectorResult, k)
	for i := 0; i < k; i++ {
		results[i] = port.VectorResult{ID: scores[i].id, Score: scores[i].score}
	}

	return results, nil
}

// Delete removes vectors by their IDs.
func (s *BoltVectorStore) Delete(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}
		for _, id := range ids {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range ids {
		delete(s.vectors, id)
	}
	return nil
}

// Count returns the number of vectors in the store.
func (s *BoltVectorStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
