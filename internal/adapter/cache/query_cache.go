package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"

	"go.uber.org/zap"
	"ragchain/internal/domain"
	"ragchain/internal/logging"
	"ragchain/internal/port"
)

// QueryCache is an LRU of retrieval results with a TTL. Invalidate bumps a
// generation counter so entries computed before an ingest are never served.
type QueryCache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	order    []string
	maxSize  int
	ttl      time.Duration
	indexGen uint64
	now      func() time.Time
}

type cacheEntry struct {
	result    domain.RetrievalResult
	timestamp time.Time
	indexGen  uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(query string, topK int) string {
	h := sha256.New()
	h.Write([]byte(query))
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(topK))
	h.Write(k[:])
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func (c *QueryCache) Get(query string, topK int) (domain.RetrievalResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(query, topK)
	entry, exists := c.entries[key]
	if !exists {
		return domain.RetrievalResult{}, false
	}

	if c.now().Sub(entry.timestamp) > c.ttl || entry.indexGen != c.indexGen {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return domain.RetrievalResult{}, false
	}

	c.moveToEnd(key)
	return clone(entry.result), true
}

// Generation identifies the index state. Read it before computing a result
// and pass it to Put.
func (c *QueryCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexGen
}

// Put stores result for (query, topK). A result computed under an older
// generation is dropped.
func (c *QueryCache) Put(query string, topK int, gen uint64, result domain.RetrievalResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.indexGen {
		return
	}

	key := cacheKey(query, topK)
	entry := &cacheEntry{
		result:    clone(result),
		timestamp: c.now(),
		indexGen:  gen,
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = entry
	c.order = append(c.order, key)
}

func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.indexGen++
}

func (c *QueryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func clone(r domain.RetrievalResult) domain.RetrievalResult {
	return domain.RetrievalResult{
		IDs:    append([]string(nil), r.IDs...),
		Scores: append([]float64(nil), r.Scores...),
	}
}

// CachedRetrieval serves repeated queries from a QueryCache. Ingest goes to
// the wrapped engine and then invalidates the cache.
type CachedRetrieval struct {
	inner  port.Retrieval
	cache  *QueryCache
	logger *zap.Logger
}

var (
	_ port.Retrieval = (*CachedRetrieval)(nil)
	_ port.Remover   = (*CachedRetrieval)(nil)
)

func NewCachedRetrieval(inner port.Retrieval, cache *QueryCache, logger *zap.Logger) *CachedRetrieval {
	logger = logging.OrNop(logger)
	return &CachedRetrieval{inner: inner, cache: cache, logger: logger}
}

func (r *CachedRetrieval) Ingest(ctx context.Context, passages []domain.Passage) error {
	defer r.cache.Invalidate()
	return r.inner.Ingest(ctx, passages)
}

func (r *CachedRetrieval) RetrieveIDWithScores(ctx context.Context, query string, topK int) (domain.RetrievalResult, error) {
	if err := domain.ValidateTopK(topK); err != nil {
		return domain.RetrievalResult{}, err
	}
	if res, hit := r.cache.Get(query, topK); hit {
		return res, nil
	}

	gen := r.cache.Generation()
	res, err := r.inner.RetrieveIDWithScores(ctx, query, topK)
	if err != nil {
		return domain.RetrievalResult{}, err
	}
	r.cache.Put(query, topK, gen, res)
	return res, nil
}

func (r *CachedRetrieval) RetrieveID(ctx context.Context, query string, topK int) ([]string, error) {
	res, err := r.RetrieveIDWithScores(ctx, query, topK)
	return res.IDs, err
}

// Retrieve uses the cached ids and resolves content fresh, skipping ids
// without stored content.
func (r *CachedRetrieval) Retrieve(ctx context.Context, query string, topK int) ([]domain.Passage, error) {
	ids, err := r.RetrieveID(ctx, query, topK)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	fetched, err := r.inner.Fetch(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, d := range fetched.Diagnostics {
		r.logger.Warn("retrieved id has no stored passage, omitting",
			zap.String("id", d.ID), zap.String("kind", string(d.Kind)))
	}
	return fetched.Found(), nil
}

func (r *CachedRetrieval) Fetch(ctx context.Context, ids []string) (domain.FetchResult, error) {
	return r.inner.Fetch(ctx, ids)
}

// Remove forwards to the wrapped engine and invalidates the cache.
func (r *CachedRetrieval) Remove(ctx context.Context, ids ...string) error {
	defer r.cache.Invalidate()
	rm, ok := r.inner.(port.Remover)
	if !ok {
		return domain.InvalidArgumentf("%T does not support removal", r.inner)
	}
	return rm.Remove(ctx, ids...)
}
