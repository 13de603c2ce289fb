package linker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"ragchain/internal/domain"
	"ragchain/internal/port"
)

var errMemoryClosed = errors.New("memory linker is closed")

// MemoryLinker is an in-process Linker. Documents are kept encoded so that
// callers never share maps with the store.
type MemoryLinker struct {
	mu     sync.RWMutex
	docs   map[string][]byte
	closed bool
	logger *zap.Logger
}

var _ port.Linker = (*MemoryLinker)(nil)

func NewMemoryLinker(logger *zap.Logger) *MemoryLinker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryLinker{
		docs:   make(map[string][]byte),
		logger: logger.Named("memory-linker"),
	}
}

func (l *MemoryLinker) PutJSON(ctx context.Context, ids []string, docs []domain.Document) error {
	if err := checkPut(ids, docs); err != nil {
		return err
	}
	encoded, err := encodeDocuments(ids, docs)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return domain.Connectivity("failed to write documents", errMemoryClosed)
	}
	for i, id := range ids {
		l.docs[id] = encoded[i]
	}
	return nil
}

func (l *MemoryLinker) GetJSON(ctx context.Context, ids []string) (domain.LinkResult, error) {
	if err := checkGet(ids); err != nil {
		return domain.LinkResult{}, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return domain.LinkResult{}, domain.Connectivity("failed to read documents", errMemoryClosed)
	}

	c := newCollector(l.logger, len(ids))
	for i, id := range ids {
		data, ok := l.docs[id]
		if !ok {
			c.missingID(i, id)
			continue
		}
		c.raw(i, id, data)
	}
	return c.result, nil
}

func (l *MemoryLinker) DeleteJSON(ctx context.Context, id string) error {
	if id == "" {
		return domain.InvalidArgumentf("id must not be empty")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return domain.Connectivity("failed to delete document", errMemoryClosed)
	}
	delete(l.docs, id)
	return nil
}

func (l *MemoryLinker) ConnectionCheck(ctx context.Context) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return !l.closed
}

func (l *MemoryLinker) FlushDB(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return domain.Connectivity("failed to flush", errMemoryClosed)
	}
	l.docs = make(map[string][]byte)
	return nil
}

func (l *MemoryLinker) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
