package linker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"
	"ragchain/internal/domain"
	"ragchain/internal/port"
)

var bucketLinks = []byte("links")

// BoltLinker keeps passage documents in a local bbolt file. It needs no
// server and is the default for single-machine use.
type BoltLinker struct {
	db        *bbolt.DB
	logger    *zap.Logger
	closeOnce sync.Once
	closeErr  error
}

var _ port.Linker = (*BoltLinker)(nil)

func NewBoltLinker(path string, logger *zap.Logger) (*BoltLinker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, domain.Connectivity(fmt.Sprintf("failed to open linker db %s", path), err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketLinks)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucketLinks, err)
	}

	return &BoltLinker{db: db, logger: logger.Named("bolt-linker")}, nil
}

func (l *BoltLinker) PutJSON(ctx context.Context, ids []string, docs []domain.Document) error {
	if err := checkPut(ids, docs); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	encoded, err := encodeDocuments(ids, docs)
	if err != nil {
		return err
	}

	err = l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketLinks)
		for i, id := range ids {
			if err := b.Put([]byte(id), encoded[i]); err != nil {
				return fmt.Errorf("failed to put %q: %w", id, err)
			}
		}
		return nil
	})
	return l.wrap("failed to write documents", err)
}

func (l *BoltLinker) GetJSON(ctx context.Context, ids []string) (domain.LinkResult, error) {
	if err := checkGet(ids); err != nil {
		return domain.LinkResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.LinkResult{}, err
	}

	c := newCollector(l.logger, len(ids))
	err := l.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketLinks)
		for i, id := range ids {
			data := b.Get([]byte(id))
			if data == nil {
				c.missingID(i, id)
				continue
			}
			// bbolt memory is only valid inside the transaction; raw decodes it here
			c.raw(i, id, data)
		}
		return nil
	})
	if err != nil {
		return domain.LinkResult{}, l.wrap("failed to read documents", err)
	}
	return c.result, nil
}

func (l *BoltLinker) DeleteJSON(ctx context.Context, id string) error {
	if id == "" {
		return domain.InvalidArgumentf("id must not be empty")
	}
	err := l.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketLinks).Delete([]byte(id))
	})
	return l.wrap("failed to delete document", err)
}

func (l *BoltLinker) ConnectionCheck(ctx context.Context) bool {
	err := l.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketLinks) == nil {
			return errors.New("links bucket missing")
		}
		return nil
	})
	return err == nil
}

func (l *BoltLinker) FlushDB(ctx context.Context) error {
	err := l.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketLinks); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(bucketLinks)
		return err
	})
	return l.wrap("failed to flush linker db", err)
}

func (l *BoltLinker) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.db.Close()
	})
	return l.closeErr
}

func (l *BoltLinker) wrap(msg string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return domain.Connectivity(msg, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
