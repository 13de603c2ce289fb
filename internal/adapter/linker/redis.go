package linker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"ragchain/internal/domain"
	"ragchain/internal/port"
)

// RedisOptions configures a RedisLinker.
type RedisOptions struct {
	Host     string
	Port     int
	DB       *int
	Password string

	// JSONModule stores documents with RedisJSON (JSON.SET/JSON.MGET)
	// instead of plain string values.
	JSONModule bool

	DialTimeout time.Duration
	ReadTimeout time.Duration
	PoolSize    int
}

func (o RedisOptions) validate() error {
	if o.Host == "" {
		return domain.Configurationf("redis host is required")
	}
	if o.Port <= 0 || o.Port > 65535 {
		return domain.Configurationf("redis port must be in 1..65535, got %d", o.Port)
	}
	if o.DB == nil {
		return domain.Configurationf("redis db is required")
	}
	if *o.DB < 0 {
		return domain.Configurationf("redis db must not be negative, got %d", *o.DB)
	}
	return nil
}

// RedisLinker keeps passage documents in a Redis database.
type RedisLinker struct {
	client     *redis.Client
	jsonModule bool
	logger     *zap.Logger
	closeOnce  sync.Once
	closeErr   error
}

var _ port.Linker = (*RedisLinker)(nil)

// NewRedisLinker builds the client. The connection is dialed lazily by the
// pool; use ConnectionCheck to verify it.
func NewRedisLinker(opts RedisOptions, logger *zap.Logger) (*RedisLinker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Password == "" {
		logger.Warn("redis password is not set, connecting without authentication",
			zap.String("host", opts.Host), zap.Int("port", opts.Port))
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Password:     opts.Password,
		DB:           *opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.ReadTimeout,
		PoolSize:     opts.PoolSize,
	})

	return &RedisLinker{
		client:     client,
		jsonModule: opts.JSONModule,
		logger:     logger.Named("redis-linker"),
	}, nil
}

func (l *RedisLinker) PutJSON(ctx context.Context, ids []string, docs []domain.Document) error {
	if err := checkPut(ids, docs); err != nil {
		return err
	}
	encoded, err := encodeDocuments(ids, docs)
	if err != nil {
		return err
	}

	if l.jsonModule {
		args := make([]interface{}, 0, 1+3*len(ids))
		args = append(args, "JSON.MSET")
		for i, id := range ids {
			args = append(args, id, "$", string(encoded[i]))
		}
		if err := l.client.Do(ctx, args...).Err(); err != nil {
			return domain.Connectivity("failed to write documents", err)
		}
		return nil
	}

	if len(ids) == 1 {
		if err := l.client.Set(ctx, ids[0], encoded[0], 0).Err(); err != nil {
			return domain.Connectivity("failed to write document", err)
		}
		return nil
	}

	pairs := make([]interface{}, 0, 2*len(ids))
	for i, id := range ids {
		pairs = append(pairs, id, string(encoded[i]))
	}
	if err := l.client.MSet(ctx, pairs...).Err(); err != nil {
		return domain.Connectivity("failed to write documents", err)
	}
	return nil
}

func (l *RedisLinker) GetJSON(ctx context.Context, ids []string) (domain.LinkResult, error) {
	if err := checkGet(ids); err != nil {
		return domain.LinkResult{}, err
	}
	c := newCollector(l.logger, len(ids))

	if l.jsonModule {
		args := make([]interface{}, 0, len(ids)+2)
		args = append(args, "JSON.MGET")
		for _, id := range ids {
			args = append(args, id)
		}
		args = append(args, "$")
		vals, err := l.client.Do(ctx, args...).Slice()
		if err != nil {
			return domain.LinkResult{}, domain.Connectivity("failed to read documents", err)
		}
		for i, id := range ids {
			var v interface{}
			if i < len(vals) {
				v = vals[i]
			}
			collectJSONPath(c, i, id, v)
		}
		return c.result, nil
	}

	if len(ids) == 1 {
		data, err := l.client.Get(ctx, ids[0]).Bytes()
		if errors.Is(err, redis.Nil) {
			c.missingID(0, ids[0])
			return c.result, nil
		}
		if err != nil {
			return domain.LinkResult{}, domain.Connectivity("failed to read document", err)
		}
		c.raw(0, ids[0], data)
		return c.result, nil
	}

	vals, err := l.client.MGet(ctx, ids...).Result()
	if err != nil {
		return domain.LinkResult{}, domain.Connectivity("failed to read documents", err)
	}
	for i, id := range ids {
		switch v := vals[i].(type) {
		case nil:
			c.missingID(i, id)
		case string:
			c.raw(i, id, []byte(v))
		default:
			c.missingData(i, id, fmt.Errorf("unexpected reply type %T", v))
		}
	}
	return c.result, nil
}

// collectJSONPath handles one JSON.MGET reply entry. A "$" path yields a
// JSON array holding the root value, or nil when the key is absent.
func collectJSONPath(c *collector, i int, id string, v interface{}) {
	s, ok := v.(string)
	if v == nil || !ok {
		c.missingID(i, id)
		return
	}
	var roots []json.RawMessage
	if err := json.Unmarshal([]byte(s), &roots); err != nil {
		c.missingData(i, id, err)
		return
	}
	if len(roots) == 0 {
		c.missingData(i, id, nil)
		return
	}
	c.raw(i, id, roots[0])
}

func (l *RedisLinker) DeleteJSON(ctx context.Context, id string) error {
	if id == "" {
		return domain.InvalidArgumentf("id must not be empty")
	}
	cmd := "DEL"
	if l.jsonModule {
		cmd = "JSON.DEL"
	}
	if err := l.client.Do(ctx, cmd, id).Err(); err != nil {
		return domain.Connectivity("failed to delete document", err)
	}
	return nil
}

func (l *RedisLinker) ConnectionCheck(ctx context.Context) bool {
	if err := l.client.Ping(ctx).Err(); err != nil {
		l.logger.Debug("redis ping failed", zap.Error(err))
		return false
	}
	return true
}

func (l *RedisLinker) FlushDB(ctx context.Context) error {
	if err := l.client.FlushDB(ctx).Err(); err != nil {
		return domain.Connectivity("failed to flush database", err)
	}
	return nil
}

// Close releases the pool. Later calls are no-ops.
func (l *RedisLinker) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.client.Close()
	})
	return l.closeErr
}
