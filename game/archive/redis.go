package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "connectfour:matches"

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
	Limit    int
}

// RedisStore keeps JSON-encoded records in a capped Redis list, newest at
// the head.
type RedisStore struct {
	client *redis.Client
	key    string
	limit  int
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	store := newRedisStore(opts)
	if err := store.client.Ping(ctx).Err(); err != nil {
		store.client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return store, nil
}

func newRedisStore(opts RedisOptions) *RedisStore {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	if opts.Key == "" {
		opts.Key = defaultRedisKey
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultMemoryLimit
	}
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		key:   opts.Key,
		limit: opts.Limit,
	}
}

func (s *RedisStore) Save(ctx context.Context, record *MatchRecord) error {
	if err := prepare(record); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal match record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.key, data)
	pipe.LTrim(ctx, s.key, 0, int64(s.limit-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store match record: %w", err)
	}
	return nil
}

func (s *RedisStore) Recent(ctx context.Context, limit int) ([]*MatchRecord, error) {
	limit = clampLimit(limit, s.limit)

	values, err := s.client.LRange(ctx, s.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read match records: %w", err)
	}

	records := make([]*MatchRecord, 0, len(values))
	for _, v := range values {
		var record MatchRecord
		if err := json.Unmarshal([]byte(v), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal match record: %w", err)
		}
		records = append(records, &record)
	}
	return records, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
