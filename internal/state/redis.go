package state

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	urlsKey   = "urls"
	hashesKey = "hashes"
)

type setClient interface {
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	Close() error
}

// RedisStore keeps both sets as Redis sets under a common key prefix.
type RedisStore struct {
	client setClient
	prefix string
	logger *zap.Logger
}

// NewRedisStore initializes a Redis-backed Store.
func NewRedisStore(addr, prefix string, logger *zap.Logger) *RedisStore {
	return NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: addr}), prefix, logger)
}

// NewRedisStoreWithClient builds a store around an existing client (tests).
func NewRedisStoreWithClient(client setClient, prefix string, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Load reads both sets.
func (s *RedisStore) Load(ctx context.Context) (Snapshot, error) {
	urls, err := s.client.SMembers(ctx, s.prefix+urlsKey).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("load urls: %w", err)
	}
	hashes, err := s.client.SMembers(ctx, s.prefix+hashesKey).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("load hashes: %w", err)
	}
	s.logger.Info("loaded state from redis", zap.Int("urls", len(urls)), zap.Int("hashes", len(hashes)))
	return Snapshot{URLs: sortedCopy(urls), Hashes: sortedCopy(hashes)}, nil
}

// Save adds every member of each non-empty set. Redis sets make the write
// idempotent, so members saved by an earlier run are left alone.
func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	if err := s.add(ctx, urlsKey, snap.URLs); err != nil {
		return fmt.Errorf("save urls: %w", err)
	}
	if err := s.add(ctx, hashesKey, snap.Hashes); err != nil {
		return fmt.Errorf("save hashes: %w", err)
	}
	return nil
}

func (s *RedisStore) add(ctx context.Context, key string, items []string) error {
	if len(items) == 0 {
		return nil
	}
	members := make([]interface{}, len(items))
	for i, item := range items {
		members[i] = item
	}
	if err := s.client.SAdd(ctx, s.prefix+key, members...).Err(); err != nil {
		return err
	}
	return nil
}
