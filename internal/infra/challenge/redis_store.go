package challenge

import (
	"context"
	"time"

	"archer/internal/domain/repository"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps challenges in Redis with native key expiry. Take uses
// GETDEL so only one caller ever reads a value.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore wraps client, namespacing every key with prefix.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

var _ repository.ChallengeStore = (*RedisStore)(nil)

// Put stores value under key for ttl.
func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.Errorf("challenge ttl must be positive, got %s", ttl)
	}

	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to store challenge")
	}

	return nil
}

// Get returns the value without consuming it.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		return nil, s.mapErr(err, "failed to read challenge")
	}

	return value, nil
}

// Take returns the value and deletes it.
func (s *RedisStore) Take(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.GetDel(ctx, s.prefix+key).Bytes()
	if err != nil {
		return nil, s.mapErr(err, "failed to take challenge")
	}

	return value, nil
}

// Delete removes keys.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = s.prefix + key
	}
	if err := s.client.Del(ctx, prefixed...).Err(); err != nil {
		return errors.Wrap(err, "failed to delete challenges")
	}

	return nil
}

func (s *RedisStore) mapErr(err error, message string) error {
	if errors.Is(err, redis.Nil) {
		return errors.WithStack(repository.ErrChallengeNotFound)
	}

	return errors.Wrap(err, message)
}
