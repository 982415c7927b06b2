package revocation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "gateway:valid-since:"

// RedisStore keeps revocation instants in Redis so that every replica sees a
// logout immediately.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{
		client:    client,
		keyPrefix: defaultKeyPrefix,
	}
}

// NewRedisStoreFromURL parses a redis:// URL and pings the server.
func NewRedisStoreFromURL(ctx context.Context, rawURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("[revocation NewRedisStoreFromURL] parse url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("[revocation NewRedisStoreFromURL] ping: %w", err)
	}
	return NewRedisStore(client), nil
}

func (s *RedisStore) key(uid string) string {
	return s.keyPrefix + uid
}

func (s *RedisStore) SetValidSince(ctx context.Context, uid string, t time.Time, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(uid), t.Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("[revocation RedisStore.SetValidSince] %w", err)
	}
	return nil
}

func (s *RedisStore) ValidSince(ctx context.Context, uid string) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, s.key(uid)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("[revocation RedisStore.ValidSince] %w", err)
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("[revocation RedisStore.ValidSince] corrupt value for %s: %w", uid, err)
	}
	return time.Unix(secs, 0), true, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
