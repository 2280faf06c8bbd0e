package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"topic-tonic/internal/domain"
	"topic-tonic/internal/infra/metrics"
)

const sessionKeyPrefix = "session:"

// RedisSessionStore реализует domain.SessionStore через Redis.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore создаёт хранилище сессий.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

var _ domain.SessionStore = (*RedisSessionStore)(nil)

// SaveSession записывает сессию с TTL.
func (s *RedisSessionStore) SaveSession(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	start := time.Now()
	err := s.client.Set(ctx, sessionKeyPrefix+token, strconv.FormatInt(userID, 10), ttl).Err()
	metrics.ObserveNetworkRequest("redis", "session_save", "sessions", start, err)
	return err
}

// ResolveSession возвращает пользователя сессии.
func (s *RedisSessionStore) ResolveSession(ctx context.Context, token string) (int64, error) {
	start := time.Now()
	raw, err := s.client.Get(ctx, sessionKeyPrefix+token).Result()
	metrics.ObserveNetworkRequest("redis", "session_resolve", "sessions", start, err)
	if errors.Is(err, redis.Nil) {
		return 0, domain.ErrSessionNotFound
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

// DeleteSession удаляет сессию.
func (s *RedisSessionStore) DeleteSession(ctx context.Context, token string) error {
	start := time.Now()
	removed, err := s.client.Del(ctx, sessionKeyPrefix+token).Result()
	metrics.ObserveNetworkRequest("redis", "session_delete", "sessions", start, err)
	if err != nil {
		return err
	}
	if removed == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}
