package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"topic-tonic/internal/domain"
)

// RedisActivityQueue реализует очередь событий на базе Redis lists.
// Используется в dev-окружении, когда RabbitMQ не настроен.
type RedisActivityQueue struct {
	client *redis.Client
	key    string
}

// NewRedisActivityQueue создаёт очередь по указанному ключу.
func NewRedisActivityQueue(client *redis.Client, key string) *RedisActivityQueue {
	return &RedisActivityQueue{client: client, key: key}
}

var _ domain.ActivityQueue = (*RedisActivityQueue)(nil)

// Publish публикует событие в очередь.
func (q *RedisActivityQueue) Publish(ctx context.Context, event domain.ActivityEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push event: %w", err)
	}
	return nil
}

// Pop блокирующе читает следующее событие из очереди.
func (q *RedisActivityQueue) Pop(ctx context.Context) (domain.ActivityEvent, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.ActivityEvent{}, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.ActivityEvent{}, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.ActivityEvent{}, err
		}
		if len(res) != 2 {
			return domain.ActivityEvent{}, errors.New("redis queue: unexpected response")
		}
		var event domain.ActivityEvent
		if err := json.Unmarshal([]byte(res[1]), &event); err != nil {
			return domain.ActivityEvent{}, fmt.Errorf("decode event: %w", err)
		}
		return event, nil
	}
}
