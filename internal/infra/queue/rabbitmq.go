package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"topic-tonic/internal/domain"
	"topic-tonic/internal/infra/metrics"
)

// RabbitActivityQueue реализует очередь событий активности через AMQP.
type RabbitActivityQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

// NewRabbitActivityQueue подключается к брокеру и объявляет долговечную очередь.
func NewRabbitActivityQueue(amqpURL, queue string) (*RabbitActivityQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url пустой")
	}
	if queue == "" {
		return nil, errors.New("имя очереди пустое")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("подключение к rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("открытие канала: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("объявление очереди: %w", err)
	}
	return &RabbitActivityQueue{conn: conn, ch: ch, queue: queue}, nil
}

var _ domain.ActivityQueue = (*RabbitActivityQueue)(nil)

// Publish публикует событие в очередь.
func (q *RabbitActivityQueue) Publish(ctx context.Context, event domain.ActivityEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Pop блокирующе читает следующее событие из очереди.
func (q *RabbitActivityQueue) Pop(ctx context.Context) (domain.ActivityEvent, error) {
	deliveries, err := q.consumeChannel()
	if err != nil {
		return domain.ActivityEvent{}, err
	}
	for {
		select {
		case <-ctx.Done():
			return domain.ActivityEvent{}, ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return domain.ActivityEvent{}, errors.New("канал доставки закрыт")
			}
			var event domain.ActivityEvent
			if err := json.Unmarshal(delivery.Body, &event); err != nil {
				_ = delivery.Nack(false, false)
				return domain.ActivityEvent{}, fmt.Errorf("decode event: %w", err)
			}
			if err := delivery.Ack(false); err != nil {
				return domain.ActivityEvent{}, fmt.Errorf("ack event: %w", err)
			}
			return event, nil
		}
	}
}

// Close закрывает канал и соединение.
func (q *RabbitActivityQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}

func (q *RabbitActivityQueue) consumeChannel() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("подписка на очередь: %w", err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}
