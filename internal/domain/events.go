package domain

import (
	"context"
	"time"
)

// ActivityEvent описывает действие пользователя, которое сохраняется для последующего анализа.
type ActivityEvent struct {
	ID         string    `json:"id"`
	Event      string    `json:"event"`
	UserID     int64     `json:"user_id"`
	TopicID    int64     `json:"topic_id,omitempty"`
	CommentID  int64     `json:"comment_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	// ActivityEventUserRegistered фиксирует регистрацию нового пользователя.
	ActivityEventUserRegistered = "user_registered"
	// ActivityEventTopicCreated фиксирует создание темы.
	ActivityEventTopicCreated = "topic_created"
	// ActivityEventCommentAdded фиксирует добавление комментария.
	ActivityEventCommentAdded = "comment_added"
	// ActivityEventTopicLiked фиксирует лайк темы.
	ActivityEventTopicLiked = "topic_liked"
	// ActivityEventTopicUnliked фиксирует снятие лайка.
	ActivityEventTopicUnliked = "topic_unliked"
)

// ActivityQueue описывает очередь событий активности.
type ActivityQueue interface {
	Publish(ctx context.Context, event ActivityEvent) error
	// Pop блокирующе читает следующее событие из очереди.
	Pop(ctx context.Context) (ActivityEvent, error)
}

// ActivityAuditRepo сохраняет события активности. Запись идемпотентна по ID события.
type ActivityAuditRepo interface {
	RecordActivity(ctx context.Context, event ActivityEvent) error
}
