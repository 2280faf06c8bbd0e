package domain

import (
	"context"
	"time"
)

// UserRepo управляет пользователями.
type UserRepo interface {
	CreateUser(ctx context.Context, name, email string, passwordHash []byte) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id int64) (User, error)
}

// TopicRepo управляет темами.
type TopicRepo interface {
	CreateTopic(ctx context.Context, userID int64, title, body string) (Topic, error)
	GetTopic(ctx context.Context, id int64) (TopicWithStats, error)
	ListAllTopics(ctx context.Context) ([]TopicWithStats, error)
	ListUserTopics(ctx context.Context, userID int64, limit, offset int) ([]TopicWithStats, error)
	CountUserTopics(ctx context.Context, userID int64) (int, error)
}

// CommentRepo управляет комментариями.
type CommentRepo interface {
	CreateComment(ctx context.Context, topicID, userID int64, body string) (Comment, error)
	GetComment(ctx context.Context, id int64) (Comment, error)
	DeleteComment(ctx context.Context, id int64) error
	ListTopicComments(ctx context.Context, topicID int64) ([]CommentWithAuthor, error)
}

// LikeRepo управляет лайками.
type LikeRepo interface {
	// EnsureLike ставит лайк, если его ещё нет. Возвращает true, если запись создана.
	EnsureLike(ctx context.Context, topicID, userID int64) (bool, error)
	DeleteLike(ctx context.Context, topicID, userID int64) error
	HasLiked(ctx context.Context, topicID, userID int64) (bool, error)
}

// InsightsRepo — выборки, ограниченные владельцем тем.
// Комментарии и лайки попадают в выборку только через темы владельца,
// никогда через собственного автора. Параметр since — включающая нижняя
// граница по created_at; nil означает всю историю.
type InsightsRepo interface {
	ListOwnedTopicStats(ctx context.Context, ownerID int64) ([]TopicWithStats, error)
	CountScopedComments(ctx context.Context, ownerID int64, since *time.Time) (int, error)
	CountScopedLikes(ctx context.Context, ownerID int64, since *time.Time) (int, error)
	// CountOwnedTopicsByDay возвращает разреженное отображение день -> число тем,
	// ключ — каноничная дата YYYY-MM-DD.
	CountOwnedTopicsByDay(ctx context.Context, ownerID int64, since time.Time) (map[string]int, error)
	CountScopedLikesByDay(ctx context.Context, ownerID int64, since time.Time) (map[string]int, error)
}

// Clock отдаёт текущий момент. Выносится в интерфейс, чтобы тесты могли
// зафиксировать «сейчас» и детерминированно проверять границы дней.
type Clock interface {
	Now() time.Time
}

// SessionStore хранит сессии пользователей по непрозрачному токену.
type SessionStore interface {
	SaveSession(ctx context.Context, token string, userID int64, ttl time.Duration) error
	ResolveSession(ctx context.Context, token string) (int64, error)
	DeleteSession(ctx context.Context, token string) error
}
