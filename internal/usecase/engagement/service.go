package engagement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"topic-tonic/internal/domain"
	"topic-tonic/internal/infra/metrics"
)

var (
	ErrCommentEmpty   = errors.New("текст комментария обязателен")
	ErrCommentTooLong = errors.New("комментарий длиннее 2000 символов")
	// ErrNotCommentAuthor возвращается при попытке удалить чужой комментарий.
	ErrNotCommentAuthor = errors.New("удалять комментарий может только его автор")
)

const maxCommentLength = 2000

// Service управляет комментариями и лайками.
type Service struct {
	topics   domain.TopicRepo
	comments domain.CommentRepo
	likes    domain.LikeRepo
	queue    domain.ActivityQueue
	clock    domain.Clock
}

// NewService создаёт сервис вовлечённости. queue может быть nil.
func NewService(topics domain.TopicRepo, comments domain.CommentRepo, likes domain.LikeRepo, queue domain.ActivityQueue, clock domain.Clock) *Service {
	return &Service{topics: topics, comments: comments, likes: likes, queue: queue, clock: clock}
}

// AddComment добавляет комментарий к существующей теме.
func (s *Service) AddComment(ctx context.Context, topicID, userID int64, body string) (domain.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.Comment{}, ErrCommentEmpty
	}
	if len([]rune(body)) > maxCommentLength {
		return domain.Comment{}, ErrCommentTooLong
	}
	if _, err := s.topics.GetTopic(ctx, topicID); err != nil {
		return domain.Comment{}, err
	}
	comment, err := s.comments.CreateComment(ctx, topicID, userID, body)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("создание комментария: %w", err)
	}
	s.publish(ctx, domain.ActivityEvent{
		Event:     domain.ActivityEventCommentAdded,
		UserID:    userID,
		TopicID:   topicID,
		CommentID: comment.ID,
	})
	return comment, nil
}

// DeleteComment удаляет комментарий. Комментарий должен принадлежать теме,
// удалить его может только автор.
func (s *Service) DeleteComment(ctx context.Context, topicID, commentID, userID int64) error {
	comment, err := s.comments.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.TopicID != topicID {
		return domain.ErrCommentNotFound
	}
	if comment.UserID != userID {
		return ErrNotCommentAuthor
	}
	return s.comments.DeleteComment(ctx, commentID)
}

// Like ставит лайк теме. Повторный лайк той же темы ничего не меняет.
func (s *Service) Like(ctx context.Context, topicID, userID int64) error {
	if _, err := s.topics.GetTopic(ctx, topicID); err != nil {
		return err
	}
	created, err := s.likes.EnsureLike(ctx, topicID, userID)
	if err != nil {
		return fmt.Errorf("сохранение лайка: %w", err)
	}
	if created {
		s.publish(ctx, domain.ActivityEvent{
			Event:   domain.ActivityEventTopicLiked,
			UserID:  userID,
			TopicID: topicID,
		})
	}
	return nil
}

// Unlike снимает лайк, если он был.
func (s *Service) Unlike(ctx context.Context, topicID, userID int64) error {
	if err := s.likes.DeleteLike(ctx, topicID, userID); err != nil {
		return fmt.Errorf("удаление лайка: %w", err)
	}
	s.publish(ctx, domain.ActivityEvent{
		Event:   domain.ActivityEventTopicUnliked,
		UserID:  userID,
		TopicID: topicID,
	})
	return nil
}

func (s *Service) publish(ctx context.Context, event domain.ActivityEvent) {
	if s.queue == nil {
		return
	}
	event.ID = uuid.NewString()
	event.OccurredAt = s.clock.Now().UTC()
	if err := s.queue.Publish(ctx, event); err == nil {
		metrics.IncActivityEvent(event.Event)
	}
}
