package topics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"topic-tonic/internal/domain"
	"topic-tonic/internal/infra/metrics"
)

var (
	ErrTitleRequired = errors.New("заголовок темы обязателен")
	ErrTitleTooLong  = errors.New("заголовок темы длиннее 255 символов")
)

const maxTitleLength = 255

// DefaultPageSize — число тем на страницу в личном списке.
const DefaultPageSize = 10

// Service управляет темами и их представлением.
type Service struct {
	topics   domain.TopicRepo
	comments domain.CommentRepo
	likes    domain.LikeRepo
	queue    domain.ActivityQueue
	clock    domain.Clock
	pageSize int
}

// NewService создаёт сервис тем. queue может быть nil, тогда события не публикуются.
func NewService(topics domain.TopicRepo, comments domain.CommentRepo, likes domain.LikeRepo, queue domain.ActivityQueue, clock domain.Clock, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Service{topics: topics, comments: comments, likes: likes, queue: queue, clock: clock, pageSize: pageSize}
}

// TopicView — тема в списках (личный список и дашборд).
type TopicView struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	Author       string `json:"author"`
	CreatedAt    string `json:"created_at"`
	CreatedHuman string `json:"created_human"`
	CommentCount int    `json:"comment_count"`
	LikeCount    int    `json:"like_count"`
}

// TopicPage — страница личного списка тем.
type TopicPage struct {
	Topics     []TopicView `json:"topics"`
	Page       int         `json:"page"`
	PerPage    int         `json:"per_page"`
	Total      int         `json:"total"`
	TotalPages int         `json:"total_pages"`
}

// CommentView — комментарий в карточке темы.
type CommentView struct {
	ID           int64  `json:"id"`
	Body         string `json:"body"`
	AuthorName   string `json:"author_name"`
	CreatedHuman string `json:"created_human"`
	CanDelete    bool   `json:"can_delete"`
}

// TopicDetail — полная карточка темы.
type TopicDetail struct {
	ID             int64         `json:"id"`
	Title          string        `json:"title"`
	Body           string        `json:"body"`
	AuthorName     string        `json:"author_name"`
	CreatedHuman   string        `json:"created_human"`
	CommentCount   int           `json:"comment_count"`
	LikeCount      int           `json:"like_count"`
	ViewerHasLiked bool          `json:"viewer_has_liked"`
	Comments       []CommentView `json:"comments"`
}

// Create заводит новую тему и публикует событие активности.
func (s *Service) Create(ctx context.Context, userID int64, title, body string) (domain.Topic, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Topic{}, ErrTitleRequired
	}
	if len([]rune(title)) > maxTitleLength {
		return domain.Topic{}, ErrTitleTooLong
	}
	topic, err := s.topics.CreateTopic(ctx, userID, title, strings.TrimSpace(body))
	if err != nil {
		return domain.Topic{}, fmt.Errorf("создание темы: %w", err)
	}
	s.publish(ctx, domain.ActivityEvent{
		Event:   domain.ActivityEventTopicCreated,
		UserID:  userID,
		TopicID: topic.ID,
	})
	return topic, nil
}

// ListOwn возвращает страницу тем пользователя, новые первыми.
func (s *Service) ListOwn(ctx context.Context, userID int64, page int) (TopicPage, error) {
	if page < 1 {
		page = 1
	}
	total, err := s.topics.CountUserTopics(ctx, userID)
	if err != nil {
		return TopicPage{}, fmt.Errorf("подсчёт тем: %w", err)
	}
	rows, err := s.topics.ListUserTopics(ctx, userID, s.pageSize, (page-1)*s.pageSize)
	if err != nil {
		return TopicPage{}, fmt.Errorf("темы пользователя: %w", err)
	}
	totalPages := (total + s.pageSize - 1) / s.pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	return TopicPage{
		Topics:     s.toViews(rows),
		Page:       page,
		PerPage:    s.pageSize,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// Dashboard возвращает все темы форума, новые первыми.
func (s *Service) Dashboard(ctx context.Context) ([]TopicView, error) {
	rows, err := s.topics.ListAllTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("все темы: %w", err)
	}
	return s.toViews(rows), nil
}

// Show собирает карточку темы вместе с комментариями. Комментарии отдаются
// от старых к новым, can_delete выставляется только автору комментария.
func (s *Service) Show(ctx context.Context, topicID, viewerID int64) (TopicDetail, error) {
	topic, err := s.topics.GetTopic(ctx, topicID)
	if err != nil {
		return TopicDetail{}, err
	}
	comments, err := s.comments.ListTopicComments(ctx, topicID)
	if err != nil {
		return TopicDetail{}, fmt.Errorf("комментарии темы: %w", err)
	}
	liked, err := s.likes.HasLiked(ctx, topicID, viewerID)
	if err != nil {
		return TopicDetail{}, fmt.Errorf("проверка лайка: %w", err)
	}

	now := s.clock.Now()
	views := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, CommentView{
			ID:           c.ID,
			Body:         c.Body,
			AuthorName:   c.AuthorName,
			CreatedHuman: domain.HumanAge(c.CreatedAt, now),
			CanDelete:    c.UserID == viewerID,
		})
	}
	return TopicDetail{
		ID:             topic.ID,
		Title:          topic.Title,
		Body:           topic.Body,
		AuthorName:     topic.AuthorName,
		CreatedHuman:   domain.HumanAge(topic.CreatedAt, now),
		CommentCount:   topic.CommentCount,
		LikeCount:      topic.LikeCount,
		ViewerHasLiked: liked,
		Comments:       views,
	}, nil
}

func (s *Service) toViews(rows []domain.TopicWithStats) []TopicView {
	now := s.clock.Now()
	views := make([]TopicView, 0, len(rows))
	for _, row := range rows {
		views = append(views, TopicView{
			ID:           row.ID,
			Title:        row.Title,
			Body:         row.Body,
			Author:       row.AuthorName,
			CreatedAt:    row.CreatedAt.Format(time.DateTime),
			CreatedHuman: domain.HumanAge(row.CreatedAt, now),
			CommentCount: row.CommentCount,
			LikeCount:    row.LikeCount,
		})
	}
	return views
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
