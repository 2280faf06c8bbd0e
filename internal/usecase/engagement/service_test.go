package engagement

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"topic-tonic/internal/domain"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type stubTopicRepo struct {
	topics map[int64]domain.TopicWithStats
}

func (s *stubTopicRepo) CreateTopic(context.Context, int64, string, string) (domain.Topic, error) {
	return domain.Topic{}, errors.New("не используется")
}

func (s *stubTopicRepo) GetTopic(_ context.Context, id int64) (domain.TopicWithStats, error) {
	if t, ok := s.topics[id]; ok {
		return t, nil
	}
	return domain.TopicWithStats{}, domain.ErrTopicNotFound
}

func (s *stubTopicRepo) ListAllTopics(context.Context) ([]domain.TopicWithStats, error) {
	return nil, nil
}

func (s *stubTopicRepo) ListUserTopics(context.Context, int64, int, int) ([]domain.TopicWithStats, error) {
	return nil, nil
}

func (s *stubTopicRepo) CountUserTopics(context.Context, int64) (int, error) { return 0, nil }

type stubCommentRepo struct {
	comments map[int64]domain.Comment
	nextID   int64
}

func newStubCommentRepo() *stubCommentRepo {
	return &stubCommentRepo{comments: map[int64]domain.Comment{}}
}

func (s *stubCommentRepo) CreateComment(_ context.Context, topicID, userID int64, body string) (domain.Comment, error) {
	s.nextID++
	c := domain.Comment{ID: s.nextID, TopicID: topicID, UserID: userID, Body: body}
	s.comments[c.ID] = c
	return c, nil
}

func (s *stubCommentRepo) GetComment(_ context.Context, id int64) (domain.Comment, error) {
	if c, ok := s.comments[id]; ok {
		return c, nil
	}
	return domain.Comment{}, domain.ErrCommentNotFound
}

func (s *stubCommentRepo) DeleteComment(_ context.Context, id int64) error {
	if _, ok := s.comments[id]; !ok {
		return domain.ErrCommentNotFound
	}
	delete(s.comments, id)
	return nil
}

func (s *stubCommentRepo) ListTopicComments(context.Context, int64) ([]domain.CommentWithAuthor, error) {
	return nil, nil
}

type stubLikeRepo struct {
	likes map[[2]int64]bool
}

func newStubLikeRepo() *stubLikeRepo { return &stubLikeRepo{likes: map[[2]int64]bool{}} }

func (s *stubLikeRepo) EnsureLike(_ context.Context, topicID, userID int64) (bool, error) {
	key := [2]int64{topicID, userID}
	if s.likes[key] {
		return false, nil
	}
	s.likes[key] = true
	return true, nil
}

func (s *stubLikeRepo) DeleteLike(_ context.Context, topicID, userID int64) error {
	delete(s.likes, [2]int64{topicID, userID})
	return nil
}

func (s *stubLikeRepo) HasLiked(_ context.Context, topicID, userID int64) (bool, error) {
	return s.likes[[2]int64{topicID, userID}], nil
}

type stubQueue struct {
	events []domain.ActivityEvent
}

func (s *stubQueue) Publish(_ context.Context, event domain.ActivityEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubQueue) Pop(context.Context) (domain.ActivityEvent, error) {
	return domain.ActivityEvent{}, errors.New("очередь пуста")
}

func newService(topics *stubTopicRepo, comments *stubCommentRepo, likes *stubLikeRepo, queue *stubQueue) *Service {
	return NewService(topics, comments, likes, queue, fixedClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)})
}

func withTopic(id, ownerID int64) *stubTopicRepo {
	return &stubTopicRepo{topics: map[int64]domain.TopicWithStats{
		id: {Topic: domain.Topic{ID: id, UserID: ownerID}},
	}}
}

func TestAddCommentValidation(t *testing.T) {
	svc := newService(withTopic(1, 2), newStubCommentRepo(), newStubLikeRepo(), &stubQueue{})

	if _, err := svc.AddComment(context.Background(), 1, 5, "   "); !errors.Is(err, ErrCommentEmpty) {
		t.Fatalf("ожидали ErrCommentEmpty, получили %v", err)
	}
	if _, err := svc.AddComment(context.Background(), 1, 5, strings.Repeat("ж", 2001)); !errors.Is(err, ErrCommentTooLong) {
		t.Fatalf("ожидали ErrCommentTooLong, получили %v", err)
	}
	if _, err := svc.AddComment(context.Background(), 99, 5, "текст"); !errors.Is(err, domain.ErrTopicNotFound) {
		t.Fatalf("ожидали ErrTopicNotFound, получили %v", err)
	}
}

func TestAddCommentPublishesEvent(t *testing.T) {
	queue := &stubQueue{}
	svc := newService(withTopic(1, 2), newStubCommentRepo(), newStubLikeRepo(), queue)

	comment, err := svc.AddComment(context.Background(), 1, 5, "  текст  ")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if comment.Body != "текст" {
		t.Fatalf("пробелы не обрезаны: %q", comment.Body)
	}
	if len(queue.events) != 1 {
		t.Fatalf("ожидали одно событие, получили %d", len(queue.events))
	}
	event := queue.events[0]
	if event.Event != domain.ActivityEventCommentAdded || event.TopicID != 1 || event.UserID != 5 || event.CommentID != comment.ID {
		t.Fatalf("неверное событие: %+v", event)
	}
}

func TestAddCommentAtLimit(t *testing.T) {
	svc := newService(withTopic(1, 2), newStubCommentRepo(), newStubLikeRepo(), &stubQueue{})
	if _, err := svc.AddComment(context.Background(), 1, 5, strings.Repeat("ж", 2000)); err != nil {
		t.Fatalf("не ожидали ошибку на границе длины: %v", err)
	}
}

func TestDeleteCommentRules(t *testing.T) {
	comments := newStubCommentRepo()
	svc := newService(withTopic(1, 2), comments, newStubLikeRepo(), &stubQueue{})
	comment, err := svc.AddComment(context.Background(), 1, 5, "текст")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if err := svc.DeleteComment(context.Background(), 1, 99, 5); !errors.Is(err, domain.ErrCommentNotFound) {
		t.Fatalf("ожидали ErrCommentNotFound для несуществующего, получили %v", err)
	}
	// комментарий существует, но запрошен через чужую тему
	if err := svc.DeleteComment(context.Background(), 7, comment.ID, 5); !errors.Is(err, domain.ErrCommentNotFound) {
		t.Fatalf("ожидали ErrCommentNotFound при несовпадении темы, получили %v", err)
	}
	if err := svc.DeleteComment(context.Background(), 1, comment.ID, 2); !errors.Is(err, ErrNotCommentAuthor) {
		t.Fatalf("ожидали ErrNotCommentAuthor, получили %v", err)
	}
	if err := svc.DeleteComment(context.Background(), 1, comment.ID, 5); err != nil {
		t.Fatalf("автор должен удалять свой комментарий: %v", err)
	}
	if _, ok := comments.comments[comment.ID]; ok {
		t.Fatalf("комментарий не удалён")
	}
}

func TestLikeIsIdempotent(t *testing.T) {
	queue := &stubQueue{}
	svc := newService(withTopic(1, 2), newStubCommentRepo(), newStubLikeRepo(), queue)

	if err := svc.Like(context.Background(), 1, 5); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := svc.Like(context.Background(), 1, 5); err != nil {
		t.Fatalf("повторный лайк не должен падать: %v", err)
	}
	if len(queue.events) != 1 {
		t.Fatalf("повторный лайк не должен публиковать событие, получили %d", len(queue.events))
	}
	if queue.events[0].Event != domain.ActivityEventTopicLiked {
		t.Fatalf("неверное событие: %+v", queue.events[0])
	}
}

func TestLikeUnknownTopic(t *testing.T) {
	svc := newService(withTopic(1, 2), newStubCommentRepo(), newStubLikeRepo(), &stubQueue{})
	if err := svc.Like(context.Background(), 99, 5); !errors.Is(err, domain.ErrTopicNotFound) {
		t.Fatalf("ожидали ErrTopicNotFound, получили %v", err)
	}
}

func TestUnlikeRemovesLike(t *testing.T) {
	likes := newStubLikeRepo()
	queue := &stubQueue{}
	svc := newService(withTopic(1, 2), newStubCommentRepo(), likes, queue)

	if err := svc.Like(context.Background(), 1, 5); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := svc.Unlike(context.Background(), 1, 5); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if likes.likes[[2]int64{1, 5}] {
		t.Fatalf("лайк не снят")
	}
	if len(queue.events) != 2 || queue.events[1].Event != domain.ActivityEventTopicUnliked {
		t.Fatalf("ожидали событие снятия лайка: %+v", queue.events)
	}
}
