package insights

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"topic-tonic/internal/domain"
	"topic-tonic/internal/infra/metrics"
)

// windowDays — длина окна ежедневной активности в календарных днях.
const windowDays = 14

const dateLayout = "2006-01-02"

// Service строит снимок аналитики вовлечённости по темам пользователя.
type Service struct {
	repo  domain.InsightsRepo
	clock domain.Clock
}

// NewService создаёт сервис аналитики.
func NewService(repo domain.InsightsRepo, clock domain.Clock) *Service {
	return &Service{repo: repo, clock: clock}
}

// GetSnapshot собирает полный снимок: итоги, средние, сводки по темам и
// плотный ряд из windowDays дней. Любая ошибка чтения данных прерывает весь
// запрос, частичные снимки не возвращаются.
func (s *Service) GetSnapshot(ctx context.Context, userID int64) (domain.InsightsSnapshot, error) {
	started := time.Now()
	defer metrics.ObserveInsightsBuild(started)

	topics, err := s.repo.ListOwnedTopicStats(ctx, userID)
	if err != nil {
		return domain.InsightsSnapshot{}, fmt.Errorf("темы пользователя: %w", err)
	}
	totalComments, err := s.repo.CountScopedComments(ctx, userID, nil)
	if err != nil {
		return domain.InsightsSnapshot{}, fmt.Errorf("подсчёт комментариев: %w", err)
	}
	totalLikes, err := s.repo.CountScopedLikes(ctx, userID, nil)
	if err != nil {
		return domain.InsightsSnapshot{}, fmt.Errorf("подсчёт лайков: %w", err)
	}

	now := s.clock.Now()
	windowStart := startOfDay(now.AddDate(0, 0, -(windowDays - 1)))

	topicsByDay, err := s.repo.CountOwnedTopicsByDay(ctx, userID, windowStart)
	if err != nil {
		return domain.InsightsSnapshot{}, fmt.Errorf("темы по дням: %w", err)
	}
	likesByDay, err := s.repo.CountScopedLikesByDay(ctx, userID, windowStart)
	if err != nil {
		return domain.InsightsSnapshot{}, fmt.Errorf("лайки по дням: %w", err)
	}

	// Равные created_at сохраняют исходный порядок вставки.
	sort.SliceStable(topics, func(i, j int) bool {
		return topics[i].CreatedAt.After(topics[j].CreatedAt)
	})

	summaries := make([]domain.TopicSummary, 0, len(topics))
	for _, topic := range topics {
		summaries = append(summaries, domain.TopicSummary{
			ID:              topic.ID,
			Title:           topic.Title,
			CommentCount:    topic.CommentCount,
			LikeCount:       topic.LikeCount,
			CreatedAgeLabel: domain.HumanAge(topic.CreatedAt, now),
		})
	}

	totals := domain.EngagementTotals{
		TotalTopics:         len(topics),
		TotalComments:       totalComments,
		TotalLikes:          totalLikes,
		AvgCommentsPerTopic: roundAverage(totalComments, len(topics)),
		AvgLikesPerTopic:    roundAverage(totalLikes, len(topics)),
	}

	return domain.InsightsSnapshot{
		Totals:   totals,
		Activity: buildActivityItems(totals),
		Topics:   summaries,
		Daily:    buildDailySeries(now, topicsByDay, likesByDay),
	}, nil
}

// roundAverage делит total на topics и округляет до одного знака.
// Половинные значения округляются от нуля: 2.25 -> 2.3.
// Ноль тем даёт ровно 0.0 — это валидное состояние, не ошибка.
func roundAverage(total, topics int) float64 {
	if topics == 0 {
		return 0.0
	}
	return math.Round(float64(total)/float64(topics)*10) / 10
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// buildDailySeries разворачивает разреженные отображения день -> счётчик в
// плотный ряд ровно из windowDays записей по возрастанию даты. День,
// отсутствующий в отображении, даёт нулевой счётчик, а не пропуск.
func buildDailySeries(now time.Time, topicsByDay, likesByDay map[string]int) []domain.DailyBucket {
	buckets := make([]domain.DailyBucket, 0, windowDays)
	day := startOfDay(now.AddDate(0, 0, -(windowDays - 1)))
	for i := 0; i < windowDays; i++ {
		key := day.Format(dateLayout)
		buckets = append(buckets, domain.DailyBucket{
			Date:       key,
			TopicCount: topicsByDay[key],
			LikeCount:  likesByDay[key],
		})
		day = day.AddDate(0, 0, 1)
	}
	return buckets
}

func buildActivityItems(totals domain.EngagementTotals) []domain.ActivityItem {
	return []domain.ActivityItem{
		{Label: "Total topics", Value: strconv.Itoa(totals.TotalTopics)},
		{Label: "Total comments", Value: strconv.Itoa(totals.TotalComments)},
		{Label: "Total likes", Value: strconv.Itoa(totals.TotalLikes)},
		{Label: "Avg. engagement / topic", Value: fmt.Sprintf("%s comments • %s likes",
			formatAverage(totals.AvgCommentsPerTopic), formatAverage(totals.AvgLikesPerTopic))},
	}
}

func formatAverage(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
