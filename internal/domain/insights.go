package domain

// EngagementTotals содержит итоговые счётчики и средние по темам пользователя.
type EngagementTotals struct {
	TotalTopics         int     `json:"total_topics"`
	TotalComments       int     `json:"total_comments"`
	TotalLikes          int     `json:"total_likes"`
	AvgCommentsPerTopic float64 `json:"avg_comments_per_topic"`
	AvgLikesPerTopic    float64 `json:"avg_likes_per_topic"`
}

// ActivityItem — одна строка сводки «коротко о главном».
type ActivityItem struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// TopicSummary — сводка по одной теме пользователя.
type TopicSummary struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	CommentCount    int    `json:"comment_count"`
	LikeCount       int    `json:"like_count"`
	CreatedAgeLabel string `json:"created_age_label"`
}

// DailyBucket — агрегаты за один календарный день окна активности.
// Date всегда в формате YYYY-MM-DD без компоненты времени.
type DailyBucket struct {
	Date       string `json:"date"`
	TopicCount int    `json:"topic_count"`
	LikeCount  int    `json:"like_count"`
}

// InsightsSnapshot — полный результат аналитики вовлечённости для одного запроса.
// Снимок строится заново на каждый запрос, не кэшируется и после создания не меняется.
type InsightsSnapshot struct {
	Totals   EngagementTotals `json:"totals"`
	Activity []ActivityItem   `json:"activity"`
	Topics   []TopicSummary   `json:"topics"`
	Daily    []DailyBucket    `json:"daily"`
}
