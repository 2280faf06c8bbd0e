package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"topic-tonic/internal/domain"
	"topic-tonic/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
	tz   string
}

var (
	_ domain.UserRepo          = (*Postgres)(nil)
	_ domain.TopicRepo         = (*Postgres)(nil)
	_ domain.CommentRepo       = (*Postgres)(nil)
	_ domain.LikeRepo          = (*Postgres)(nil)
	_ domain.InsightsRepo      = (*Postgres)(nil)
	_ domain.ActivityAuditRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД. tz — IANA-зона, в которой считаются
// границы календарных дней для агрегатов.
func NewPostgres(pool *pgxpool.Pool, tz string) *Postgres {
	if tz == "" {
		tz = "UTC"
	}
	return &Postgres{pool: pool, tz: tz}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// CreateUser сохраняет пользователя. Занятый email даёт domain.ErrEmailTaken.
func (p *Postgres) CreateUser(ctx context.Context, name, email string, passwordHash []byte) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var user domain.User
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO users (name, email, password_hash)
VALUES ($1, $2, $3)
RETURNING id, name, email, password_hash, created_at, updated_at
`, name, email, passwordHash).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "users_insert", "users", start, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, err
	}
	return user, nil
}

// GetUserByEmail возвращает пользователя по email.
func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var user domain.User
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, name, email, password_hash, created_at, updated_at
FROM users WHERE email=$1
`, email).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "users_get_by_email", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, err
}

// GetUserByID возвращает пользователя по ID.
func (p *Postgres) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var user domain.User
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, name, email, password_hash, created_at, updated_at
FROM users WHERE id=$1
`, id).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "users_get_by_id", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, err
}

// CreateTopic сохраняет тему.
func (p *Postgres) CreateTopic(ctx context.Context, userID int64, title, body string) (domain.Topic, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	topic := domain.Topic{UserID: userID, Title: title, Body: body}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO topics (user_id, title, body)
VALUES ($1, $2, $3)
RETURNING id, created_at
`, userID, title, body).Scan(&topic.ID, &topic.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "topics_insert", "topics", start, err)
	if err != nil {
		return domain.Topic{}, err
	}
	return topic, nil
}

const topicStatsSelect = `
SELECT t.id, t.user_id, t.title, t.body, t.created_at, u.name,
       (SELECT COUNT(*) FROM comments c WHERE c.topic_id = t.id) AS comment_count,
       (SELECT COUNT(*) FROM likes l WHERE l.topic_id = t.id) AS like_count
FROM topics t
JOIN users u ON u.id = t.user_id
`

func scanTopicStats(rows pgx.Rows) ([]domain.TopicWithStats, error) {
	defer rows.Close()
	var topics []domain.TopicWithStats
	for rows.Next() {
		var t domain.TopicWithStats
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Body, &t.CreatedAt, &t.AuthorName, &t.CommentCount, &t.LikeCount); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// GetTopic возвращает тему со счётчиками и именем автора.
func (p *Postgres) GetTopic(ctx context.Context, id int64) (domain.TopicWithStats, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var t domain.TopicWithStats
	start := time.Now()
	err := p.pool.QueryRow(ctx, topicStatsSelect+`WHERE t.id=$1`, id).
		Scan(&t.ID, &t.UserID, &t.Title, &t.Body, &t.CreatedAt, &t.AuthorName, &t.CommentCount, &t.LikeCount)
	metrics.ObserveNetworkRequest("postgres", "topics_get", "topics", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TopicWithStats{}, domain.ErrTopicNotFound
	}
	return t, err
}

// ListAllTopics возвращает все темы форума, новые первыми.
func (p *Postgres) ListAllTopics(ctx context.Context) ([]domain.TopicWithStats, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, topicStatsSelect+`ORDER BY t.created_at DESC, t.id DESC`)
	metrics.ObserveNetworkRequest("postgres", "topics_list_all", "topics", start, err)
	if err != nil {
		return nil, err
	}
	return scanTopicStats(rows)
}

// ListUserTopics возвращает страницу тем пользователя, новые первыми.
func (p *Postgres) ListUserTopics(ctx context.Context, userID int64, limit, offset int) ([]domain.TopicWithStats, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, topicStatsSelect+`
WHERE t.user_id=$1
ORDER BY t.created_at DESC, t.id DESC
LIMIT $2 OFFSET $3
`, userID, limit, offset)
	metrics.ObserveNetworkRequest("postgres", "topics_list_user", "topics", start, err)
	if err != nil {
		return nil, err
	}
	return scanTopicStats(rows)
}

// CountUserTopics считает темы пользователя.
func (p *Postgres) CountUserTopics(ctx context.Context, userID int64) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM topics WHERE user_id=$1`, userID).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "topics_count_user", "topics", start, err)
	return count, err
}

// CreateComment сохраняет комментарий.
func (p *Postgres) CreateComment(ctx context.Context, topicID, userID int64, body string) (domain.Comment, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	comment := domain.Comment{TopicID: topicID, UserID: userID, Body: body}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO comments (topic_id, user_id, body)
VALUES ($1, $2, $3)
RETURNING id, created_at
`, topicID, userID, body).Scan(&comment.ID, &comment.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "comments_insert", "comments", start, err)
	if err != nil {
		return domain.Comment{}, err
	}
	return comment, nil
}

// GetComment возвращает комментарий по ID.
func (p *Postgres) GetComment(ctx context.Context, id int64) (domain.Comment, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var comment domain.Comment
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, topic_id, user_id, body, created_at
FROM comments WHERE id=$1
`, id).Scan(&comment.ID, &comment.TopicID, &comment.UserID, &comment.Body, &comment.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "comments_get", "comments", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Comment{}, domain.ErrCommentNotFound
	}
	return comment, err
}

// DeleteComment удаляет комментарий.
func (p *Postgres) DeleteComment(ctx context.Context, id int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM comments WHERE id=$1`, id)
	metrics.ObserveNetworkRequest("postgres", "comments_delete", "comments", start, err)
	return err
}

// ListTopicComments возвращает комментарии темы от старых к новым.
func (p *Postgres) ListTopicComments(ctx context.Context, topicID int64) ([]domain.CommentWithAuthor, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT c.id, c.topic_id, c.user_id, c.body, c.created_at, u.name
FROM comments c JOIN users u ON u.id = c.user_id
WHERE c.topic_id=$1
ORDER BY c.created_at ASC, c.id ASC
`, topicID)
	metrics.ObserveNetworkRequest("postgres", "comments_list_topic", "comments", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var comments []domain.CommentWithAuthor
	for rows.Next() {
		var c domain.CommentWithAuthor
		if err := rows.Scan(&c.ID, &c.TopicID, &c.UserID, &c.Body, &c.CreatedAt, &c.AuthorName); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// EnsureLike ставит лайк, если его ещё нет. Возвращает true при вставке.
func (p *Postgres) EnsureLike(ctx context.Context, topicID, userID int64) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
INSERT INTO likes (topic_id, user_id)
VALUES ($1, $2)
ON CONFLICT (topic_id, user_id) DO NOTHING
`, topicID, userID)
	metrics.ObserveNetworkRequest("postgres", "likes_ensure", "likes", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteLike снимает лайк.
func (p *Postgres) DeleteLike(ctx context.Context, topicID, userID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM likes WHERE topic_id=$1 AND user_id=$2`, topicID, userID)
	metrics.ObserveNetworkRequest("postgres", "likes_delete", "likes", start, err)
	return err
}

// HasLiked проверяет наличие лайка.
func (p *Postgres) HasLiked(ctx context.Context, topicID, userID int64) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var liked bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM likes WHERE topic_id=$1 AND user_id=$2)
`, topicID, userID).Scan(&liked)
	metrics.ObserveNetworkRequest("postgres", "likes_exists", "likes", start, err)
	return liked, err
}

// ListOwnedTopicStats возвращает темы владельца со счётчиками в порядке создания.
func (p *Postgres) ListOwnedTopicStats(ctx context.Context, ownerID int64) ([]domain.TopicWithStats, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, topicStatsSelect+`
WHERE t.user_id=$1
ORDER BY t.id ASC
`, ownerID)
	metrics.ObserveNetworkRequest("postgres", "topics_list_owned_stats", "topics", start, err)
	if err != nil {
		return nil, err
	}
	return scanTopicStats(rows)
}

// CountScopedComments считает комментарии к темам владельца. since — включающая
// нижняя граница по created_at, nil означает всю историю.
func (p *Postgres) CountScopedComments(ctx context.Context, ownerID int64, since *time.Time) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		count int
		err   error
	)
	start := time.Now()
	if since == nil {
		err = p.pool.QueryRow(ctx, `
SELECT COUNT(*)
FROM comments c JOIN topics t ON t.id = c.topic_id
WHERE t.user_id=$1
`, ownerID).Scan(&count)
	} else {
		err = p.pool.QueryRow(ctx, `
SELECT COUNT(*)
FROM comments c JOIN topics t ON t.id = c.topic_id
WHERE t.user_id=$1 AND c.created_at >= $2
`, ownerID, *since).Scan(&count)
	}
	metrics.ObserveNetworkRequest("postgres", "comments_count_scoped", "comments", start, err)
	return count, err
}

// CountScopedLikes считает лайки тем владельца с той же семантикой since.
func (p *Postgres) CountScopedLikes(ctx context.Context, ownerID int64, since *time.Time) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		count int
		err   error
	)
	start := time.Now()
	if since == nil {
		err = p.pool.QueryRow(ctx, `
SELECT COUNT(*)
FROM likes l JOIN topics t ON t.id = l.topic_id
WHERE t.user_id=$1
`, ownerID).Scan(&count)
	} else {
		err = p.pool.QueryRow(ctx, `
SELECT COUNT(*)
FROM likes l JOIN topics t ON t.id = l.topic_id
WHERE t.user_id=$1 AND l.created_at >= $2
`, ownerID, *since).Scan(&count)
	}
	metrics.ObserveNetworkRequest("postgres", "likes_count_scoped", "likes", start, err)
	return count, err
}

// CountOwnedTopicsByDay возвращает разреженное отображение день -> число тем.
// День считается в зоне p.tz, ключ — YYYY-MM-DD.
func (p *Postgres) CountOwnedTopicsByDay(ctx context.Context, ownerID int64, since time.Time) (map[string]int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT to_char(created_at AT TIME ZONE $3, 'YYYY-MM-DD') AS day, COUNT(*)
FROM topics
WHERE user_id=$1 AND created_at >= $2
GROUP BY day
`, ownerID, since, p.tz)
	metrics.ObserveNetworkRequest("postgres", "topics_count_by_day", "topics", start, err)
	if err != nil {
		return nil, err
	}
	return scanDayCounts(rows)
}

// CountScopedLikesByDay возвращает разреженное отображение день -> число лайков
// тем владельца.
func (p *Postgres) CountScopedLikesByDay(ctx context.Context, ownerID int64, since time.Time) (map[string]int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT to_char(l.created_at AT TIME ZONE $3, 'YYYY-MM-DD') AS day, COUNT(*)
FROM likes l JOIN topics t ON t.id = l.topic_id
WHERE t.user_id=$1 AND l.created_at >= $2
GROUP BY day
`, ownerID, since, p.tz)
	metrics.ObserveNetworkRequest("postgres", "likes_count_by_day", "likes", start, err)
	if err != nil {
		return nil, err
	}
	return scanDayCounts(rows)
}

func scanDayCounts(rows pgx.Rows) (map[string]int, error) {
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var (
			day   string
			count int
		)
		if err := rows.Scan(&day, &count); err != nil {
			return nil, err
		}
		counts[day] = count
	}
	return counts, rows.Err()
}

// RecordActivity сохраняет событие активности. Повторная доставка того же
// события не создаёт дубликата.
func (p *Postgres) RecordActivity(ctx context.Context, event domain.ActivityEvent) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	var topicID sql.NullInt64
	if event.TopicID != 0 {
		topicID = sql.NullInt64{Int64: event.TopicID, Valid: true}
	}
	var commentID sql.NullInt64
	if event.CommentID != 0 {
		commentID = sql.NullInt64{Int64: event.CommentID, Valid: true}
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO activity_log (event_id, event, user_id, topic_id, comment_id, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (event_id) DO NOTHING
`, event.ID, event.Event, event.UserID, topicID, commentID, event.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "activity_log_insert", "activity_log", start, err)
	return err
}
