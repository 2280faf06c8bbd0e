package domain

import "time"

// User описывает зарегистрированного пользователя форума.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Topic представляет тему обсуждения. Владелец темы не меняется после создания.
type Topic struct {
	ID        int64
	UserID    int64
	Title     string
	Body      string
	CreatedAt time.Time
}

// TopicWithStats дополняет тему счётчиками вовлечённости и именем автора.
type TopicWithStats struct {
	Topic
	AuthorName   string
	CommentCount int
	LikeCount    int
}

// Comment представляет комментарий к теме.
type Comment struct {
	ID        int64
	TopicID   int64
	UserID    int64
	Body      string
	CreatedAt time.Time
}

// CommentWithAuthor дополняет комментарий именем автора для отображения.
type CommentWithAuthor struct {
	Comment
	AuthorName string
}

// Like фиксирует лайк темы. На пару (тема, пользователь) существует не более одного лайка.
type Like struct {
	ID        int64
	TopicID   int64
	UserID    int64
	CreatedAt time.Time
}
