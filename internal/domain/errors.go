package domain

import "errors"

// ErrUserNotFound возвращается, если пользователь не существует.
var ErrUserNotFound = errors.New("пользователь не найден")

// ErrTopicNotFound возвращается, если тема не существует.
var ErrTopicNotFound = errors.New("тема не найдена")

// ErrCommentNotFound возвращается, если комментарий не существует или не принадлежит теме.
var ErrCommentNotFound = errors.New("комментарий не найден")

// ErrEmailTaken возвращается при попытке регистрации с занятым email.
var ErrEmailTaken = errors.New("email уже занят")

// ErrSessionNotFound возвращается, если сессия не существует или истекла.
var ErrSessionNotFound = errors.New("сессия не найдена")
