package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"topic-tonic/internal/domain"
)

var (
	ErrNameRequired     = errors.New("имя обязательно")
	ErrEmailInvalid     = errors.New("некорректный email")
	ErrPasswordTooShort = errors.New("пароль короче 8 символов")
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	// Для несуществующего пользователя и неверного пароля ответ одинаковый.
	ErrInvalidCredentials = errors.New("неверный email или пароль")
)

const minPasswordLength = 8

// Service отвечает за регистрацию, вход и сессии.
type Service struct {
	users      domain.UserRepo
	sessions   domain.SessionStore
	queue      domain.ActivityQueue
	sessionTTL time.Duration
}

// NewService создаёт сервис аутентификации. queue может быть nil.
func NewService(users domain.UserRepo, sessions domain.SessionStore, queue domain.ActivityQueue, sessionTTL time.Duration) *Service {
	return &Service{users: users, sessions: sessions, queue: queue, sessionTTL: sessionTTL}
}

// Register заводит пользователя с bcrypt-хэшем пароля.
func (s *Service) Register(ctx context.Context, name, email, password string) (domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return domain.User{}, ErrNameRequired
	}
	if !strings.Contains(email, "@") {
		return domain.User{}, ErrEmailInvalid
	}
	if len(password) < minPasswordLength {
		return domain.User{}, ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("хэширование пароля: %w", err)
	}
	user, err := s.users.CreateUser(ctx, name, email, hash)
	if err != nil {
		return domain.User{}, err
	}
	if s.queue != nil {
		_ = s.queue.Publish(ctx, domain.ActivityEvent{
			ID:         uuid.NewString(),
			Event:      domain.ActivityEventUserRegistered,
			UserID:     user.ID,
			OccurredAt: time.Now().UTC(),
		})
	}
	return user, nil
}

// Login проверяет пароль и выдаёт непрозрачный токен сессии.
func (s *Service) Login(ctx context.Context, email, password string) (string, domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", domain.User{}, ErrInvalidCredentials
		}
		return "", domain.User{}, fmt.Errorf("получение пользователя: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return "", domain.User{}, ErrInvalidCredentials
	}
	token := uuid.NewString()
	if err := s.sessions.SaveSession(ctx, token, user.ID, s.sessionTTL); err != nil {
		return "", domain.User{}, fmt.Errorf("сохранение сессии: %w", err)
	}
	return token, user, nil
}

// Logout удаляет сессию. Отсутствующая сессия ошибкой не считается.
func (s *Service) Logout(ctx context.Context, token string) error {
	err := s.sessions.DeleteSession(ctx, token)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	return err
}

// Authenticate резолвит пользователя по токену сессии.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, domain.ErrSessionNotFound
	}
	userID, err := s.sessions.ResolveSession(ctx, token)
	if err != nil {
		return domain.User{}, err
	}
	return s.users.GetUserByID(ctx, userID)
}
