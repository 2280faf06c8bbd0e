package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"topic-tonic/internal/domain"
)

type stubUserRepo struct {
	users  map[string]domain.User
	nextID int64
}

func newStubUserRepo() *stubUserRepo { return &stubUserRepo{users: map[string]domain.User{}} }

func (s *stubUserRepo) CreateUser(_ context.Context, name, email string, passwordHash []byte) (domain.User, error) {
	if _, ok := s.users[email]; ok {
		return domain.User{}, domain.ErrEmailTaken
	}
	s.nextID++
	user := domain.User{ID: s.nextID, Name: name, Email: email, PasswordHash: passwordHash}
	s.users[email] = user
	return user, nil
}

func (s *stubUserRepo) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	if user, ok := s.users[email]; ok {
		return user, nil
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (s *stubUserRepo) GetUserByID(_ context.Context, id int64) (domain.User, error) {
	for _, user := range s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

type stubSessionStore struct {
	sessions map[string]int64
}

func newStubSessionStore() *stubSessionStore {
	return &stubSessionStore{sessions: map[string]int64{}}
}

func (s *stubSessionStore) SaveSession(_ context.Context, token string, userID int64, _ time.Duration) error {
	s.sessions[token] = userID
	return nil
}

func (s *stubSessionStore) ResolveSession(_ context.Context, token string) (int64, error) {
	if userID, ok := s.sessions[token]; ok {
		return userID, nil
	}
	return 0, domain.ErrSessionNotFound
}

func (s *stubSessionStore) DeleteSession(_ context.Context, token string) error {
	if _, ok := s.sessions[token]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(s.sessions, token)
	return nil
}

func newTestService() (*Service, *stubUserRepo, *stubSessionStore) {
	users := newStubUserRepo()
	sessions := newStubSessionStore()
	return NewService(users, sessions, nil, time.Hour), users, sessions
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.Register(context.Background(), "  ", "a@b.c", "password1"); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("ожидали ErrNameRequired, получили %v", err)
	}
	if _, err := svc.Register(context.Background(), "Имя", "not-an-email", "password1"); !errors.Is(err, ErrEmailInvalid) {
		t.Fatalf("ожидали ErrEmailInvalid, получили %v", err)
	}
	if _, err := svc.Register(context.Background(), "Имя", "a@b.c", "short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("ожидали ErrPasswordTooShort, получили %v", err)
	}
}

func TestRegisterNormalizesEmailAndHashesPassword(t *testing.T) {
	svc, users, _ := newTestService()

	user, err := svc.Register(context.Background(), "Имя", "  User@Example.COM ", "password1")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if user.Email != "user@example.com" {
		t.Fatalf("email должен приводиться к нижнему регистру: %q", user.Email)
	}
	stored := users.users[user.Email]
	if err := bcrypt.CompareHashAndPassword(stored.PasswordHash, []byte("password1")); err != nil {
		t.Fatalf("хэш пароля не совпадает: %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.Register(context.Background(), "Имя", "a@b.c", "password1"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := svc.Register(context.Background(), "Другой", "a@b.c", "password2"); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("ожидали ErrEmailTaken, получили %v", err)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.Register(context.Background(), "Имя", "a@b.c", "password1"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if _, _, err := svc.Login(context.Background(), "nobody@b.c", "password1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("неизвестный email: ожидали ErrInvalidCredentials, получили %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "a@b.c", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("неверный пароль: ожидали ErrInvalidCredentials, получили %v", err)
	}
}

func TestLoginLogoutRoundTrip(t *testing.T) {
	svc, _, sessions := newTestService()
	registered, err := svc.Register(context.Background(), "Имя", "a@b.c", "password1")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	token, user, err := svc.Login(context.Background(), " A@B.C ", "password1")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if token == "" || user.ID != registered.ID {
		t.Fatalf("неверный результат входа: token=%q user=%+v", token, user)
	}

	resolved, err := svc.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if resolved.ID != registered.ID {
		t.Fatalf("сессия указывает на другого пользователя: %+v", resolved)
	}

	if err := svc.Logout(context.Background(), token); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(sessions.sessions) != 0 {
		t.Fatalf("сессия не удалена")
	}
	if _, err := svc.Authenticate(context.Background(), token); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("после выхода ожидали ErrSessionNotFound, получили %v", err)
	}
}

func TestLogoutMissingSession(t *testing.T) {
	svc, _, _ := newTestService()
	if err := svc.Logout(context.Background(), "no-such-token"); err != nil {
		t.Fatalf("отсутствующая сессия не должна быть ошибкой: %v", err)
	}
}

func TestAuthenticateEmptyToken(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.Authenticate(context.Background(), ""); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("ожидали ErrSessionNotFound, получили %v", err)
	}
}
