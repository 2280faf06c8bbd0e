package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"topic-tonic/internal/domain"
	"topic-tonic/internal/infra/metrics"
)

type contextKey string

const userContextKey contextKey = "current_user"

// SessionCookieName — имя cookie с токеном сессии.
const SessionCookieName = "session_token"

// UserResolver резолвит пользователя по токену сессии.
type UserResolver interface {
	Authenticate(ctx context.Context, token string) (domain.User, error)
}

// SessionAuthMiddleware проверяет токен сессии и кладёт пользователя в контекст.
// Токен берётся из заголовка Authorization (Bearer) или из cookie.
func SessionAuthMiddleware(resolver UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				metrics.IncAuthFailure()
				WriteError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			user, err := resolver.Authenticate(r.Context(), token)
			if err != nil {
				metrics.IncAuthFailure()
				WriteError(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}
			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromRequest извлекает токен сессии из запроса.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if strings.HasPrefix(header, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// UserFromContext возвращает аутентифицированного пользователя запроса.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userContextKey).(domain.User)
	return user, ok
}

// RequestID возвращает request ID из контекста chi.
func RequestID(r *http.Request) string {
	return chimw.GetReqID(r.Context())
}

// ErrorResponse описывает ошибку.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteError отправляет JSON с ошибкой.
func WriteError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}

// WriteJSON отправляет JSON-ответ.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
