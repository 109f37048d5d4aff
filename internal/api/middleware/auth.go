package middleware

import (
	"context"
	"log/slog"
	"net/http"

	apierrors "github.com/paolo-abarca/holbertonschool-files-manager/internal/api/errors"
)

// TokenHeader — заголовок с токеном сессии.
const TokenHeader = "X-Token"

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyUserID — идентификатор пользователя активной сессии.
const ContextKeyUserID contextKey = "session_user_id"

// SessionResolver разрешает токен в идентификатор пользователя.
// Пустая строка без ошибки означает отсутствие активной сессии.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (string, error)
}

// SessionAuth — middleware аутентификации по токену сессии.
type SessionAuth struct {
	resolver SessionResolver
	logger   *slog.Logger
}

// NewSessionAuth создаёт middleware сессий.
func NewSessionAuth(resolver SessionResolver, logger *slog.Logger) *SessionAuth {
	return &SessionAuth{
		resolver: resolver,
		logger:   logger.With(slog.String("component", "session_auth")),
	}
}

// Require пропускает только запросы с активной сессией, иначе 401.
func (a *SessionAuth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.resolver.ResolveSession(r.Context(), r.Header.Get(TokenHeader))
		if err != nil {
			a.logger.Error("Ошибка разрешения сессии", slog.String("error", err.Error()))
			apierrors.Internal(w)
			return
		}
		if userID == "" {
			apierrors.Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// Optional добавляет пользователя в контекст, если сессия активна.
// Недоступное хранилище сессий понижает запрос до анонимного.
func (a *SessionAuth) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.resolver.ResolveSession(r.Context(), r.Header.Get(TokenHeader))
		if err != nil {
			a.logger.Warn("Сессия не разрешена, запрос обрабатывается анонимно",
				slog.String("error", err.Error()),
			)
			userID = ""
		}
		if userID != "" {
			r = r.WithContext(WithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

// WithUserID помещает идентификатор пользователя в контекст.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// UserIDFromContext извлекает идентификатор пользователя из контекста.
// Возвращает пустую строку для анонимного запроса.
func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(ContextKeyUserID).(string)
	return userID
}
