package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/paolo-abarca/holbertonschool-files-manager/internal/domain/model"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/jobs"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/repository"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/storage/session"
)

// AuthService — регистрация пользователей и сессии по токену.
type AuthService struct {
	users    repository.UserRepository
	sessions session.Store
	jobs     jobs.Dispatcher
	hasher   *PasswordHasher
	ttl      time.Duration
	validate *validator.Validate
	logger   *slog.Logger
	newToken func() string
}

// NewAuthService создаёт сервис аутентификации.
// ttl — время жизни сессии, jobs может быть nil.
func NewAuthService(
	users repository.UserRepository,
	sessions session.Store,
	dispatcher jobs.Dispatcher,
	hasher *PasswordHasher,
	ttl time.Duration,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		jobs:     dispatcher,
		hasher:   hasher,
		ttl:      ttl,
		validate: newValidator(),
		logger:   logger.With(slog.String("component", "auth")),
		newToken: uuid.NewString,
	}
}

// Authenticate проверяет заголовок "Basic base64(email:password)"
// и открывает новую сессию. Любая ошибка разбора или проверки — ErrUnauthorized.
func (s *AuthService) Authenticate(ctx context.Context, authorization string) (string, error) {
	email, password, ok := parseBasic(authorization)
	if !ok {
		sessionsTotal.WithLabelValues("denied").Inc()
		return "", ErrUnauthorized
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			sessionsTotal.WithLabelValues("denied").Inc()
			return "", ErrUnauthorized
		}
		sessionsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("ошибка поиска пользователя: %w", err)
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		sessionsTotal.WithLabelValues("denied").Inc()
		return "", ErrUnauthorized
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	token := s.newToken()
	if err := s.sessions.Set(ctx, session.Key(token), user.ID, s.ttl); err != nil {
		sessionsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("ошибка сохранения сессии: %w", err)
	}

	sessionsTotal.WithLabelValues("success").Inc()
	s.logger.Debug("Сессия открыта", slog.String("user_id", user.ID))
	return token, nil
}

// upgradeHash перезаписывает хэш пароля текущей схемой.
// Ошибка не мешает входу: хэш будет обновлён при следующем входе.
func (s *AuthService) upgradeHash(ctx context.Context, user *model.User, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		s.logger.Warn("Не удалось обновить хэш пароля",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Info("Хэш пароля обновлён", slog.String("user_id", user.ID))
}

// ResolveSession возвращает идентификатор пользователя сессии
// или пустую строку, если токен пуст, неизвестен или истёк.
// Время жизни сессии при этом не продлевается.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", nil
	}
	userID, ok, err := s.sessions.Get(ctx, session.Key(token))
	if err != nil {
		return "", fmt.Errorf("ошибка чтения сессии: %w", err)
	}
	if !ok {
		return "", nil
	}
	return userID, nil
}

// Revoke закрывает активную сессию. Неактивный токен — ErrUnauthorized.
func (s *AuthService) Revoke(ctx context.Context, token string) error {
	userID, err := s.ResolveSession(ctx, token)
	if err != nil {
		return err
	}
	if userID == "" {
		return ErrUnauthorized
	}
	if err := s.sessions.Delete(ctx, session.Key(token)); err != nil {
		return fmt.Errorf("ошибка удаления сессии: %w", err)
	}
	s.logger.Debug("Сессия закрыта", slog.String("user_id", userID))
	return nil
}

// RegisterParams — входные данные регистрации.
type RegisterParams struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterUser создаёт пользователя и ставит задачу в userQ.
func (s *AuthService) RegisterUser(ctx context.Context, p RegisterParams) (*model.User, error) {
	if err := s.validate.Struct(p); err != nil {
		return nil, firstMissing(err)
	}

	_, err := s.users.GetByEmail(ctx, p.Email)
	switch {
	case err == nil:
		return nil, ErrConflict
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("ошибка проверки email: %w", err)
	}

	hash, err := s.hasher.Hash(p.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{Email: p.Email, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	s.logger.Info("Пользователь зарегистрирован", slog.String("user_id", user.ID))
	enqueue(ctx, s.jobs, jobs.QueueUser, jobs.UserJob{UserID: user.ID}, s.logger)
	return user, nil
}

// GetUser возвращает пользователя сессии. Удалённый пользователь — ErrUnauthorized.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return user, nil
}

// parseBasic разбирает заголовок Basic-аутентификации.
// Схема сравнивается без учёта регистра, пароль может содержать ':'.
func parseBasic(header string) (email, password string, ok bool) {
	scheme, encoded, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Basic") {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", "", false
	}
	email, password, found = strings.Cut(string(raw), ":")
	if !found {
		return "", "", false
	}
	return email, password, true
}
