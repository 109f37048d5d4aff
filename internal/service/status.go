package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/paolo-abarca/holbertonschool-files-manager/internal/repository"
)

// pingTimeout — ограничение на проверку одного хранилища.
const pingTimeout = 3 * time.Second

// Pinger — хранилище с проверкой доступности.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusReport — доступность хранилищ для GET /status.
type StatusReport struct {
	Redis bool `json:"redis"`
	DB    bool `json:"db"`
}

// StatsReport — счётчики для GET /stats.
type StatsReport struct {
	Users int64 `json:"users"`
	Files int64 `json:"files"`
}

// StatusService — состояние хранилищ и агрегированная статистика.
type StatusService struct {
	sessions Pinger
	db       Pinger
	users    repository.UserRepository
	files    repository.FileRepository
	logger   *slog.Logger
}

// NewStatusService создаёт сервис статуса.
// sessions — хранилище сессий (Redis или in-process), db — хранилище метаданных.
func NewStatusService(
	sessions, db Pinger,
	users repository.UserRepository,
	files repository.FileRepository,
	logger *slog.Logger,
) *StatusService {
	return &StatusService{
		sessions: sessions,
		db:       db,
		users:    users,
		files:    files,
		logger:   logger.With(slog.String("component", "status")),
	}
}

// Status проверяет оба хранилища. Ошибки не возвращаются, а отражаются флагами.
func (s *StatusService) Status(ctx context.Context) StatusReport {
	return StatusReport{
		Redis: s.alive(ctx, "sessions", s.sessions),
		DB:    s.alive(ctx, "metadata", s.db),
	}
}

func (s *StatusService) alive(ctx context.Context, name string, p Pinger) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		s.logger.Warn("Хранилище недоступно",
			slog.String("store", name),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// Stats возвращает количество пользователей и узлов.
func (s *StatusService) Stats(ctx context.Context) (*StatsReport, error) {
	users, err := s.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта пользователей: %w", err)
	}
	files, err := s.files.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}
	return &StatsReport{Users: users, Files: files}, nil
}
