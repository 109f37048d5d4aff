// Пакет server — HTTP-сервер Files Manager с graceful shutdown.
// Без TLS: TLS termination на ingress.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paolo-abarca/holbertonschool-files-manager/internal/api/handlers"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/api/middleware"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/api/openapi"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/config"
)

// Handlers — набор обработчиков, монтируемых в роутер.
type Handlers struct {
	Health *handlers.HealthHandler
	Auth   *handlers.AuthHandler
	Files  *handlers.FilesHandler
	// Sessions — проверка X-Token для защищённых маршрутов
	Sessions *middleware.SessionAuth
}

// Server — HTTP-сервер Files Manager.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, h Handlers) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(logger, h),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает chi-роутер со всеми маршрутами API.
func NewRouter(logger *slog.Logger, h Handlers) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Metrics)
	router.Use(chimw.Recoverer)

	// Служебные маршруты
	router.Get("/status", h.Health.GetStatus)
	router.Get("/stats", h.Health.GetStats)
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/openapi.yaml", openapi.Handler())

	// Сессии и регистрация
	router.Get("/connect", h.Auth.Connect)
	router.Get("/disconnect", h.Auth.Disconnect)
	router.Post("/users", h.Auth.CreateUser)

	// Содержимое доступно анонимно для публичных узлов
	router.With(h.Sessions.Optional).Get("/files/{id}/data", h.Files.Data)

	router.Group(func(r chi.Router) {
		r.Use(h.Sessions.Require)

		r.Get("/users/me", h.Auth.Me)
		r.Post("/files", h.Files.Create)
		r.Get("/files", h.Files.List)
		r.Get("/files/{id}", h.Files.Get)
		r.Put("/files/{id}/publish", h.Files.Publish)
		r.Put("/files/{id}/unpublish", h.Files.Unpublish)
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM)
// или отмены ctx. Затем выполняется graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("Контекст сервера отменён")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
