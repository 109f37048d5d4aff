// health.go — статус хранилищ, статистика и probes.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/paolo-abarca/holbertonschool-files-manager/internal/config"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/service"
)

// statusFail — статус непрошедшей проверки.
const statusFail = "fail"

// readyTimeout — ограничение на одну проверку готовности.
const readyTimeout = 3 * time.Second

// ReadinessChecker — зависимость, проверяемая в /health/ready.
type ReadinessChecker interface {
	Name() string
	Ping(ctx context.Context) error
}

// namedChecker — адаптер Pinger с именем.
type namedChecker struct {
	name string
	p    service.Pinger
}

func (c namedChecker) Name() string                   { return c.name }
func (c namedChecker) Ping(ctx context.Context) error { return c.p.Ping(ctx) }

// Named превращает Pinger в ReadinessChecker с именем name.
func Named(name string, p service.Pinger) ReadinessChecker {
	return namedChecker{name: name, p: p}
}

// HealthHandler — /status, /stats, /health/live, /health/ready.
type HealthHandler struct {
	status  *service.StatusService
	checks  []ReadinessChecker
	version string
	logger  *slog.Logger
}

// NewHealthHandler создаёт обработчик статуса и probes.
func NewHealthHandler(status *service.StatusService, logger *slog.Logger, checks ...ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		status:  status,
		checks:  checks,
		version: config.Version,
		logger:  logger,
	}
}

// GetStatus обрабатывает GET /status: {"redis": bool, "db": bool}, всегда 200.
func (h *HealthHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status.Status(r.Context()))
}

// GetStats обрабатывает GET /stats: {"users": n, "files": n}.
func (h *HealthHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.status.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HealthLive обрабатывает GET /health/live. Зависимости не проверяются.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "files-manager",
	})
}

// HealthReady обрабатывает GET /health/ready: 503, если недоступна
// хотя бы одна зависимость.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	overall := "ok"
	httpStatus := http.StatusOK
	checks := make(map[string]any, len(h.checks))

	for _, c := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		err := c.Ping(ctx)
		cancel()

		if err != nil {
			overall = statusFail
			httpStatus = http.StatusServiceUnavailable
			checks[c.Name()] = map[string]any{"status": statusFail, "message": err.Error()}
			continue
		}
		checks[c.Name()] = map[string]any{"status": "ok"}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    overall,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "files-manager",
		"checks":    checks,
	})
}
