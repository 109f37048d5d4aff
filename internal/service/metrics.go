package service

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/paolo-abarca/holbertonschool-files-manager/internal/jobs"
)

// Prometheus метрики сервисного слоя
var (
	filesCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fm_files_created_total",
		Help: "Количество созданных узлов по типу",
	}, []string{"type"})

	contentBytesWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_content_bytes_written_total",
		Help: "Объём записанного содержимого файлов в байтах",
	})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fm_sessions_total",
		Help: "Попытки входа по результату (success, denied, error)",
	}, []string{"result"})

	jobsEnqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fm_jobs_enqueued_total",
		Help: "Постановка задач в очередь по результату",
	}, []string{"queue", "result"})

	reconcileOrphansRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_reconcile_orphans_removed_total",
		Help: "Количество удалённых файлов-сирот",
	})
)

// enqueue публикует задачу без влияния на результат запроса:
// метаданные к этому моменту уже сохранены.
func enqueue(ctx context.Context, d jobs.Dispatcher, queue string, payload any, logger *slog.Logger) {
	if d == nil {
		return
	}
	if err := d.Enqueue(ctx, queue, payload); err != nil {
		jobsEnqueuedTotal.WithLabelValues(queue, "error").Inc()
		logger.Warn("Не удалось поставить задачу в очередь",
			slog.String("queue", queue),
			slog.String("error", err.Error()),
		)
		return
	}
	jobsEnqueuedTotal.WithLabelValues(queue, "ok").Inc()
}

// newValidator создаёт валидатор, именующий поля по JSON-тегам.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// firstMissing превращает первую ошибку валидатора в ValidationError.
// Порядок ошибок совпадает с порядком полей структуры.
func firstMissing(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return missing(verrs[0].Field())
	}
	return err
}
