// reconcile.go — сверка незавершённых загрузок.
//
// Загрузка пишет содержимое на диск до вставки метаданных. Если процесс
// упал между этими шагами, в журнале остаётся pending-запись, а на диске
// файл, на который не ссылается ни один узел. Сверка для каждой такой
// записи спрашивает хранилище метаданных:
//   - ссылка есть — загрузка завершилась, запись коммитится;
//   - ссылки нет — файл-сирота удаляется, запись откатывается.
//
// Выполняется при старте (все pending-записи) и периодически с тикером
// FM_RECONCILE_INTERVAL для записей старше FM_RECONCILE_GRACE.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/paolo-abarca/holbertonschool-files-manager/internal/repository"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/storage/filestore"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/storage/wal"
)

// ReconcileSummary — итог одного прохода сверки.
type ReconcileSummary struct {
	Checked        int `json:"checked"`
	OrphansRemoved int `json:"orphansRemoved"`
	Committed      int `json:"committed"`
	Failed         int `json:"failed"`
}

// ReconcileService — фоновая сверка журнала загрузок с метаданными.
type ReconcileService struct {
	wal      *wal.WAL
	store    *filestore.FileStore
	files    repository.FileRepository
	interval time.Duration
	grace    time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	inProcess bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewReconcileService создаёт сервис сверки.
func NewReconcileService(
	w *wal.WAL,
	store *filestore.FileStore,
	files repository.FileRepository,
	interval, grace time.Duration,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		wal:      w,
		store:    store,
		files:    files,
		interval: interval,
		grace:    grace,
		logger:   logger.With(slog.String("component", "reconcile")),
	}
}

// Recover обрабатывает все pending-записи. Вызывается при старте,
// когда незавершённых загрузок текущего процесса ещё нет.
func (rs *ReconcileService) Recover(ctx context.Context) (*ReconcileSummary, error) {
	return rs.RunOnce(ctx, 0)
}

// Start запускает периодическую сверку. interval == 0 отключает её.
func (rs *ReconcileService) Start(ctx context.Context) {
	if rs.interval <= 0 {
		rs.logger.Info("Периодическая сверка отключена")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	rs.cancel = cancel
	rs.done = make(chan struct{})
	go rs.run(runCtx)

	rs.logger.Info("Периодическая сверка запущена",
		slog.String("interval", rs.interval.String()),
		slog.String("grace", rs.grace.String()),
	)
}

// Stop останавливает периодическую сверку и дожидается выхода горутины.
func (rs *ReconcileService) Stop() {
	if rs.cancel == nil {
		return
	}
	rs.cancel()
	<-rs.done
	rs.logger.Info("Периодическая сверка остановлена")
}

func (rs *ReconcileService) run(ctx context.Context) {
	defer close(rs.done)

	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := rs.RunOnce(ctx, rs.grace); err != nil && err != ErrReconcileInProgress {
				rs.logger.Error("Ошибка сверки", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce выполняет один проход по pending-записям старше minAge
// и очищает завершённые записи журнала.
// Параллельный вызов возвращает ErrReconcileInProgress.
func (rs *ReconcileService) RunOnce(ctx context.Context, minAge time.Duration) (*ReconcileSummary, error) {
	rs.mu.Lock()
	if rs.inProcess {
		rs.mu.Unlock()
		return nil, ErrReconcileInProgress
	}
	rs.inProcess = true
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		rs.inProcess = false
		rs.mu.Unlock()
	}()

	startedAt := time.Now()
	pending, err := rs.wal.Pending(minAge)
	if err != nil {
		return nil, err
	}

	summary := &ReconcileSummary{}
	for _, e := range pending {
		if ctx.Err() != nil {
			break
		}
		summary.Checked++
		rs.resolve(ctx, e, summary)
	}

	if _, err := rs.wal.CleanCompleted(); err != nil {
		rs.logger.Warn("Ошибка очистки журнала", slog.String("error", err.Error()))
	}

	if summary.Checked > 0 {
		rs.logger.Info("Сверка завершена",
			slog.Int("checked", summary.Checked),
			slog.Int("orphans_removed", summary.OrphansRemoved),
			slog.Int("committed", summary.Committed),
			slog.Int("failed", summary.Failed),
			slog.Duration("duration", time.Since(startedAt)),
		)
	}
	return summary, nil
}

// resolve закрывает одну pending-запись по состоянию метаданных.
func (rs *ReconcileService) resolve(ctx context.Context, e *wal.Entry, summary *ReconcileSummary) {
	log := rs.logger.With(
		slog.String("tx_id", e.ID),
		slog.String("local_path", e.LocalPath),
	)

	referenced, err := rs.files.ExistsByLocalPath(ctx, e.LocalPath)
	if err != nil {
		summary.Failed++
		log.Warn("Не удалось проверить ссылку на содержимое", slog.String("error", err.Error()))
		return
	}

	if referenced {
		if err := rs.wal.Commit(e.ID); err != nil {
			summary.Failed++
			log.Warn("Не удалось закоммитить запись", slog.String("error", err.Error()))
			return
		}
		summary.Committed++
		return
	}

	if err := rs.store.Delete(e.LocalPath); err != nil {
		summary.Failed++
		log.Error("Не удалось удалить файл-сироту", slog.String("error", err.Error()))
		return
	}
	if err := rs.wal.Rollback(e.ID); err != nil {
		summary.Failed++
		log.Warn("Не удалось откатить запись", slog.String("error", err.Error()))
		return
	}
	summary.OrphansRemoved++
	reconcileOrphansRemovedTotal.Inc()
	log.Info("Файл-сирота удалён")
}

// IsInProgress сообщает, выполняется ли сверка.
func (rs *ReconcileService) IsInProgress() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.inProcess
}
