package wal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WAL — файловый журнал записей содержимого. Потокобезопасен.
type WAL struct {
	dir    string
	mu     sync.Mutex
	logger *slog.Logger
	now    func() time.Time
}

// New открывает журнал в директории dir, создавая её при необходимости,
// и проверяет доступность на запись.
func New(dir string, logger *slog.Logger) (*WAL, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию WAL %s: %w", dir, err)
	}

	probe := filepath.Join(dir, ".write_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o640); err != nil {
		return nil, fmt.Errorf("директория WAL %s недоступна для записи: %w", dir, err)
	}
	_ = os.Remove(probe)

	return &WAL{
		dir:    dir,
		logger: logger.With(slog.String("component", "wal")),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// StartTransaction создаёт pending-запись для операции над localPath.
func (w *WAL) StartTransaction(op Operation, localPath, ownerID string) (*Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e := &Entry{
		ID:        uuid.New().String(),
		Operation: op,
		Status:    StatusPending,
		LocalPath: localPath,
		OwnerID:   ownerID,
		StartedAt: w.now(),
	}
	if err := w.write(e); err != nil {
		return nil, fmt.Errorf("не удалось создать запись WAL: %w", err)
	}

	w.logger.Debug("Запись WAL создана",
		slog.String("tx_id", e.ID),
		slog.String("local_path", localPath),
	)
	return e, nil
}

// Commit закрывает запись как успешную.
func (w *WAL) Commit(id string) error {
	return w.complete(id, StatusCommitted)
}

// Rollback закрывает запись как отменённую.
func (w *WAL) Rollback(id string) error {
	return w.complete(id, StatusRolledBack)
}

func (w *WAL) complete(id string, status Status) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, err := w.read(id)
	if err != nil {
		return fmt.Errorf("не удалось прочитать запись WAL %s: %w", id, err)
	}
	if e.Status != StatusPending {
		return fmt.Errorf("запись WAL %s (%s): %w", id, e.Status, ErrNotPending)
	}

	now := w.now()
	e.Status = status
	e.CompletedAt = &now
	if err := w.write(e); err != nil {
		return fmt.Errorf("не удалось обновить запись WAL %s: %w", id, err)
	}

	w.logger.Debug("Запись WAL завершена",
		slog.String("tx_id", id),
		slog.String("status", string(status)),
		slog.Duration("duration", now.Sub(e.StartedAt)),
	)
	return nil
}

// Pending возвращает pending-записи старше minAge.
// minAge == 0 возвращает все pending-записи (восстановление при старте).
// Нечитаемые записи пропускаются с предупреждением.
func (w *WAL) Pending(minAge time.Duration) ([]*Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var pending []*Entry
	now := w.now()
	err := w.scan(func(path string, e *Entry) {
		if e.Status == StatusPending && e.Age(now) >= minAge {
			pending = append(pending, e)
		}
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// Get читает запись по идентификатору.
func (w *WAL) Get(id string) (*Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.read(id)
}

// CleanCompleted удаляет завершённые записи и возвращает их количество.
func (w *WAL) CleanCompleted() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cleaned := 0
	err := w.scan(func(path string, e *Entry) {
		if e.Status == StatusPending {
			return
		}
		if err := os.Remove(path); err != nil {
			w.logger.Warn("Не удалось удалить завершённую запись WAL",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return
		}
		cleaned++
	})
	if err != nil {
		return 0, err
	}

	if cleaned > 0 {
		w.logger.Info("Очистка WAL завершена", slog.Int("cleaned", cleaned))
	}
	return cleaned, nil
}

// Dir возвращает директорию журнала.
func (w *WAL) Dir() string {
	return w.dir
}

// scan обходит все записи журнала. Вызывается под w.mu.
func (w *WAL) scan(fn func(path string, e *Entry)) error {
	paths, err := filepath.Glob(filepath.Join(w.dir, "*"+fileSuffix))
	if err != nil {
		return fmt.Errorf("не удалось сканировать директорию WAL: %w", err)
	}
	for _, path := range paths {
		e, err := w.read(strings.TrimSuffix(filepath.Base(path), fileSuffix))
		if err != nil {
			w.logger.Warn("Не удалось прочитать запись WAL",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		fn(path, e)
	}
	return nil
}

// write атомарно сохраняет запись: temp файл → fsync → rename.
func (w *WAL) write(e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("ошибка сериализации: %w", err)
	}

	f, err := os.CreateTemp(w.dir, ".entry-*.tmp")
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpPath := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(w.dir, fileName(e.ID))); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}
	return nil
}

func (w *WAL) read(id string) (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(w.dir, fileName(id)))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("ошибка десериализации: %w", err)
	}
	return &e, nil
}
