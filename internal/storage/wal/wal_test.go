package wal

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestWAL(t *testing.T) *WAL {
	t.Helper()
	w, err := New(filepath.Join(t.TempDir(), ".wal"), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания WAL: %v", err)
	}
	return w
}

// TestNew_ReadOnlyDir проверяет ошибку при недоступной для записи директории.
func TestNew_ReadOnlyDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root игнорирует права доступа")
	}
	dir := filepath.Join(t.TempDir(), "wal")
	if err := os.MkdirAll(dir, 0o550); err != nil {
		t.Fatalf("не удалось создать директорию: %v", err)
	}
	if _, err := New(dir, testLogger()); err == nil {
		t.Fatal("ожидалась ошибка при недоступной для записи директории")
	}
}

// TestStartTransaction проверяет создание pending-записи.
func TestStartTransaction(t *testing.T) {
	w := newTestWAL(t)

	e, err := w.StartTransaction(OpContentWrite, "/tmp/files_manager/abc", "user-1")
	if err != nil {
		t.Fatalf("ошибка создания записи: %v", err)
	}
	if e.ID == "" || e.Status != StatusPending || e.CompletedAt != nil {
		t.Errorf("неожиданная запись: %+v", e)
	}
	if e.LocalPath != "/tmp/files_manager/abc" || e.OwnerID != "user-1" {
		t.Errorf("поля записи не сохранены: %+v", e)
	}

	got, err := w.Get(e.ID)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if got.LocalPath != e.LocalPath || got.Operation != OpContentWrite {
		t.Errorf("прочитана неожиданная запись: %+v", got)
	}

	tmp, _ := filepath.Glob(filepath.Join(w.Dir(), "*.tmp"))
	if len(tmp) != 0 {
		t.Errorf("временные файлы должны отсутствовать: %v", tmp)
	}
}

// TestCompletion проверяет Commit/Rollback и запрет повторного завершения.
func TestCompletion(t *testing.T) {
	tests := []struct {
		name   string
		finish func(w *WAL, id string) error
		want   Status
	}{
		{"commit", (*WAL).Commit, StatusCommitted},
		{"rollback", (*WAL).Rollback, StatusRolledBack},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWAL(t)
			e, _ := w.StartTransaction(OpContentWrite, "/data/x", "")

			if err := tt.finish(w, e.ID); err != nil {
				t.Fatalf("ошибка завершения: %v", err)
			}
			got, _ := w.Get(e.ID)
			if got.Status != tt.want || got.CompletedAt == nil {
				t.Errorf("ожидался статус %s с временем завершения, получено %+v", tt.want, got)
			}

			if err := w.Commit(e.ID); !errors.Is(err, ErrNotPending) {
				t.Errorf("повторный Commit: ожидалась ErrNotPending, получено %v", err)
			}
			if err := w.Rollback(e.ID); !errors.Is(err, ErrNotPending) {
				t.Errorf("повторный Rollback: ожидалась ErrNotPending, получено %v", err)
			}
		})
	}
}

// TestGet_NotFound проверяет ошибку для неизвестной записи.
func TestGet_NotFound(t *testing.T) {
	w := newTestWAL(t)
	if _, err := w.Get("missing"); err == nil {
		t.Error("ожидалась ошибка для несуществующей записи")
	}
	if err := w.Commit("missing"); err == nil {
		t.Error("Commit несуществующей записи должен вернуть ошибку")
	}
}

// TestPending проверяет выборку pending-записей с учётом возраста.
func TestPending(t *testing.T) {
	w := newTestWAL(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	old, _ := w.StartTransaction(OpContentWrite, "/data/old", "")
	done, _ := w.StartTransaction(OpContentWrite, "/data/done", "")
	_ = w.Commit(done.ID)

	now = now.Add(30 * time.Minute)
	fresh, _ := w.StartTransaction(OpContentWrite, "/data/fresh", "")

	all, err := w.Pending(0)
	if err != nil {
		t.Fatalf("Pending(0) вернул ошибку: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ожидалось 2 pending-записи, получено %d", len(all))
	}

	aged, _ := w.Pending(10 * time.Minute)
	if len(aged) != 1 || aged[0].ID != old.ID {
		t.Errorf("ожидалась только старая запись %s, получено %+v", old.ID, aged)
	}
	_ = fresh
}

// TestPending_SkipsCorrupted проверяет пропуск повреждённых записей.
func TestPending_SkipsCorrupted(t *testing.T) {
	w := newTestWAL(t)
	if err := os.WriteFile(filepath.Join(w.Dir(), fileName("broken")), []byte("{"), 0o640); err != nil {
		t.Fatal(err)
	}
	_, _ = w.StartTransaction(OpContentWrite, "/data/ok", "")

	pending, err := w.Pending(0)
	if err != nil {
		t.Fatalf("Pending() вернул ошибку: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("ожидалась 1 запись, получено %d", len(pending))
	}
}

// TestCleanCompleted проверяет удаление завершённых записей.
func TestCleanCompleted(t *testing.T) {
	w := newTestWAL(t)

	_, _ = w.StartTransaction(OpContentWrite, "/data/1", "")
	e2, _ := w.StartTransaction(OpContentWrite, "/data/2", "")
	_ = w.Commit(e2.ID)
	e3, _ := w.StartTransaction(OpContentWrite, "/data/3", "")
	_ = w.Rollback(e3.ID)

	cleaned, err := w.CleanCompleted()
	if err != nil {
		t.Fatalf("ошибка очистки: %v", err)
	}
	if cleaned != 2 {
		t.Errorf("ожидалось 2 очищенных записи, получено %d", cleaned)
	}
	if pending, _ := w.Pending(0); len(pending) != 1 {
		t.Errorf("pending-запись должна остаться, получено %d", len(pending))
	}
}

// TestConcurrentAccess проверяет потокобезопасность журнала.
func TestConcurrentAccess(t *testing.T) {
	w := newTestWAL(t)

	const goroutines = 20
	var wg sync.WaitGroup
	errs := make(chan error, goroutines)

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			e, err := w.StartTransaction(OpContentWrite, "/data/concurrent", "")
			if err != nil {
				errs <- err
				return
			}
			if err := w.Commit(e.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("ошибка в горутине: %v", err)
	}
}
