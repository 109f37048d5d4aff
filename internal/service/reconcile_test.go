package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/paolo-abarca/holbertonschool-files-manager/internal/storage/wal"
)

func newTestReconcile(env *testEnv) *ReconcileService {
	return NewReconcileService(env.wal, env.store, env.repo.Files(), 0, 10*time.Minute, testLogger())
}

// simulateCrash оставляет на диске содержимое и pending-запись без метаданных.
func simulateCrash(t *testing.T, env *testEnv) string {
	t.Helper()
	path := env.store.NewPath()
	if _, err := env.wal.StartTransaction(wal.OpContentWrite, path, "owner"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.store.Write(path, strings.NewReader("orphan")); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReconcile_RemovesOrphans(t *testing.T) {
	env := newTestEnv(t, "")
	rs := newTestReconcile(env)
	ctx := context.Background()

	orphan := simulateCrash(t, env)

	summary, err := rs.Recover(ctx)
	if err != nil {
		t.Fatalf("Recover() вернул ошибку: %v", err)
	}
	if summary.Checked != 1 || summary.OrphansRemoved != 1 || summary.Committed != 0 {
		t.Errorf("неожиданный итог: %+v", summary)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Error("файл-сирота должен быть удалён")
	}
	if pending, _ := env.wal.Pending(0); len(pending) != 0 {
		t.Errorf("pending-записей быть не должно: %d", len(pending))
	}
}

func TestReconcile_CommitsReferenced(t *testing.T) {
	env := newTestEnv(t, "")
	rs := newTestReconcile(env)
	ctx := context.Background()
	owner := env.mustRegister(t, "owner@x.com")

	n, err := env.files.Create(ctx, CreateParams{OwnerID: owner, Name: "a.txt", Type: "file", Data: b64("a")})
	if err != nil {
		t.Fatal(err)
	}
	// Процесс упал после вставки метаданных, но до коммита журнала
	if _, err := env.wal.StartTransaction(wal.OpContentWrite, n.LocalPath(), owner); err != nil {
		t.Fatal(err)
	}

	summary, err := rs.Recover(ctx)
	if err != nil {
		t.Fatalf("Recover() вернул ошибку: %v", err)
	}
	if summary.Committed != 1 || summary.OrphansRemoved != 0 {
		t.Errorf("неожиданный итог: %+v", summary)
	}
	if _, err := os.Stat(n.LocalPath()); err != nil {
		t.Errorf("содержимое с метаданными должно остаться: %v", err)
	}
}

func TestReconcile_GraceSkipsFreshEntries(t *testing.T) {
	env := newTestEnv(t, "")
	rs := newTestReconcile(env)

	orphan := simulateCrash(t, env)

	summary, err := rs.RunOnce(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("RunOnce() вернул ошибку: %v", err)
	}
	if summary.Checked != 0 {
		t.Errorf("свежая запись не должна проверяться: %+v", summary)
	}
	if _, err := os.Stat(orphan); err != nil {
		t.Error("файл свежей загрузки не должен удаляться")
	}
}

func TestReconcile_InProgress(t *testing.T) {
	env := newTestEnv(t, "")
	rs := newTestReconcile(env)

	rs.mu.Lock()
	rs.inProcess = true
	rs.mu.Unlock()

	if _, err := rs.RunOnce(context.Background(), 0); !errors.Is(err, ErrReconcileInProgress) {
		t.Errorf("ожидалась ErrReconcileInProgress, получено %v", err)
	}
}

func TestReconcile_StartStop(t *testing.T) {
	env := newTestEnv(t, "")
	rs := NewReconcileService(env.wal, env.store, env.repo.Files(), 10*time.Millisecond, 0, testLogger())

	orphan := simulateCrash(t, env)
	rs.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(orphan); os.IsNotExist(err) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	rs.Stop()

	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Error("периодическая сверка должна удалить сироту")
	}
	if rs.IsInProgress() {
		t.Error("после Stop сверка не должна выполняться")
	}
}
