package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/paolo-abarca/holbertonschool-files-manager/internal/config"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/repository/memrepo"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/storage/filestore"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/storage/session"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/storage/wal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// recordedJob — задача, принятая fakeDispatcher.
type recordedJob struct {
	Queue   string
	Payload any
}

// fakeDispatcher запоминает задачи; err имитирует недоступную очередь.
type fakeDispatcher struct {
	mu   sync.Mutex
	jobs []recordedJob
	err  error
}

func (d *fakeDispatcher) Enqueue(_ context.Context, queue string, payload any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, recordedJob{Queue: queue, Payload: payload})
	return nil
}

func (d *fakeDispatcher) Close() error { return nil }

func (d *fakeDispatcher) recorded() []recordedJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]recordedJob(nil), d.jobs...)
}

// testEnv — сервисы поверх хранилищ в памяти и временной директории.
type testEnv struct {
	repo     *memrepo.Store
	sessions *session.MemoryStore
	jobs     *fakeDispatcher
	store    *filestore.FileStore
	wal      *wal.WAL
	auth     *AuthService
	files    *FileService
}

func newTestEnv(t *testing.T, scheme string) *testEnv {
	t.Helper()
	logger := testLogger()
	dir := t.TempDir()

	store, err := filestore.New(dir)
	if err != nil {
		t.Fatalf("filestore.New() вернул ошибку: %v", err)
	}
	w, err := wal.New(filepath.Join(dir, ".wal"), logger)
	if err != nil {
		t.Fatalf("wal.New() вернул ошибку: %v", err)
	}

	env := &testEnv{
		repo:     memrepo.New(),
		sessions: session.NewMemoryStore(100, 24*time.Hour),
		jobs:     &fakeDispatcher{},
		store:    store,
		wal:      w,
	}
	if scheme == "" {
		scheme = config.PasswordSHA1
	}
	env.auth = NewAuthService(env.repo.Users(), env.sessions, env.jobs,
		NewPasswordHasher(scheme), 24*time.Hour, logger)
	env.files = NewFileService(env.repo.Files(), store, w, env.jobs, logger)
	return env
}

// mustRegister регистрирует пользователя и возвращает его идентификатор.
func (e *testEnv) mustRegister(t *testing.T, email string) string {
	t.Helper()
	u, err := e.auth.RegisterUser(context.Background(), RegisterParams{Email: email, Password: "secret"})
	if err != nil {
		t.Fatalf("RegisterUser(%s) вернул ошибку: %v", email, err)
	}
	return u.ID
}
