// Пакет testutil — запуск внешних зависимостей в Docker через
// testcontainers для интеграционных тестов. Тесты пропускаются,
// если переменная TEST_INTEGRATION не установлена.
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/paolo-abarca/holbertonschool-files-manager/internal/config"
)

// RequireIntegration пропускает тест без TEST_INTEGRATION.
func RequireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}
}

// Logger возвращает логгер для тестов, выводящий только ошибки.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// StartPostgres запускает PostgreSQL и возвращает конфиг для подключения.
func StartPostgres(t *testing.T) *config.Config {
	t.Helper()
	RequireIntegration(t)

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("files_manager_test"),
		postgres.WithUsername("files_manager"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	terminateOnCleanup(t, container)

	mapped, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}
	host, port := endpoint(t, container, mapped.Port())

	return &config.Config{
		MetadataBackend: config.MetadataPostgres,
		DBHost:          host,
		DBPort:          port,
		DBName:          "files_manager_test",
		DBUser:          "files_manager",
		DBPassword:      "test-password",
		DBSSLMode:       "disable",
	}
}

// StartMongo запускает MongoDB и возвращает конфиг для подключения.
func StartMongo(t *testing.T) *config.Config {
	t.Helper()
	RequireIntegration(t)

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "docker.io/mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Не удалось запустить MongoDB контейнер: %v", err)
	}
	terminateOnCleanup(t, container)

	mapped, err := container.MappedPort(ctx, "27017/tcp")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}
	host, port := endpoint(t, container, mapped.Port())

	return &config.Config{
		MetadataBackend: config.MetadataMongo,
		DBHost:          host,
		DBPort:          port,
		DBName:          "files_manager_test",
	}
}

// StartRedis запускает Redis и возвращает адрес host:port.
func StartRedis(t *testing.T) string {
	t.Helper()
	RequireIntegration(t)

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "docker.io/redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Не удалось запустить Redis контейнер: %v", err)
	}
	terminateOnCleanup(t, container)

	mapped, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}
	host, port := endpoint(t, container, mapped.Port())
	return fmt.Sprintf("%s:%d", host, port)
}

func terminateOnCleanup(t *testing.T, container testcontainers.Container) {
	t.Helper()
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})
}

func endpoint(t *testing.T, container testcontainers.Container, mappedPort string) (string, int) {
	t.Helper()

	host, err := container.Host(context.Background())
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	n, err := strconv.Atoi(mappedPort)
	if err != nil {
		t.Fatalf("Некорректный port контейнера %q: %v", mappedPort, err)
	}
	return host, n
}
