// Точка входа Files Manager — сервиса пользователей, сессий и иерархии файлов.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/paolo-abarca/holbertonschool-files-manager/internal/api/handlers"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/api/middleware"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/api/openapi"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/config"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/database"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/jobs"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/repository"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/repository/mongorepo"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/server"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/service"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/storage/filestore"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/storage/session"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/storage/wal"
)

// metadata — выбранное хранилище метаданных.
type metadata struct {
	users repository.UserRepository
	files repository.FileRepository
	ready handlers.ReadinessChecker
	// sqlDB — *sql.DB поверх pgxpool для topologymetrics, nil для MongoDB
	sqlDB *sql.DB
	close func()
}

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Files Manager запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("metadata_backend", cfg.MetadataBackend),
		slog.String("session_backend", cfg.SessionBackend),
		slog.String("queue_backend", cfg.QueueBackend),
	)

	ctx := context.Background()

	// --- Инициализация компонентов ---

	// 0. Контракт API
	if _, err := openapi.Load(ctx); err != nil {
		logger.Error("Ошибка загрузки OpenAPI", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 1. Хранилище метаданных
	meta, err := openMetadata(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища метаданных", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer meta.close()

	// 2. Redis — общий клиент сессий и очередей
	var redisClient *redis.Client
	if cfg.UsesRedis() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// Недоступный Redis отражается в /status, запуск продолжается
			logger.Warn("Redis недоступен", slog.String("addr", cfg.RedisAddr), slog.String("error", err.Error()))
		}
	}

	// 3. Хранилище сессий
	var sessions session.Store
	switch cfg.SessionBackend {
	case config.SessionRedis:
		sessions = session.NewRedisStore(redisClient)
	default:
		mem := session.NewMemoryStore(cfg.SessionCacheSize, cfg.SessionTTL)
		defer mem.Close()
		sessions = mem
	}

	// 4. Очередь фоновых задач
	dispatcher, err := openDispatcher(cfg, redisClient)
	if err != nil {
		logger.Warn("Очередь задач недоступна, задачи не будут публиковаться",
			slog.String("backend", cfg.QueueBackend),
			slog.String("error", err.Error()),
		)
	} else {
		defer closeQuietly(logger, "queue", dispatcher)
	}

	// 5. Файловое хранилище и WAL
	store, err := filestore.New(cfg.FolderPath)
	if err != nil {
		logger.Error("Ошибка инициализации FileStore", slog.String("error", err.Error()))
		os.Exit(1)
	}
	registerDiskMetrics(store.Dir())

	walEngine, err := wal.New(cfg.WALDir, logger)
	if err != nil {
		logger.Error("Ошибка инициализации WAL", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Сервисы
	hasher := service.NewPasswordHasher(cfg.PasswordScheme)
	authSvc := service.NewAuthService(meta.users, sessions, dispatcher, hasher, cfg.SessionTTL, logger)
	fileSvc := service.NewFileService(meta.files, store, walEngine, dispatcher, logger)
	statusSvc := service.NewStatusService(sessions, meta.ready, meta.users, meta.files, logger)

	// 7. Сверка WAL: незавершённые загрузки прошлого запуска, затем фоновый цикл
	reconcileSvc := service.NewReconcileService(walEngine, store, meta.files,
		cfg.ReconcileInterval, cfg.ReconcileGrace, logger)
	if summary, err := reconcileSvc.Recover(ctx); err != nil {
		logger.Error("Ошибка восстановления WAL", slog.String("error", err.Error()))
		os.Exit(1)
	} else if summary.Checked > 0 {
		logger.Warn("Обработаны незавершённые загрузки",
			slog.Int("checked", summary.Checked),
			slog.Int("orphans_removed", summary.OrphansRemoved),
			slog.Int("committed", summary.Committed),
		)
	}
	reconcileSvc.Start(ctx)

	// 8. topologymetrics — мониторинг зависимостей
	dephealthSvc, err := service.NewDephealthService("files-manager", cfg.DephealthGroup,
		dephealthTargets(cfg, meta.sqlDB, redisClient), cfg.DephealthCheckInterval, logger)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
		dephealthSvc = nil
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
		dephealthSvc = nil
	}

	// 9. Handlers
	checks := []handlers.ReadinessChecker{meta.ready, handlers.Named("sessions", sessions)}
	if dephealthSvc != nil {
		checks = append(checks, dephealthSvc)
	}
	h := server.Handlers{
		Health:   handlers.NewHealthHandler(statusSvc, logger, checks...),
		Auth:     handlers.NewAuthHandler(authSvc, cfg.MaxBodySize, logger),
		Files:    handlers.NewFilesHandler(fileSvc, cfg.MaxBodySize, logger),
		Sessions: middleware.NewSessionAuth(authSvc, logger),
	}

	// 10. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, h)
	runErr := srv.Run(ctx)

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	reconcileSvc.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		meta.close()
		os.Exit(1)
	}
	logger.Info("Files Manager остановлен")
}

// openMetadata подключает хранилище метаданных по FM_METADATA_BACKEND.
func openMetadata(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*metadata, error) {
	if cfg.MetadataBackend == config.MetadataMongo {
		client, db, err := database.ConnectMongo(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := database.EnsureMongoIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &metadata{
			users: mongorepo.NewUserRepository(db),
			files: mongorepo.NewFileRepository(db),
			ready: database.NewMongoReadinessChecker(client),
			close: func() { _ = client.Disconnect(context.Background()) },
		}, nil
	}

	if err := database.Migrate(cfg, logger); err != nil {
		return nil, err
	}
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	meta := &metadata{
		users: repository.NewUserRepository(pool),
		files: repository.NewFileRepository(pool),
		ready: database.NewReadinessChecker(pool),
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	meta.close = func() {
		_ = sqlDB.Close()
		pool.Close()
	}

	meta.sqlDB = sqlDB
	return meta, nil
}

// dephealthTargets собирает зависимости для topologymetrics по выбранным backend-ам.
func dephealthTargets(cfg *config.Config, sqlDB *sql.DB, redisClient *redis.Client) service.DephealthTargets {
	var t service.DephealthTargets
	switch cfg.MetadataBackend {
	case config.MetadataMongo:
		t.MongoHost, t.MongoPort = cfg.DBHost, cfg.DBPort
	default:
		t.PostgresDB, t.PostgresURL = sqlDB, cfg.DatabaseDSN()
	}
	if redisClient != nil {
		t.Redis, t.RedisAddr = redisClient, cfg.RedisAddr
	}
	if cfg.QueueBackend == config.QueueAMQP {
		t.AMQPURL = cfg.AMQPURL
	}
	return t
}

// openDispatcher создаёт очередь задач по FM_QUEUE_BACKEND.
func openDispatcher(cfg *config.Config, redisClient *redis.Client) (jobs.Dispatcher, error) {
	if cfg.QueueBackend == config.QueueAMQP {
		d, err := jobs.NewAMQPDispatcher(cfg.AMQPURL)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return jobs.NewRedisDispatcher(redisClient, cfg.QueuePrefix), nil
}

func closeQuietly(logger *slog.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Warn("Ошибка закрытия", slog.String("component", name), slog.String("error", err.Error()))
	}
}
