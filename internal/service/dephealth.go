// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Набор зависимостей следует выбранным backend-ам:
//   - PostgreSQL через существующий pgxpool (pgcheck, critical);
//   - MongoDB TCP-проверкой (tcpcheck, critical);
//   - Redis через общий клиент сессий и очередей (redischeck, critical);
//   - RabbitMQ (amqpcheck, non-critical: задачи не влияют на ответы).
//
// Метрики app_dependency_* доступны на /metrics вместе с остальными.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/amqpcheck"
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/redischeck"
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/tcpcheck"
	"github.com/redis/go-redis/v9"
)

// Имена зависимостей в метриках topologymetrics.
const (
	DepPostgres = "postgresql"
	DepMongo    = "mongodb"
	DepRedis    = "redis"
	DepRabbitMQ = "rabbitmq"
)

// DephealthTargets — зависимости процесса. Пустые поля не мониторятся.
type DephealthTargets struct {
	// PostgresDB — *sql.DB из pgxpool (stdlib.OpenDBFromPool), PostgresURL — для лейблов
	PostgresDB  *sql.DB
	PostgresURL string

	MongoHost string
	MongoPort int

	// Redis — общий клиент, RedisAddr — host:port для лейблов
	Redis     redis.Cmdable
	RedisAddr string

	AMQPURL string
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	deps   []string
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
//
// Параметры:
//   - serviceID — имя вершины графа приложения
//   - group — имя группы в метриках (FM_DEPHEALTH_GROUP)
//   - checkInterval — интервал проверки (FM_DEPHEALTH_CHECK_INTERVAL)
//   - extraOpts — например dephealth.WithRegisterer в тестах
func NewDephealthService(
	serviceID, group string,
	targets DephealthTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	opts := []dephealth.Option{dephealth.WithLogger(logger)}
	var deps []string

	if targets.PostgresDB != nil {
		opts = append(opts, dephealth.AddDependency(DepPostgres, dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(targets.PostgresDB)),
			dephealth.FromURL(targets.PostgresURL),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		))
		deps = append(deps, DepPostgres)
	}

	if targets.MongoHost != "" {
		opts = append(opts, dephealth.AddDependency(DepMongo, dephealth.TypeTCP,
			tcpcheck.New(),
			dephealth.FromParams(targets.MongoHost, strconv.Itoa(targets.MongoPort)),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		))
		deps = append(deps, DepMongo)
	}

	if targets.Redis != nil {
		opts = append(opts, dephealth.AddDependency(DepRedis, dephealth.TypeRedis,
			redischeck.New(redischeck.WithClient(targets.Redis)),
			dephealth.FromURL("redis://"+targets.RedisAddr),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		))
		deps = append(deps, DepRedis)
	}

	if targets.AMQPURL != "" {
		opts = append(opts, dephealth.AddDependency(DepRabbitMQ, dephealth.TypeAMQP,
			amqpcheck.New(amqpcheck.WithURL(targets.AMQPURL)),
			dephealth.FromURL(targets.AMQPURL),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(false),
		))
		deps = append(deps, DepRabbitMQ)
	}

	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(serviceID, group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		deps:   deps,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Dependencies возвращает имена мониторимых зависимостей.
func (ds *DephealthService) Dependencies() []string {
	return append([]string(nil), ds.deps...)
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен",
		slog.String("dependencies", strings.Join(ds.deps, ",")),
	)
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Name возвращает имя проверки для /health/ready.
func (ds *DephealthService) Name() string {
	return "dependencies"
}

// Ping сообщает об ошибке, если последняя проверка хотя бы одной
// critical-зависимости завершилась неудачей. Ещё не проверенные
// и non-critical зависимости не учитываются.
func (ds *DephealthService) Ping(context.Context) error {
	return unhealthy(ds.dh.HealthDetails())
}

// unhealthy собирает ключи "dependency:host:port" неуспешных critical-проверок.
func unhealthy(details map[string]dephealth.EndpointStatus) error {
	var failed []string
	for key, st := range details {
		if st.Critical && st.Healthy != nil && !*st.Healthy {
			failed = append(failed, key)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	sort.Strings(failed)
	return fmt.Errorf("недоступны зависимости: %s", strings.Join(failed, ", "))
}
