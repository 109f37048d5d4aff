// Пакет config — загрузка и валидация конфигурации Files Manager
// из переменных окружения (префикс FM_) и опционального YAML-файла.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Допустимые значения backend-ов.
const (
	MetadataPostgres = "postgres"
	MetadataMongo    = "mongo"

	SessionRedis  = "redis"
	SessionMemory = "memory"

	QueueRedis = "redis"
	QueueAMQP  = "amqp"

	PasswordSHA1   = "sha1"
	PasswordBcrypt = "bcrypt"
)

// Config содержит все параметры конфигурации Files Manager.
type Config struct {
	// Порт HTTP-сервера
	Port int `validate:"min=1,max=65535"`
	// Директория хранения содержимого файлов (FOLDER_PATH)
	FolderPath string `validate:"required"`
	// Директория WAL-маркеров загрузок
	WALDir string `validate:"required"`
	// Максимальный размер тела запроса в байтах
	MaxBodySize int64 `validate:"gt=0"`

	// Backend хранилища метаданных: postgres или mongo
	MetadataBackend string `validate:"oneof=postgres mongo"`
	DBHost          string `validate:"required"`
	DBPort          int    `validate:"min=1,max=65535"`
	DBName          string `validate:"required"`
	DBUser          string
	DBPassword      string
	DBSSLMode       string `validate:"oneof=disable allow prefer require verify-ca verify-full"`

	// Backend хранилища сессий: redis или memory
	SessionBackend string `validate:"oneof=redis memory"`
	// Время жизни токена сессии
	SessionTTL time.Duration `validate:"gt=0"`
	// Ёмкость in-memory кэша сессий
	SessionCacheSize int `validate:"gt=0"`

	RedisAddr     string
	RedisPassword string
	RedisDB       int `validate:"min=0"`

	// Backend очереди задач: redis или amqp
	QueueBackend string `validate:"oneof=redis amqp"`
	// Префикс ключей Redis-очередей
	QueuePrefix string
	// URL брокера RabbitMQ (только для amqp)
	AMQPURL string

	// Схема хэширования паролей: sha1 или bcrypt
	PasswordScheme string `validate:"oneof=sha1 bcrypt"`

	// Интервал фоновой сверки WAL (0 — отключена)
	ReconcileInterval time.Duration `validate:"min=0"`
	// Возраст pending-записи, после которого она считается брошенной
	ReconcileGrace time.Duration `validate:"gt=0"`

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration `validate:"gt=0"`
	// Имя группы в метриках topologymetrics
	DephealthGroup string

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration `validate:"gt=0"`

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string `validate:"oneof=json text"`
}

var validate = validator.New()

// Load загружает конфигурацию из переменных окружения и, если задан
// FM_CONFIG_FILE, из YAML-файла. Переменные окружения имеют приоритет.
func Load() (*Config, error) {
	v := viper.New()
	setupViper(v)

	if path := os.Getenv("FM_CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("FM_CONFIG_FILE: ошибка чтения %s: %w", path, err)
		}
	}

	cfg := &Config{
		FolderPath:      v.GetString("folder_path"),
		MetadataBackend: strings.ToLower(v.GetString("metadata_backend")),
		DBHost:          v.GetString("db_host"),
		DBName:          v.GetString("db_database"),
		DBUser:          v.GetString("db_user"),
		DBPassword:      v.GetString("db_password"),
		DBSSLMode:       v.GetString("db_ssl_mode"),
		SessionBackend:  strings.ToLower(v.GetString("session_backend")),
		RedisAddr:       v.GetString("redis_addr"),
		RedisPassword:   v.GetString("redis_password"),
		QueueBackend:    strings.ToLower(v.GetString("queue_backend")),
		QueuePrefix:     v.GetString("queue_prefix"),
		AMQPURL:         v.GetString("amqp_url"),
		PasswordScheme:  strings.ToLower(v.GetString("password_scheme")),
		DephealthGroup:  v.GetString("dephealth_group"),
		LogFormat:       strings.ToLower(v.GetString("log_format")),
	}

	var err error

	if cfg.Port, err = getInt(v, "port"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = getInt64(v, "max_body_size"); err != nil {
		return nil, err
	}
	if cfg.DBPort, err = getInt(v, "db_port"); err != nil {
		return nil, err
	}
	if cfg.DBPort == 0 {
		cfg.DBPort = defaultDBPort(cfg.MetadataBackend)
	}
	if cfg.SessionCacheSize, err = getInt(v, "session_cache_size"); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getInt(v, "redis_db"); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getDuration(v, "session_ttl"); err != nil {
		return nil, err
	}
	if cfg.ReconcileInterval, err = getDuration(v, "reconcile_interval"); err != nil {
		return nil, err
	}
	if cfg.ReconcileGrace, err = getDuration(v, "reconcile_grace"); err != nil {
		return nil, err
	}
	if cfg.DephealthCheckInterval, err = getDuration(v, "dephealth_check_interval"); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration(v, "shutdown_timeout"); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = parseLogLevel(v.GetString("log_level")); err != nil {
		return nil, fmt.Errorf("FM_LOG_LEVEL: %w", err)
	}

	cfg.WALDir = v.GetString("wal_dir")
	if cfg.WALDir == "" {
		cfg.WALDir = filepath.Join(cfg.FolderPath, ".wal")
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, formatValidationError(err)
	}

	// Зависимые параметры, не выражаемые тегами
	if cfg.UsesRedis() && cfg.RedisAddr == "" {
		return nil, fmt.Errorf("FM_REDIS_ADDR: обязательный параметр для redis backend")
	}
	if cfg.QueueBackend == QueueAMQP && cfg.AMQPURL == "" {
		return nil, fmt.Errorf("FM_AMQP_URL: обязательный параметр для amqp backend")
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL для pgxpool.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// MongoURI возвращает URI подключения к MongoDB.
func (c *Config) MongoURI() string {
	if c.DBUser != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%d", c.DBUser, c.DBPassword, c.DBHost, c.DBPort)
	}
	return fmt.Sprintf("mongodb://%s:%d", c.DBHost, c.DBPort)
}

// UsesRedis сообщает, нужен ли Redis хотя бы одному backend-у.
func (c *Config) UsesRedis() bool {
	return c.SessionBackend == SessionRedis || c.QueueBackend == QueueRedis
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// setupViper регистрирует значения по умолчанию и привязку к FM_* переменным.
func setupViper(v *viper.Viper) {
	v.SetEnvPrefix("FM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := map[string]any{
		"port":                     "5000",
		"folder_path":              "/tmp/files_manager",
		"wal_dir":                  "",
		"max_body_size":            "67108864",
		"metadata_backend":         MetadataPostgres,
		"db_host":                  "localhost",
		"db_port":                  "0",
		"db_database":              "files_manager",
		"db_user":                  "",
		"db_password":              "",
		"db_ssl_mode":              "disable",
		"session_backend":          SessionRedis,
		"session_ttl":              "24h",
		"session_cache_size":       "10000",
		"redis_addr":               "localhost:6379",
		"redis_password":           "",
		"redis_db":                 "0",
		"queue_backend":            QueueRedis,
		"queue_prefix":             "fm:queue:",
		"amqp_url":                 "",
		"password_scheme":          PasswordSHA1,
		"reconcile_interval":       "1h",
		"reconcile_grace":          "10m",
		"dephealth_check_interval": "15s",
		"dephealth_group":          "files-manager",
		"shutdown_timeout":         "10s",
		"log_level":                "info",
		"log_format":               "json",
	}
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
}

// envName возвращает имя переменной окружения для ключа конфигурации.
func envName(key string) string {
	return "FM_" + strings.ToUpper(key)
}

// getInt возвращает целочисленное значение ключа.
func getInt(v *viper.Viper, key string) (int, error) {
	val := v.GetString(key)
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: некорректное целое число: %q", envName(key), val)
	}
	return n, nil
}

// getInt64 возвращает int64 значение ключа.
func getInt64(v *viper.Viper, key string) (int64, error) {
	val := v.GetString(key)
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: некорректное целое число: %q", envName(key), val)
	}
	return n, nil
}

// getDuration возвращает time.Duration значение ключа.
func getDuration(v *viper.Viper, key string) (time.Duration, error) {
	val := v.GetString(key)
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", envName(key), val)
	}
	return d, nil
}

// defaultDBPort возвращает стандартный порт для backend-а метаданных.
func defaultDBPort(backend string) int {
	if backend == MetadataMongo {
		return 27017
	}
	return 5432
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// fieldEnv сопоставляет поля Config с переменными окружения для сообщений об ошибках.
var fieldEnv = map[string]string{
	"Port":                   "FM_PORT",
	"FolderPath":             "FM_FOLDER_PATH",
	"WALDir":                 "FM_WAL_DIR",
	"MaxBodySize":            "FM_MAX_BODY_SIZE",
	"MetadataBackend":        "FM_METADATA_BACKEND",
	"DBHost":                 "FM_DB_HOST",
	"DBPort":                 "FM_DB_PORT",
	"DBName":                 "FM_DB_DATABASE",
	"DBSSLMode":              "FM_DB_SSL_MODE",
	"SessionBackend":         "FM_SESSION_BACKEND",
	"SessionTTL":             "FM_SESSION_TTL",
	"SessionCacheSize":       "FM_SESSION_CACHE_SIZE",
	"RedisDB":                "FM_REDIS_DB",
	"QueueBackend":           "FM_QUEUE_BACKEND",
	"PasswordScheme":         "FM_PASSWORD_SCHEME",
	"ReconcileInterval":      "FM_RECONCILE_INTERVAL",
	"ReconcileGrace":         "FM_RECONCILE_GRACE",
	"DephealthCheckInterval": "FM_DEPHEALTH_CHECK_INTERVAL",
	"ShutdownTimeout":        "FM_SHUTDOWN_TIMEOUT",
	"LogFormat":              "FM_LOG_FORMAT",
}

// formatValidationError превращает первую ошибку validator в сообщение
// с именем переменной окружения.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		name, ok := fieldEnv[e.Field()]
		if !ok {
			name = e.Field()
		}
		if e.Param() != "" {
			return fmt.Errorf("%s: недопустимое значение %v (правило %s=%s)", name, e.Value(), e.Tag(), e.Param())
		}
		return fmt.Errorf("%s: недопустимое значение %v (правило %s)", name, e.Value(), e.Tag())
	}
	return fmt.Errorf("ошибка валидации конфигурации: %w", err)
}
