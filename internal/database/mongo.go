package database

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/paolo-abarca/holbertonschool-files-manager/internal/config"
)

// Коллекции MongoDB. Имена совместимы с существующими данными сервиса.
const (
	UsersCollection = "users"
	FilesCollection = "files"
)

// ConnectMongo подключается к MongoDB и проверяет доступность ping-ом.
// Возвращает клиент и базу данных из конфигурации.
func ConnectMongo(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI()))
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка создания клиента MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ошибка подключения к MongoDB: %w", err)
	}

	logger.Info("Подключение к MongoDB установлено",
		slog.String("host", cfg.DBHost),
		slog.Int("port", cfg.DBPort),
		slog.String("database", cfg.DBName),
	)

	return client, client.Database(cfg.DBName), nil
}

// EnsureMongoIndexes создаёт индексы коллекций: уникальный email,
// выборка по владельцу и родителю, поиск по пути содержимого.
// Аналог миграций PostgreSQL, операция идемпотентна.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(UsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("ошибка создания индекса users.email: %w", err)
	}

	_, err = db.Collection(FilesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("owner_order"),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "parentId", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("owner_parent_order"),
		},
		{
			Keys:    bson.D{{Key: "localPath", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("local_path"),
		},
	})
	if err != nil {
		return fmt.Errorf("ошибка создания индексов files: %w", err)
	}
	return nil
}

// MongoReadinessChecker — проверка готовности MongoDB для health endpoint.
type MongoReadinessChecker struct {
	client *mongo.Client
}

// NewMongoReadinessChecker создаёт проверку готовности MongoDB.
func NewMongoReadinessChecker(client *mongo.Client) *MongoReadinessChecker {
	return &MongoReadinessChecker{client: client}
}

// Ping проверяет подключение к MongoDB.
func (c *MongoReadinessChecker) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	return c.client.Ping(ctx, readpref.Primary())
}

// Name возвращает имя хранилища для health-ответов.
func (c *MongoReadinessChecker) Name() string {
	return "mongodb"
}
