package jobs

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisDispatcher — очередь на списках Redis: LPUSH <prefix><queue> <json>.
// Воркеры забирают задачи через BRPOP.
type RedisDispatcher struct {
	client *redis.Client
	prefix string
}

// NewRedisDispatcher создаёт dispatcher поверх клиента Redis.
// Клиент не закрывается в Close: им владеет вызывающий.
func NewRedisDispatcher(client *redis.Client, prefix string) *RedisDispatcher {
	return &RedisDispatcher{client: client, prefix: prefix}
}

// Key возвращает ключ списка Redis для очереди.
func (d *RedisDispatcher) Key(queue string) string {
	return d.prefix + queue
}

// Enqueue добавляет задачу в голову списка.
func (d *RedisDispatcher) Enqueue(ctx context.Context, queue string, payload any) error {
	body, err := encode(queue, payload)
	if err != nil {
		return err
	}
	if err := d.client.LPush(ctx, d.Key(queue), body).Err(); err != nil {
		return fmt.Errorf("redis LPUSH %s: %w", d.Key(queue), err)
	}
	return nil
}

// Close ничего не делает: клиент Redis разделяется с хранилищем сессий.
func (d *RedisDispatcher) Close() error {
	return nil
}
