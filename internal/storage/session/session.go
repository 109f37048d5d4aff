// Пакет session — хранилище сессий: отображение токен → идентификатор
// пользователя с временем жизни на каждый ключ. Истечение обеспечивает
// само хранилище, фоновых процессов очистки нет.
package session

import (
	"context"
	"time"
)

// KeyPrefix — префикс ключей сессий. Формат ключа: auth_<token>.
const KeyPrefix = "auth_"

// Key возвращает ключ хранилища для токена.
func Key(token string) string {
	return KeyPrefix + token
}

// Store — key-value хранилище с TTL на ключ.
type Store interface {
	// Set сохраняет значение с временем жизни ttl.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get возвращает значение; ok == false, если ключа нет или он истёк.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Delete удаляет ключ. Отсутствующий ключ не является ошибкой.
	Delete(ctx context.Context, key string) error
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
	// Close освобождает ресурсы.
	Close() error
}
