package session

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// entry — значение с собственным моментом истечения.
type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore — in-process хранилище сессий на expirable LRU.
// LRU вытесняет записи по maxTTL и ёмкости; точное истечение
// каждой записи проверяется по expiresAt при чтении.
// Подходит для одного экземпляра сервиса и для тестов.
type MemoryStore struct {
	cache *expirable.LRU[string, entry]
	now   func() time.Time
}

// NewMemoryStore создаёт хранилище ёмкостью size записей.
// maxTTL — верхняя граница времени жизни, используемая LRU для вытеснения.
func NewMemoryStore(size int, maxTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: expirable.NewLRU[string, entry](size, nil, maxTTL),
		now:   time.Now,
	}
}

// Set сохраняет значение с временем жизни ttl.
func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.cache.Add(key, entry{value: value, expiresAt: s.now().Add(ttl)})
	return nil
}

// Get возвращает значение, если оно не истекло.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	e, ok := s.cache.Get(key)
	if !ok {
		return "", false, nil
	}
	if !s.now().Before(e.expiresAt) {
		s.cache.Remove(key)
		return "", false, nil
	}
	return e.value, true, nil
}

// Delete удаляет ключ.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Remove(key)
	return nil
}

// Ping всегда успешен: хранилище находится в памяти процесса.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close очищает хранилище.
func (s *MemoryStore) Close() error {
	s.cache.Purge()
	return nil
}
