package jobs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/paolo-abarca/holbertonschool-files-manager/internal/testutil"
)

// TestPayloadShape проверяет имена полей задач, которые читают воркеры.
func TestPayloadShape(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		want    string
	}{
		{"user", UserJob{UserID: "u1"}, `{"userId":"u1"}`},
		{"file", FileJob{UserID: "u1", FileID: "f1"}, `{"userId":"u1","fileId":"f1"}`},
	}
	for _, tt := range tests {
		body, err := encode("q", tt.payload)
		if err != nil {
			t.Fatalf("%s: encode() вернул ошибку: %v", tt.name, err)
		}
		if string(body) != tt.want {
			t.Errorf("%s: получено %s, ожидали %s", tt.name, body, tt.want)
		}
	}

	if _, err := encode("q", make(chan int)); err == nil {
		t.Error("ожидалась ошибка сериализации")
	}
}

// TestRedisDispatcher проверяет LPUSH в список с префиксом.
func TestRedisDispatcher(t *testing.T) {
	addr := testutil.StartRedis(t)
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	d := NewRedisDispatcher(client, "fm:queue:")
	ctx := context.Background()

	if err := d.Enqueue(ctx, QueueFile, FileJob{UserID: "u1", FileID: "f1"}); err != nil {
		t.Fatalf("Enqueue() вернул ошибку: %v", err)
	}
	if err := d.Enqueue(ctx, QueueFile, FileJob{UserID: "u1", FileID: "f2"}); err != nil {
		t.Fatalf("Enqueue() вернул ошибку: %v", err)
	}

	// Воркер читает с хвоста: первой выходит первая задача
	raw, err := client.RPop(ctx, "fm:queue:fileQ").Result()
	if err != nil {
		t.Fatalf("RPOP вернул ошибку: %v", err)
	}
	var job FileJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		t.Fatalf("некорректный JSON задачи: %v", err)
	}
	if job.FileID != "f1" {
		t.Errorf("ожидали f1, получено %s", job.FileID)
	}

	if n, _ := client.LLen(ctx, d.Key(QueueFile)).Result(); n != 1 {
		t.Errorf("в очереди должна остаться 1 задача, получено %d", n)
	}
}
