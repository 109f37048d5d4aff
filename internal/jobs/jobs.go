// Пакет jobs — постановка задач постобработки в очередь.
// Сервис только публикует задачи; воркеры-потребители вне его границ.
// Доставка «fire-and-forget»: без подтверждений и повторов.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
)

// Имена очередей, известные воркерам.
const (
	QueueUser = "userQ"
	QueueFile = "fileQ"
)

// UserJob — задача по новому пользователю.
type UserJob struct {
	UserID string `json:"userId"`
}

// FileJob — задача по загруженному файлу (например, миниатюры изображения).
type FileJob struct {
	UserID string `json:"userId"`
	FileID string `json:"fileId"`
}

// Dispatcher публикует задачи в именованные очереди.
type Dispatcher interface {
	Enqueue(ctx context.Context, queue string, payload any) error
	Close() error
}

// encode сериализует полезную нагрузку задачи в JSON.
func encode(queue string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации задачи %s: %w", queue, err)
	}
	return body, nil
}
