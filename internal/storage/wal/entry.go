// Пакет wal — журнал незавершённых записей содержимого.
// Загрузка файла состоит из двух шагов (запись на диск и вставка
// метаданных); запись журнала создаётся до первого шага и закрывается
// после второго. Запись, оставшаяся pending после сбоя, указывает
// путь возможного файла-сироты для reconciliation.
// Каждая запись — отдельный файл <id>.wal.json в FM_WAL_DIR.
package wal

import (
	"errors"
	"time"
)

// Operation — тип операции, защищаемой журналом.
type Operation string

// OpContentWrite — запись содержимого файла с последующей вставкой метаданных.
const OpContentWrite Operation = "content_write"

// Status — состояние записи журнала.
type Status string

const (
	StatusPending    Status = "pending"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled_back"
)

// ErrNotPending — попытка завершить уже завершённую запись.
var ErrNotPending = errors.New("запись журнала уже завершена")

// Entry — запись журнала.
type Entry struct {
	ID        string    `json:"id"`
	Operation Operation `json:"operation"`
	Status    Status    `json:"status"`
	// LocalPath — абсолютный путь содержимого, которое защищает запись
	LocalPath string `json:"local_path"`
	// OwnerID — владелец загружаемого файла, для диагностики
	OwnerID     string     `json:"owner_id,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Age возвращает возраст записи относительно now.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StartedAt)
}

const fileSuffix = ".wal.json"

func fileName(id string) string {
	return id + fileSuffix
}
