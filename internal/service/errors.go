// Пакет service — бизнес-логика Files Manager: сессии и пользователи,
// иерархия файлов, сверка загрузок, статус хранилищ.
package service

import (
	"errors"
	"fmt"
)

// Ошибки сервисов. Сообщения совпадают с текстом, который видит клиент.
var (
	ErrMissingField        = errors.New("missing field")
	ErrConflict            = errors.New("Already exist")
	ErrUnauthorized        = errors.New("Unauthorized")
	ErrNotFound            = errors.New("Not found")
	ErrParentNotFound      = errors.New("Parent not found")
	ErrParentNotFolder     = errors.New("Parent is not a folder")
	ErrFolderContent       = errors.New("A folder doesn't have content")
	ErrReconcileInProgress = errors.New("reconciliation already in progress")
)

// ValidationError — ошибка входных данных с клиентским сообщением.
// Оборачивает ErrMissingField.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrMissingField
}

// missing возвращает ValidationError вида "Missing <field>".
func missing(field string) error {
	return &ValidationError{Message: fmt.Sprintf("Missing %s", field)}
}
