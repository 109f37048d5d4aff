// Пакет repository — слой доступа к метаданным: пользователи и узлы
// файловой иерархии. Основная реализация — PostgreSQL через pgx,
// чистый SQL без ORM. Альтернативная реализация для MongoDB —
// в подпакете mongorepo, с теми же интерфейсами и ошибками.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/paolo-abarca/holbertonschool-files-manager/internal/domain/model"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — запись уже существует")
)

// UserRepository — хранилище пользователей.
type UserRepository interface {
	// Create вставляет пользователя и заполняет u.ID.
	// Возвращает ErrConflict, если email уже занят.
	Create(ctx context.Context, u *model.User) error
	// GetByID возвращает пользователя по идентификатору.
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByEmail возвращает пользователя по email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// UpdatePasswordHash заменяет хэш пароля (миграция схемы хэширования).
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	// Count возвращает количество пользователей.
	Count(ctx context.Context) (int64, error)
}

// FileRepository — хранилище узлов файловой иерархии.
type FileRepository interface {
	// Create вставляет узел и заполняет n.ID.
	Create(ctx context.Context, n *model.FileNode) error
	// GetByID возвращает узел по идентификатору.
	GetByID(ctx context.Context, id string) (*model.FileNode, error)
	// List возвращает узлы в порядке вставки.
	List(ctx context.Context, filter FileListFilter, limit, offset int) ([]*model.FileNode, error)
	// SetPublic меняет видимость узла владельца и возвращает обновлённый узел.
	// Возвращает ErrNotFound, если узла нет или он принадлежит другому.
	SetPublic(ctx context.Context, ownerID, id string, isPublic bool) (*model.FileNode, error)
	// ExistsByLocalPath проверяет, ссылается ли какой-либо узел на путь содержимого.
	ExistsByLocalPath(ctx context.Context, localPath string) (bool, error)
	// Count возвращает количество узлов.
	Count(ctx context.Context) (int64, error)
}

// FileListFilter — фильтр списка узлов.
type FileListFilter struct {
	// OwnerID — владелец (обязательный)
	OwnerID string
	// Parent — родитель; nil — без фильтра по родителю
	Parent *model.ParentRef
}

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// parseID разбирает UUID идентификатора. Некорректный формат
// неотличим от отсутствующей записи.
func parseID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, ErrNotFound
	}
	return parsed, nil
}
