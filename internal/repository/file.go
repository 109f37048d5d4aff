package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/paolo-abarca/holbertonschool-files-manager/internal/domain/model"
)

// fileColumns — колонки узла в порядке сканирования scanFileNode.
const fileColumns = `id::text, user_id::text, name, type, is_public, parent_id::text, local_path`

// fileRepo — реализация FileRepository для PostgreSQL.
// Порядок выдачи — колонка seq (BIGSERIAL, монотонная последовательность вставки).
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий узлов иерархии.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

func (r *fileRepo) Create(ctx context.Context, n *model.FileNode) error {
	ownerID, err := uuid.Parse(n.UserID)
	if err != nil {
		return fmt.Errorf("некорректный идентификатор владельца %q: %w", n.UserID, err)
	}

	var parentID *uuid.UUID
	if !n.ParentID.IsRoot() {
		pid, err := parseID(n.ParentID.ID())
		if err != nil {
			return fmt.Errorf("родитель %s: %w", n.ParentID, err)
		}
		parentID = &pid
	}

	var localPath *string
	if n.Content != nil {
		localPath = &n.Content.LocalPath
	}

	query := `
		INSERT INTO files (user_id, name, type, is_public, parent_id, local_path)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id::text`

	err = r.db.QueryRow(ctx, query,
		ownerID, n.Name, string(n.Type), n.IsPublic, parentID, localPath,
	).Scan(&n.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: путь содержимого уже используется", ErrConflict)
		}
		return fmt.Errorf("ошибка создания узла: %w", err)
	}
	return nil
}

func (r *fileRepo) GetByID(ctx context.Context, id string) (*model.FileNode, error) {
	fid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`
	return scanFileNode(r.db.QueryRow(ctx, query, fid))
}

func (r *fileRepo) List(ctx context.Context, filter FileListFilter, limit, offset int) ([]*model.FileNode, error) {
	ownerID, err := uuid.Parse(filter.OwnerID)
	if err != nil {
		return []*model.FileNode{}, nil
	}

	where := `WHERE user_id = $1`
	args := []any{ownerID}

	if filter.Parent != nil {
		if filter.Parent.IsRoot() {
			where += ` AND parent_id IS NULL`
		} else {
			pid, err := parseID(filter.Parent.ID())
			if err != nil {
				return []*model.FileNode{}, nil
			}
			where += ` AND parent_id = $2`
			args = append(args, pid)
		}
	}

	argNum := len(args) + 1
	query := fmt.Sprintf(`SELECT %s FROM files %s ORDER BY seq ASC LIMIT $%d OFFSET $%d`,
		fileColumns, where, argNum, argNum+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка узлов: %w", err)
	}
	defer rows.Close()

	nodes := make([]*model.FileNode, 0, limit)
	for rows.Next() {
		n, err := scanFileNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения списка узлов: %w", err)
	}
	return nodes, nil
}

func (r *fileRepo) SetPublic(ctx context.Context, ownerID, id string, isPublic bool) (*model.FileNode, error) {
	fid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	oid, err := parseID(ownerID)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE files SET is_public = $3
		WHERE id = $1 AND user_id = $2
		RETURNING ` + fileColumns

	return scanFileNode(r.db.QueryRow(ctx, query, fid, oid, isPublic))
}

func (r *fileRepo) ExistsByLocalPath(ctx context.Context, localPath string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM files WHERE local_path = $1)`, localPath).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки пути содержимого: %w", err)
	}
	return exists, nil
}

func (r *fileRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта узлов: %w", err)
	}
	return n, nil
}

// scanFileNode собирает узел из строки результата. Тип и наличие
// содержимого согласованы ограничением files_local_path_by_type.
func scanFileNode(row pgx.Row) (*model.FileNode, error) {
	var (
		n         model.FileNode
		fileType  string
		parentID  *string
		localPath *string
	)
	err := row.Scan(&n.ID, &n.UserID, &n.Name, &fileType, &n.IsPublic, &parentID, &localPath)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения узла: %w", err)
	}

	t, ok := model.ParseFileType(fileType)
	if !ok {
		return nil, fmt.Errorf("узел %s: неизвестный тип %q", n.ID, fileType)
	}
	n.Type = t

	if parentID != nil {
		n.ParentID = model.ParseParentRef(*parentID)
	}
	if localPath != nil && t.HasContent() {
		n.Content = &model.Content{LocalPath: *localPath}
	}
	return &n, nil
}
