package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/paolo-abarca/holbertonschool-files-manager/internal/domain/model"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/jobs"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/repository"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/storage/filestore"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/storage/wal"
)

// PageSize — фиксированный размер страницы списка узлов.
const PageSize = 20

// FileService — иерархия файлов и папок пользователя и их содержимое.
type FileService struct {
	files    repository.FileRepository
	store    *filestore.FileStore
	wal      *wal.WAL
	jobs     jobs.Dispatcher
	validate *validator.Validate
	logger   *slog.Logger
}

// NewFileService создаёт сервис иерархии файлов. jobs может быть nil.
func NewFileService(
	files repository.FileRepository,
	store *filestore.FileStore,
	w *wal.WAL,
	dispatcher jobs.Dispatcher,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		files:    files,
		store:    store,
		wal:      w,
		jobs:     dispatcher,
		validate: newValidator(),
		logger:   logger.With(slog.String("component", "files")),
	}
}

// CreateParams — входные данные создания узла.
// Порядок полей задаёт порядок проверок: name → type → data.
type CreateParams struct {
	OwnerID  string          `json:"-" validate:"-"`
	Name     string          `json:"name" validate:"required"`
	Type     string          `json:"type" validate:"required,oneof=folder file image"`
	IsPublic bool            `json:"isPublic"`
	ParentID model.ParentRef `json:"parentId" validate:"-"`
	Data     string          `json:"data" validate:"required_unless=Type folder"`
}

// Create проверяет входные данные и создаёт папку либо файл с содержимым.
func (s *FileService) Create(ctx context.Context, p CreateParams) (*model.FileNode, error) {
	if err := s.validate.Struct(p); err != nil {
		return nil, firstMissing(err)
	}
	fileType, _ := model.ParseFileType(p.Type)

	var data []byte
	if fileType.HasContent() {
		decoded, err := base64.StdEncoding.DecodeString(p.Data)
		if err != nil {
			return nil, missing("data")
		}
		data = decoded
	}

	if err := s.checkParent(ctx, p.OwnerID, p.ParentID); err != nil {
		return nil, err
	}

	var (
		node *model.FileNode
		err  error
	)
	if fileType.HasContent() {
		node, err = s.createWithContent(ctx, p, fileType, data)
	} else {
		node = model.NewFolder(p.OwnerID, p.Name, p.IsPublic, p.ParentID)
		err = s.files.Create(ctx, node)
	}
	if err != nil {
		return nil, err
	}

	filesCreatedTotal.WithLabelValues(string(node.Type)).Inc()
	s.logger.Info("Узел создан",
		slog.String("file_id", node.ID),
		slog.String("user_id", node.UserID),
		slog.String("type", string(node.Type)),
	)

	if node.Type.HasContent() {
		enqueue(ctx, s.jobs, jobs.QueueFile, jobs.FileJob{UserID: node.UserID, FileID: node.ID}, s.logger)
	}
	return node, nil
}

// checkParent проверяет, что родитель существует, принадлежит владельцу и является папкой.
func (s *FileService) checkParent(ctx context.Context, ownerID string, parent model.ParentRef) error {
	if parent.IsRoot() {
		return nil
	}
	p, err := s.files.GetByID(ctx, parent.ID())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrParentNotFound
		}
		return fmt.Errorf("ошибка получения родителя: %w", err)
	}
	if p.UserID != ownerID {
		return ErrParentNotFound
	}
	if !p.IsFolder() {
		return ErrParentNotFolder
	}
	return nil
}

// createWithContent записывает содержимое на диск и вставляет метаданные.
// Запись журнала держится открытой между шагами; при ошибке вставки
// файл удаляется, а запись откатывается.
func (s *FileService) createWithContent(ctx context.Context, p CreateParams, t model.FileType, data []byte) (*model.FileNode, error) {
	localPath := s.store.NewPath()

	entry, err := s.wal.StartTransaction(wal.OpContentWrite, localPath, p.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка журнала записи: %w", err)
	}

	// rollback удаляет содержимое и закрывает запись журнала
	rollback := func(reason string) {
		if err := s.store.Delete(localPath); err != nil {
			s.logger.Error("Не удалось удалить содержимое при откате",
				slog.String("local_path", localPath),
				slog.String("error", err.Error()),
			)
			// Запись остаётся pending и будет обработана reconciliation
			return
		}
		if err := s.wal.Rollback(entry.ID); err != nil {
			s.logger.Warn("Не удалось откатить запись WAL",
				slog.String("tx_id", entry.ID),
				slog.String("error", err.Error()),
			)
		}
		s.logger.Warn("Загрузка отменена",
			slog.String("tx_id", entry.ID),
			slog.String("reason", reason),
		)
	}

	result, err := s.store.Write(localPath, bytes.NewReader(data))
	if err != nil {
		rollback("content_write")
		return nil, fmt.Errorf("ошибка записи содержимого: %w", err)
	}
	contentBytesWrittenTotal.Add(float64(result.Size))

	node, err := model.NewContentNode(p.OwnerID, p.Name, t, p.IsPublic, p.ParentID, localPath)
	if err != nil {
		rollback("invalid_node")
		return nil, err
	}
	if err := s.files.Create(ctx, node); err != nil {
		rollback("metadata_insert")
		return nil, fmt.Errorf("ошибка сохранения метаданных: %w", err)
	}

	if err := s.wal.Commit(entry.ID); err != nil {
		// Метаданные сохранены: reconciliation найдёт ссылку и закоммитит запись
		s.logger.Warn("Не удалось закоммитить запись WAL",
			slog.String("tx_id", entry.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Debug("Содержимое записано",
		slog.String("local_path", localPath),
		slog.Int64("size", result.Size),
		slog.String("sha256", result.Checksum),
	)
	return node, nil
}

// Get возвращает узел владельца. Чужой или отсутствующий узел — ErrNotFound.
func (s *FileService) Get(ctx context.Context, ownerID, fileID string) (*model.FileNode, error) {
	n, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения узла: %w", err)
	}
	if n.UserID != ownerID {
		return nil, ErrNotFound
	}
	return n, nil
}

// List возвращает страницу узлов владельца в порядке вставки.
// Корневой parent — все узлы владельца. Для некорректного родителя
// (отсутствует, чужой, не папка) возвращается пустой список.
func (s *FileService) List(ctx context.Context, ownerID string, parent model.ParentRef, page int) ([]*model.FileNode, error) {
	if page < 0 {
		page = 0
	}
	// Смещение page*PageSize не должно переполнять int: такие страницы заведомо пусты
	if page > math.MaxInt/PageSize {
		return []*model.FileNode{}, nil
	}

	filter := repository.FileListFilter{OwnerID: ownerID}
	if !parent.IsRoot() {
		if err := s.checkParent(ctx, ownerID, parent); err != nil {
			if errors.Is(err, ErrParentNotFound) || errors.Is(err, ErrParentNotFolder) {
				return []*model.FileNode{}, nil
			}
			return nil, err
		}
		filter.Parent = &parent
	}

	nodes, err := s.files.List(ctx, filter, PageSize, page*PageSize)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка: %w", err)
	}
	return nodes, nil
}

// SetVisibility устанавливает флаг isPublic узла владельца. Идемпотентна.
func (s *FileService) SetVisibility(ctx context.Context, ownerID, fileID string, isPublic bool) (*model.FileNode, error) {
	n, err := s.files.SetPublic(ctx, ownerID, fileID, isPublic)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка изменения видимости: %w", err)
	}
	return n, nil
}

// ContentReader — открытое содержимое файла. Вызывающий обязан закрыть Reader.
type ContentReader struct {
	Reader      io.ReadCloser
	ContentType string
	Size        int64
	Name        string
}

// ReadContent открывает содержимое узла или его производной версии size.
// Невидимый запрашивающему узел неотличим от отсутствующего.
func (s *FileService) ReadContent(ctx context.Context, requesterID, fileID string, size int) (*ContentReader, error) {
	if size < 0 {
		return nil, ErrNotFound
	}

	n, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения узла: %w", err)
	}
	if !n.VisibleTo(requesterID) {
		return nil, ErrNotFound
	}
	if n.IsFolder() || n.Content == nil {
		return nil, ErrFolderContent
	}

	f, fileSize, err := s.store.Open(n.Content.VariantPath(size))
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения содержимого: %w", err)
	}

	return &ContentReader{
		Reader:      f,
		ContentType: contentType(n.Name),
		Size:        fileSize,
		Name:        n.Name,
	}, nil
}

// contentType определяет MIME-тип по расширению имени.
func contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
