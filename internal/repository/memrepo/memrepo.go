// Пакет memrepo — реализация репозиториев в памяти процесса.
// Используется тестами сервисов и HTTP-слоя вместо PostgreSQL и MongoDB.
// Поддерживает внедрение ошибок для проверки путей отката.
package memrepo

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/paolo-abarca/holbertonschool-files-manager/internal/domain/model"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/repository"
)

// Store — общее хранилище пользователей и узлов.
type Store struct {
	mu    sync.Mutex
	users []*model.User
	files []*model.FileNode

	// FailFileCreate — если задана, Create узла с содержимым возвращает её.
	FailFileCreate error
	// FailPing — если задана, Ping возвращает её.
	FailPing error
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{}
}

// Users возвращает репозиторий пользователей.
func (s *Store) Users() repository.UserRepository {
	return userRepo{s}
}

// Files возвращает репозиторий узлов.
func (s *Store) Files() repository.FileRepository {
	return fileRepo{s}
}

// Ping проверяет доступность хранилища.
func (s *Store) Ping(context.Context) error {
	return s.FailPing
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return repository.ErrConflict
		}
	}
	u.ID = uuid.NewString()
	c := *u
	r.s.users = append(r.s.users, &c)
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.ID == id })
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Email == email })
}

func (r userRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.ID == id {
			u.PasswordHash = hash
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r userRepo) Count(context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.users)), nil
}

func (r userRepo) find(match func(*model.User) bool) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fileRepo struct{ s *Store }

// copyNode возвращает независимую копию узла.
func copyNode(n *model.FileNode) *model.FileNode {
	c := *n
	if n.Content != nil {
		content := *n.Content
		c.Content = &content
	}
	return &c
}

func (r fileRepo) Create(_ context.Context, n *model.FileNode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailFileCreate != nil && n.Content != nil {
		return r.s.FailFileCreate
	}
	n.ID = uuid.NewString()
	r.s.files = append(r.s.files, copyNode(n))
	return nil
}

func (r fileRepo) GetByID(_ context.Context, id string) (*model.FileNode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if n := r.byID(id); n != nil {
		return copyNode(n), nil
	}
	return nil, repository.ErrNotFound
}

func (r fileRepo) List(_ context.Context, f repository.FileListFilter, limit, offset int) ([]*model.FileNode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []*model.FileNode{}
	skipped := 0
	for _, n := range r.s.files {
		if n.UserID != f.OwnerID || (f.Parent != nil && n.ParentID != *f.Parent) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, copyNode(n))
	}
	return out, nil
}

func (r fileRepo) SetPublic(_ context.Context, ownerID, id string, isPublic bool) (*model.FileNode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := r.byID(id)
	if n == nil || n.UserID != ownerID {
		return nil, repository.ErrNotFound
	}
	n.IsPublic = isPublic
	return copyNode(n), nil
}

func (r fileRepo) ExistsByLocalPath(_ context.Context, localPath string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range r.s.files {
		if n.LocalPath() == localPath {
			return true, nil
		}
	}
	return false, nil
}

func (r fileRepo) Count(context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.files)), nil
}

func (r fileRepo) byID(id string) *model.FileNode {
	for _, n := range r.s.files {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// ErrInjected — ошибка для внедрения в тестах.
var ErrInjected = errors.New("внедрённая ошибка")
