// Пакет filestore — хранилище содержимого файлов на локальном диске.
// Каждый файл сохраняется под именем-UUID в корневой директории
// (FM_FOLDER_PATH). Запись атомарна: temp файл → fsync → rename,
// поэтому по итоговому пути никогда не лежит частично записанный файл.
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound — файл содержимого отсутствует или недоступен для чтения.
var ErrNotFound = errors.New("файл содержимого не найден")

// FileStore — управление файлами содержимого на диске.
type FileStore struct {
	dir string
}

// WriteResult — результат записи содержимого.
type WriteResult struct {
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 содержимого, hex
	Checksum string
}

// New создаёт FileStore и при необходимости директорию dir.
func New(dir string) (*FileStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("некорректный путь хранилища %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию хранилища %s: %w", abs, err)
	}
	return &FileStore{dir: abs}, nil
}

// NewPath резервирует абсолютный путь для нового содержимого: <dir>/<uuid>.
// Файл по этому пути не создаётся до вызова Write.
func (fs *FileStore) NewPath() string {
	return filepath.Join(fs.dir, uuid.New().String())
}

// Write записывает данные из reader по пути path с подсчётом SHA-256 на лету.
// При любой ошибке временный файл удаляется, итоговый путь не появляется.
func (fs *FileStore) Write(path string, reader io.Reader) (*WriteResult, error) {
	if !fs.owns(path) {
		return nil, fmt.Errorf("путь %s вне директории хранилища %s", path, fs.dir)
	}
	tmpPath := path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	hasher := sha256.New()
	size, err := io.Copy(f, io.TeeReader(reader, hasher))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &WriteResult{
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open открывает файл содержимого для чтения. Директории и
// отсутствующие файлы дают ErrNotFound. Вызывающий обязан закрыть файл.
func (fs *FileStore) Open(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, 0, fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("ошибка получения информации о файле %s: %w", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return f, info.Size(), nil
}

// Delete удаляет файл содержимого вместе с возможным временным файлом
// прерванной записи. Отсутствующий файл не является ошибкой.
func (fs *FileStore) Delete(path string) error {
	if !fs.owns(path) {
		return fmt.Errorf("путь %s вне директории хранилища %s", path, fs.dir)
	}
	for _, p := range []string{path + ".tmp", path} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("ошибка удаления файла %s: %w", p, err)
		}
	}
	return nil
}

// Exists проверяет существование файла содержимого.
func (fs *FileStore) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Dir возвращает абсолютный путь директории хранилища.
func (fs *FileStore) Dir() string {
	return fs.dir
}

// owns проверяет, что path лежит непосредственно в директории хранилища.
func (fs *FileStore) owns(path string) bool {
	clean := filepath.Clean(path)
	return filepath.Dir(clean) == fs.dir && !strings.HasPrefix(filepath.Base(clean), ".")
}
