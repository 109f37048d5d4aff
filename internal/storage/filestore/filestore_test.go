package filestore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// TestNew_CreatesDirectory проверяет создание директории хранилища.
func TestNew_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "files_manager")

	fs, err := New(dir)
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}
	if fs.Dir() != dir {
		t.Errorf("ожидался путь %s, получен %s", dir, fs.Dir())
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("директория не создана: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("путь не является директорией")
	}
}

// TestNewPath проверяет формат пути: <dir>/<uuid>.
func TestNewPath(t *testing.T) {
	fs, _ := New(t.TempDir())

	p1, p2 := fs.NewPath(), fs.NewPath()
	if p1 == p2 {
		t.Fatal("пути должны быть уникальными")
	}
	if filepath.Dir(p1) != fs.Dir() {
		t.Errorf("путь %s вне директории %s", p1, fs.Dir())
	}
	if _, err := uuid.Parse(filepath.Base(p1)); err != nil {
		t.Errorf("имя файла должно быть UUID: %s", filepath.Base(p1))
	}
	if fs.Exists(p1) {
		t.Error("NewPath не должен создавать файл")
	}
}

// TestWriteAndOpen проверяет запись с SHA-256 и чтение.
func TestWriteAndOpen(t *testing.T) {
	fs, _ := New(t.TempDir())
	content := []byte("Hello Webstack!\n")
	path := fs.NewPath()

	result, err := fs.Write(path, bytes.NewReader(content))
	if err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}
	if result.Size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), result.Size)
	}
	sum := sha256.Sum256(content)
	if result.Checksum != hex.EncodeToString(sum[:]) {
		t.Errorf("checksum: получено %s", result.Checksum)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("временный файл должен быть удалён после rename")
	}

	f, size, err := fs.Open(path)
	if err != nil {
		t.Fatalf("ошибка открытия: %v", err)
	}
	defer f.Close()
	if size != int64(len(content)) {
		t.Errorf("Open() size = %d", size)
	}
	data, _ := io.ReadAll(f)
	if !bytes.Equal(data, content) {
		t.Errorf("содержимое не совпадает: %q", data)
	}
}

// TestWrite_OutsideDir проверяет отказ записи вне директории хранилища.
func TestWrite_OutsideDir(t *testing.T) {
	fs, _ := New(t.TempDir())
	outside := filepath.Join(t.TempDir(), "x")

	if _, err := fs.Write(outside, strings.NewReader("x")); err == nil {
		t.Error("ожидалась ошибка для пути вне хранилища")
	}
	if _, err := fs.Write(filepath.Join(fs.Dir(), ".wal", "x"), strings.NewReader("x")); err == nil {
		t.Error("ожидалась ошибка для вложенного пути")
	}
}

// failingReader возвращает ошибку после первых байт.
type failingReader struct{ done bool }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, errors.New("обрыв соединения")
	}
	r.done = true
	return copy(p, "partial"), nil
}

// TestWrite_ReaderError проверяет, что при ошибке чтения файл не появляется.
func TestWrite_ReaderError(t *testing.T) {
	fs, _ := New(t.TempDir())
	path := fs.NewPath()

	if _, err := fs.Write(path, &failingReader{}); err == nil {
		t.Fatal("ожидалась ошибка записи")
	}
	if fs.Exists(path) {
		t.Error("итоговый файл не должен существовать")
	}
	entries, _ := os.ReadDir(fs.Dir())
	if len(entries) != 0 {
		t.Errorf("в директории остались файлы: %d", len(entries))
	}
}

// TestOpen_NotFound проверяет ErrNotFound для отсутствующего файла и директории.
func TestOpen_NotFound(t *testing.T) {
	fs, _ := New(t.TempDir())

	if _, _, err := fs.Open(filepath.Join(fs.Dir(), "missing")); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
	if _, _, err := fs.Open(fs.Dir()); !errors.Is(err, ErrNotFound) {
		t.Errorf("директория: ожидалась ErrNotFound, получено %v", err)
	}
}

// TestDelete проверяет удаление и идемпотентность.
func TestDelete(t *testing.T) {
	fs, _ := New(t.TempDir())
	path := fs.NewPath()
	if _, err := fs.Write(path, strings.NewReader("data")); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	if err := fs.Delete(path); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if fs.Exists(path) {
		t.Error("файл должен быть удалён")
	}
	if err := fs.Delete(path); err != nil {
		t.Errorf("повторное удаление не должно возвращать ошибку: %v", err)
	}
}

// TestDelete_RemovesPartial проверяет удаление временного файла прерванной записи.
func TestDelete_RemovesPartial(t *testing.T) {
	fs, _ := New(t.TempDir())
	path := fs.NewPath()
	if err := os.WriteFile(path+".tmp", []byte("partial"), 0o640); err != nil {
		t.Fatal(err)
	}

	if err := fs.Delete(path); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("временный файл должен быть удалён")
	}
}
