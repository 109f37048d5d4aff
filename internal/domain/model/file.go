package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// FileType — тип узла иерархии. Закрытое множество: folder, file, image.
type FileType string

const (
	// TypeFolder — папка, не имеет содержимого
	TypeFolder FileType = "folder"
	// TypeFile — произвольный файл с содержимым
	TypeFile FileType = "file"
	// TypeImage — изображение; для него генерируются производные размеры
	TypeImage FileType = "image"
)

// ParseFileType преобразует строку в FileType.
// Возвращает false для значений вне множества folder, file, image.
func ParseFileType(s string) (FileType, bool) {
	switch t := FileType(s); t {
	case TypeFolder, TypeFile, TypeImage:
		return t, true
	default:
		return "", false
	}
}

// HasContent сообщает, хранит ли узел этого типа содержимое на диске.
func (t FileType) HasContent() bool {
	return t == TypeFile || t == TypeImage
}

// HasRenditions сообщает, создаёт ли обработчик очереди производные размеры.
func (t FileType) HasRenditions() bool {
	return t == TypeImage
}

// ParentRef — ссылка на родительскую папку.
// Нулевое значение означает корень и кодируется в JSON как 0.
type ParentRef string

// RootParent — корень иерархии.
const RootParent ParentRef = ""

// IsRoot сообщает, указывает ли ссылка на корень.
func (p ParentRef) IsRoot() bool {
	return p == RootParent
}

// ID возвращает идентификатор родителя (пустую строку для корня).
func (p ParentRef) ID() string {
	return string(p)
}

// ParseParentRef разбирает значение из query-параметра или хранилища.
// "", "0" — корень.
func ParseParentRef(s string) ParentRef {
	if s == "" || s == "0" {
		return RootParent
	}
	return ParentRef(s)
}

// MarshalJSON кодирует корень как 0, остальные значения как строку.
func (p ParentRef) MarshalJSON() ([]byte, error) {
	if p.IsRoot() {
		return []byte("0"), nil
	}
	return json.Marshal(string(p))
}

// UnmarshalJSON принимает 0, "0", null или строковый идентификатор.
func (p *ParentRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = RootParent
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = ParseParentRef(s)
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("parentId: ожидалось число или строка, получено %s", data)
	}
	*p = ParseParentRef(strconv.FormatInt(n, 10))
	return nil
}

// Content — ссылка на содержимое файла на локальном диске.
type Content struct {
	// LocalPath — абсолютный путь базовой версии: <FOLDER_PATH>/<uuid>
	LocalPath string
}

// VariantPath возвращает путь к версии содержимого.
// size == 0 — базовая версия, иначе производная <localPath>_<size>.
func (c Content) VariantPath(size int) string {
	if size == 0 {
		return c.LocalPath
	}
	return c.LocalPath + "_" + strconv.Itoa(size)
}

// ErrContentForFolder — попытка создать папку с содержимым или файл без него.
var ErrContentForFolder = errors.New("содержимое допустимо только для файлов и изображений")

// FileNode — узел иерархии: папка либо файл/изображение с содержимым.
// Content заполнен ровно для типов с HasContent() == true.
type FileNode struct {
	ID       string
	UserID   string
	Name     string
	Type     FileType
	IsPublic bool
	ParentID ParentRef
	Content  *Content
}

// NewFolder создаёт узел-папку без содержимого.
func NewFolder(ownerID, name string, isPublic bool, parent ParentRef) *FileNode {
	return &FileNode{
		UserID:   ownerID,
		Name:     name,
		Type:     TypeFolder,
		IsPublic: isPublic,
		ParentID: parent,
	}
}

// NewContentNode создаёт узел file или image со ссылкой на содержимое.
func NewContentNode(ownerID, name string, t FileType, isPublic bool, parent ParentRef, localPath string) (*FileNode, error) {
	if !t.HasContent() || localPath == "" {
		return nil, ErrContentForFolder
	}
	return &FileNode{
		UserID:   ownerID,
		Name:     name,
		Type:     t,
		IsPublic: isPublic,
		ParentID: parent,
		Content:  &Content{LocalPath: localPath},
	}, nil
}

// IsFolder сообщает, является ли узел папкой.
func (n *FileNode) IsFolder() bool {
	return n.Type == TypeFolder
}

// LocalPath возвращает путь базовой версии или пустую строку для папок.
func (n *FileNode) LocalPath() string {
	if n.Content == nil {
		return ""
	}
	return n.Content.LocalPath
}

// VisibleTo сообщает, может ли запрашивающий читать содержимое узла.
// requesterID пуст для неаутентифицированных запросов.
func (n *FileNode) VisibleTo(requesterID string) bool {
	return n.IsPublic || (requesterID != "" && requesterID == n.UserID)
}

// FileView — публичная проекция узла. LocalPath наружу не отдаётся.
type FileView struct {
	ID       string    `json:"id"`
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	Type     FileType  `json:"type"`
	IsPublic bool      `json:"isPublic"`
	ParentID ParentRef `json:"parentId"`
}

// View возвращает публичную проекцию узла.
func (n *FileNode) View() FileView {
	return FileView{
		ID:       n.ID,
		UserID:   n.UserID,
		Name:     n.Name,
		Type:     n.Type,
		IsPublic: n.IsPublic,
		ParentID: n.ParentID,
	}
}

// Views возвращает проекции списка узлов. Для пустого списка — пустой срез, не nil.
func Views(nodes []*FileNode) []FileView {
	views := make([]FileView, 0, len(nodes))
	for _, n := range nodes {
		views = append(views, n.View())
	}
	return views
}
