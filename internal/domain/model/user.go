// Пакет model — доменные модели Files Manager: пользователи и узлы
// файловой иерархии (папки, файлы, изображения).
package model

// User — зарегистрированный пользователь.
type User struct {
	// ID — идентификатор, назначенный хранилищем метаданных
	ID string
	// Email — уникальный адрес пользователя
	Email string
	// PasswordHash — хэш пароля (формат зависит от схемы, см. service.PasswordHasher)
	PasswordHash string
}

// UserView — публичное представление пользователя в API.
type UserView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// View возвращает публичное представление без хэша пароля.
func (u *User) View() UserView {
	return UserView{ID: u.ID, Email: u.Email}
}
