package service

import (
	"crypto/sha1" //nolint:gosec // формат хэшей существующих пользователей
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/paolo-abarca/holbertonschool-files-manager/internal/config"
)

// PasswordHasher хэширует и проверяет пароли.
// Хэш sha1 — 40 hex-символов без соли, bcrypt — строка с префиксом $2.
// Verify распознаёт оба формата независимо от схемы для новых хэшей.
type PasswordHasher struct {
	scheme string
	cost   int
}

// NewPasswordHasher создаёт hasher для схемы config.PasswordSHA1 или config.PasswordBcrypt.
func NewPasswordHasher(scheme string) *PasswordHasher {
	return &PasswordHasher{scheme: scheme, cost: bcrypt.DefaultCost}
}

// Hash возвращает хэш пароля по текущей схеме.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if h.scheme == config.PasswordBcrypt {
		b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
		if err != nil {
			return "", fmt.Errorf("ошибка хэширования пароля: %w", err)
		}
		return string(b), nil
	}
	return sha1Hex(password), nil
}

// Verify сравнивает пароль с сохранённым хэшем любого поддерживаемого формата.
func (h *PasswordHasher) Verify(hash, password string) bool {
	if isBcrypt(hash) {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(hash)), []byte(sha1Hex(password))) == 1
}

// NeedsUpgrade сообщает, что хэш записан не текущей схемой и его стоит
// перезаписать после успешного входа. Понижение bcrypt → sha1 не выполняется.
func (h *PasswordHasher) NeedsUpgrade(hash string) bool {
	return h.scheme == config.PasswordBcrypt && !isBcrypt(hash)
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2")
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s)) //nolint:gosec // см. комментарий к импорту
	return hex.EncodeToString(sum[:])
}
