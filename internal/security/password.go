package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost : консервативный фактор стоимости хэширования
const BcryptCost = 12

// HashPassword хэширует пароль. Соль и стоимость bcrypt встраивает в саму строку хэша
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("не удалось создать хэш пароля: %w", err)
	}
	return string(hash), nil
}

// CheckPassword сверяет пароль с хэшем.
// На битый или пустой хэш возвращает false, никогда не паникует
func CheckPassword(password string, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
