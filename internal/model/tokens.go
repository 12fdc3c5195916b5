package model

import "time"

type RefreshToken struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Token     string    `db:"token"`
	ExpireAt  time.Time `db:"expire_at"`
	Revoked   bool      `db:"revoked"`
	UserAgent string    `db:"user_agent"`
	IpAddress string    `db:"ip_address"`
	CreatedAt time.Time `db:"created_at"`
}

// Active сообщает, можно ли ещё обменять токен на новую пару
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && t.ExpireAt.After(now)
}

// TokensPair содержит пару access и refresh токенов
// swagger:model
type TokensPair struct {
	// Access токен (JWT)
	// example: eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9...
	AccessToken string `json:"access_token"`

	// Refresh токен (для получения новой пары)
	// example: vcSi0369y1I62wOpxZFpgZ...
	RefreshToken string `json:"refresh_token"`

	// Срок действия access токена
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginResult : пара токенов вместе с краткой информацией о пользователе
type LoginResult struct {
	Tokens TokensPair
	User   UserSummary
}
