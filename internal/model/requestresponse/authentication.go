package requestresponse

import (
	"time"

	"auth-session-server/internal/model"
)

// LoginRequest : тело запроса на аутентификацию
type LoginRequest struct {
	Email    string `json:"email" example:"user@example.com"`
	Password string `json:"password" example:"P@ssw0rd123"`
}

// LoginResponse : ответ на успешную аутентификацию
type LoginResponse struct {
	Response struct {
		AccessToken  string            `json:"access_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
		RefreshToken string            `json:"refresh_token" example:"vcSi0369y1I62wOpxZFpgZ"`
		ExpiresAt    time.Time         `json:"expires_at"`
		User         model.UserSummary `json:"user"`
	} `json:"response"`
}

// CurrentUserResponse : информация о текущем пользователе
type CurrentUserResponse struct {
	Response struct {
		UserID int64    `json:"user_id" example:"42"`
		Email  string   `json:"email" example:"user@example.com"`
		Roles  []string `json:"roles"`
	} `json:"response"`
}

// RefreshTokenRequest : запрос на обновление пары токенов
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" example:"vcSi0369y1I62wOpxZFpgZ"`
}

// RefreshTokenResponse : ответ на успешный запрос
type RefreshTokenResponse struct {
	Response struct {
		AccessToken  string    `json:"access_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
		RefreshToken string    `json:"refresh_token" example:"vcSi0369y1I62wOpxZFpgZ"`
		ExpiresAt    time.Time `json:"expires_at"`
	} `json:"response"`
}

// LogoutRequest : тело запроса на завершение сессии, токен опционален
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty" example:"vcSi0369y1I62wOpxZFpgZ"`
}

// LogoutResponse : ответ на завершение сессии, всегда успешен
type LogoutResponse struct {
	Response struct {
		LoggedOut bool `json:"logged_out" example:"true"`
	} `json:"response"`
}

// RevokeAllResponse : ответ на отзыв всех сессий пользователя
type RevokeAllResponse struct {
	Response struct {
		RevokedCount int64 `json:"revoked_count" example:"3"`
	} `json:"response"`
}
