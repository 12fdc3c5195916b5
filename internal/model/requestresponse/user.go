package requestresponse

import "time"

// ErrorDetail : детальная информация об ошибке
type ErrorDetail struct {
	Code int    `json:"code" example:"400"`
	Text string `json:"text" example:"for example: invalid login or password"`
}

// ErrorResponse : стандартная структура ошибки
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// UserResponse : успешный ответ с данными пользователя
type UserResponse struct {
	Data struct {
		ID          int64      `json:"id" example:"42"`
		Email       string     `json:"email" example:"user@example.com"`
		FullName    string     `json:"full_name" example:"Ivan Petrov"`
		Active      bool       `json:"active" example:"true"`
		LastLoginAt *time.Time `json:"last_login_at,omitempty"`
		Roles       []string   `json:"roles"`
	} `json:"data"`
}

// UpdateProfileRequest : тело запроса на обновление профиля
type UpdateProfileRequest struct {
	Email    string `json:"email" example:"new@example.com"`
	FullName string `json:"full_name" example:"Ivan Petrov"`
}

// UpdateProfileResponse : успешный ответ
type UpdateProfileResponse struct {
	Response struct {
		Email    string `json:"email" example:"new@example.com"`
		FullName string `json:"full_name" example:"Ivan Petrov"`
	} `json:"response"`
}

// ChangePasswordRequest : тело запроса на смену пароля
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" example:"OldP@ssw0rd"`
	NewPassword     string `json:"new_password" example:"P@ssw0rd123"`
}

// ChangePasswordResponse : успешный ответ, отдает свежую пару токенов,
// так как все прежние сессии отзываются
type ChangePasswordResponse struct {
	Response struct {
		Updated      bool      `json:"updated" example:"true"`
		AccessToken  string    `json:"access_token"`
		RefreshToken string    `json:"refresh_token"`
		ExpiresAt    time.Time `json:"expires_at"`
	} `json:"response"`
}
