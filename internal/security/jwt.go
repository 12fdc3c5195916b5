package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"auth-session-server/config"
	"auth-session-server/internal/model"
	"auth-session-server/internal/util"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const (
	UserContextKey contextKey = "user"

	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour

	// refreshTokenBytes : 64 байта энтропии, токен чистая "капабилити",
	// личность восстанавливается только поиском в хранилище сессий
	refreshTokenBytes = 64

	tokenIssuer = "auth-session-server"
)

// Claims : состав access-токена. TokenVersion указатель, а не число:
// у токенов, выданных до появления версионирования, клейма нет вообще,
// и его отсутствие трактуется как версия 0, а не как "доверять всегда"
type Claims struct {
	UserID       int64    `json:"user_id"`
	Email        string   `json:"email,omitempty"`
	FullName     string   `json:"full_name,omitempty"`
	Roles        []string `json:"roles,omitempty"`
	TokenVersion *int64   `json:"token_version,omitempty"`
	IsAdmin      bool     `json:"is_admin,omitempty"`
	jwt.RegisteredClaims
}

// EffectiveTokenVersion : отсутствующая клейма версии эквивалентна нулевой
func (c *Claims) EffectiveTokenVersion() int64 {
	if c.TokenVersion == nil {
		return 0
	}
	return *c.TokenVersion
}

type JWTService struct {
	*config.JWTConfig
}

func NewJWTService(cfg *config.JWTConfig) *JWTService {
	return &JWTService{cfg}
}

// IssueAccessToken подписывает access-токен с jti и снимком текущей версии
// пользователя. После выдачи claims неизменяемы, единственный способ отозвать
// токен до истечения срока - поднять версию на сервере
func (service *JWTService) IssueAccessToken(user *model.User, roles []string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(service.AccessTTL())

	version := user.TokenVersion
	claims := Claims{
		UserID:       user.ID,
		Email:        user.Email,
		FullName:     user.FullName,
		Roles:        roles,
		TokenVersion: &version,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	jwtToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := jwtToken.SignedString([]byte(service.SecretKey))
	if err != nil {
		return "", time.Time{}, util.LogError("ошибка подписи токена", err)
	}

	return accessToken, expiresAt, nil
}

// GenerateRefreshToken возвращает непрозрачную случайную строку без каких-либо
// встроенных claims
func GenerateRefreshToken() (string, error) {
	tokenBytes := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", util.LogError("ошибка генерации refresh токена", err)
	}
	return base64.RawURLEncoding.EncodeToString(tokenBytes), nil
}

// ValidateJWT проверяет подпись и срок действия access-токена.
// Токен с любым алгоритмом, кроме HS256, отклоняется, даже с верной подписью
func (service *JWTService) ValidateJWT(jwtTokenStr string) (*Claims, error) {
	var claims = &Claims{}

	jwtToken, err := jwt.ParseWithClaims(jwtTokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Header["alg"] != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("неверный способ подписи токена: %v", token.Header["alg"])
		}
		return []byte(service.SecretKey), nil
	})

	if err != nil {
		return nil, fmt.Errorf("невалидный токен: %w", err)
	}
	if !jwtToken.Valid {
		return nil, fmt.Errorf("невалидный токен")
	}

	return claims, nil
}

// AccessTTL : срок жизни access-токена, по умолчанию 15 минут
func (service *JWTService) AccessTTL() time.Duration {
	if d, err := time.ParseDuration(service.AccessTokenTTL); err == nil && d > 0 {
		return d
	}
	return defaultAccessTokenTTL
}

// RefreshTTL : срок жизни refresh-токена, по умолчанию 7 дней
func (service *JWTService) RefreshTTL() time.Duration {
	if d, err := time.ParseDuration(service.RefreshTokenTTL); err == nil && d > 0 {
		return d
	}
	return defaultRefreshTokenTTL
}
