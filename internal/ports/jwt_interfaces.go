package ports

import (
	"context"
	"time"

	"auth-session-server/internal/model"
	"auth-session-server/internal/security"

	"github.com/jmoiron/sqlx"
)

// SessionRepositoryInterface : хранилище refresh-токенов (SQL слой).
// Методы принимают exec, чтобы выполняться как на пуле соединений,
// так и внутри открытой транзакции
type SessionRepositoryInterface interface {
	Create(ctx context.Context, exec sqlx.ExtContext, token *model.RefreshToken) error
	FindActive(ctx context.Context, exec sqlx.ExtContext, token string) (*model.RefreshToken, error)
	Revoke(ctx context.Context, exec sqlx.ExtContext, token string) (bool, error)
	RevokeAllForUser(ctx context.Context, exec sqlx.ExtContext, userID int64) (int64, error)
	BeginTX(ctx context.Context) (*sqlx.Tx, error)
}

type JWTServiceInterface interface {
	IssueAccessToken(user *model.User, roles []string) (string, time.Time, error)
	ValidateJWT(jwtTokenStr string) (*security.Claims, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// VersionCacheInterface : Redis слой, сквозной кэш версий токенов.
// Промах кэша не ошибка, вторым значением возвращается признак попадания.
// Безусловная запись разрешена только пути поднятия версии; прогрев после
// чтения из БД обязан быть условным, иначе значение, прочитанное до
// конкурентного коммита, затрет свежеподнятую версию
type VersionCacheInterface interface {
	GetTokenVersion(ctx context.Context, userID int64) (int64, bool, error)
	SetTokenVersion(ctx context.Context, userID int64, version int64) error
	WarmTokenVersion(ctx context.Context, userID int64, version int64) error
	InvalidateTokenVersion(ctx context.Context, userID int64) error
}
