package ports

import (
	"context"

	"auth-session-server/internal/model"
)

type AuthenticationService interface {
	Login(ctx context.Context, email, password, userAgent, ipAddress string) (*model.LoginResult, error)
	RefreshTokens(ctx context.Context, refreshToken, userAgent, ipAddress string) (*model.TokensPair, error)
	RevokeRefreshToken(ctx context.Context, refreshToken string) (bool, error)
	RevokeAllRefreshTokens(ctx context.Context, userID int64) (int64, error)
	ValidateToken(ctx context.Context, accessToken string) (bool, error)
	CurrentTokenVersion(ctx context.Context, userID int64) (int64, error)
}
