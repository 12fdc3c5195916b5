package ports

import (
	"context"

	"auth-session-server/internal/model"

	"github.com/jmoiron/sqlx"
)

type UserRepository interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*model.User, error)
	FindByEmail(ctx context.Context, exec sqlx.ExtContext, email string) (*model.User, error)
	ListRolesForUser(ctx context.Context, exec sqlx.ExtContext, userID int64) ([]model.Role, error)
	GetTokenVersion(ctx context.Context, exec sqlx.ExtContext, userID int64) (int64, error)
	IncrementTokenVersion(ctx context.Context, exec sqlx.ExtContext, userID int64) (int64, error)
	UpdateLastLogin(ctx context.Context, exec sqlx.ExtContext, userID int64) error
	UpdateProfile(ctx context.Context, exec sqlx.ExtContext, user *model.User) error
	UpdatePassword(ctx context.Context, exec sqlx.ExtContext, userID int64, newPasswordHash string) error
}

type UserService interface {
	GetUser(ctx context.Context, id int64) (*model.User, []model.Role, error)
	UpdateProfile(ctx context.Context, id int64, email, fullName string) (*model.User, error)
	ChangePassword(ctx context.Context, id int64, currentPassword, newPassword, userAgent, ipAddress string) (*model.TokensPair, error)
}
