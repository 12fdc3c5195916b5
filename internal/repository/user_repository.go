package repository

import (
	"context"
	"database/sql"
	"errors"

	"auth-session-server/config"
	"auth-session-server/internal/model"
	"auth-session-server/internal/util"

	"github.com/jmoiron/sqlx"
)

type UserRepository struct {
	*config.Database
}

func NewUserRepository(database *config.Database) *UserRepository {
	return &UserRepository{database}
}

// FindByID : ищет пользователя по id
func (r *UserRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*model.User, error) {
	query := `SELECT id, email, full_name, password_hash, active, token_version, last_login_at, created_at
				FROM users WHERE id = $1`
	var user model.User
	err := sqlx.GetContext(ctx, exec, &user, query, id)
	if err != nil {
		return nil, util.LogError("[UserRepo] не удалось найти пользователя в БД", err)
	}
	return &user, nil
}

// FindByEmail : ищет пользователя по email
func (r *UserRepository) FindByEmail(ctx context.Context, exec sqlx.ExtContext, email string) (*model.User, error) {
	query := `SELECT id, email, full_name, password_hash, active, token_version, last_login_at, created_at
				FROM users WHERE email = $1`
	var user model.User
	err := sqlx.GetContext(ctx, exec, &user, query, email)
	if err != nil {
		return nil, util.LogError("[UserRepo] не удалось найти пользователя по email", err)
	}
	return &user, nil
}

// ListRolesForUser : роли пользователя; назначаются вне этого сервиса,
// здесь только читаются для выпуска access-токена
func (r *UserRepository) ListRolesForUser(ctx context.Context, exec sqlx.ExtContext, userID int64) ([]model.Role, error) {
	query := `SELECT r.id, r.name, r.description
				FROM roles r
				JOIN user_roles ur ON ur.role_id = r.id
				WHERE ur.user_id = $1
				ORDER BY r.name`

	var roles []model.Role
	if err := sqlx.SelectContext(ctx, exec, &roles, query, userID); err != nil {
		return nil, util.LogError("[UserRepo] не удалось получить роли пользователя", err)
	}
	return roles, nil
}

// GetTokenVersion : точечное чтение текущей версии токенов пользователя.
// Единственный поход в БД на пути проверки запроса
func (r *UserRepository) GetTokenVersion(ctx context.Context, exec sqlx.ExtContext, userID int64) (int64, error) {
	query := `SELECT token_version FROM users WHERE id = $1 AND active = TRUE`

	var version int64
	err := sqlx.GetContext(ctx, exec, &version, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, util.LogError("[UserRepo] пользователь не найден или деактивирован", err)
		}
		return 0, util.LogError("[UserRepo] не удалось получить версию токенов", err)
	}
	return version, nil
}

// IncrementTokenVersion атомарно поднимает версию токенов и возвращает новую.
// Инкремент выполняется на стороне БД, без чтения-изменения-записи в памяти,
// чтобы конкурирующие отзывы не теряли обновления
func (r *UserRepository) IncrementTokenVersion(ctx context.Context, exec sqlx.ExtContext, userID int64) (int64, error) {
	query := `UPDATE users SET token_version = token_version + 1 WHERE id = $1 RETURNING token_version`

	var version int64
	err := sqlx.GetContext(ctx, exec, &version, query, userID)
	if err != nil {
		return 0, util.LogError("[UserRepo] не удалось поднять версию токенов", err)
	}
	return version, nil
}

// UpdateLastLogin : отметка времени последнего входа
func (r *UserRepository) UpdateLastLogin(ctx context.Context, exec sqlx.ExtContext, userID int64) error {
	query := `UPDATE users SET last_login_at = NOW() WHERE id = $1`
	if _, err := exec.ExecContext(ctx, query, userID); err != nil {
		return util.LogError("[UserRepo] не удалось обновить время входа", err)
	}
	return nil
}

// UpdateProfile : обновляет email и имя
func (r *UserRepository) UpdateProfile(ctx context.Context, exec sqlx.ExtContext, user *model.User) error {
	query := `UPDATE users SET email = $2, full_name = $3 WHERE id = $1`
	if _, err := exec.ExecContext(ctx, query, user.ID, user.Email, user.FullName); err != nil {
		return util.LogError("[UserRepo] не удалось обновить профиль", err)
	}
	return nil
}

// UpdatePassword : меняет хэш пароля пользователя
func (r *UserRepository) UpdatePassword(ctx context.Context, exec sqlx.ExtContext, userID int64, newPasswordHash string) error {
	query := `UPDATE users SET password_hash = $2 WHERE id = $1`
	if _, err := exec.ExecContext(ctx, query, userID, newPasswordHash); err != nil {
		return util.LogError("[UserRepo] не удалось обновить пароль", err)
	}
	return nil
}
