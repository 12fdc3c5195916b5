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

type SessionRepository struct {
	*config.Database
}

func NewSessionRepository(database *config.Database) *SessionRepository {
	return &SessionRepository{database}
}

// Create сохраняет refresh-токен в базе данных
// Возвращает ошибку, если операция не удалась
func (r *SessionRepository) Create(ctx context.Context, exec sqlx.ExtContext, refreshToken *model.RefreshToken) error {
	query := `INSERT INTO refresh_tokens (user_id, token, expire_at, revoked, user_agent, ip_address)
				VALUES ($1, $2, $3, FALSE, $4, $5)
	`

	_, err := exec.ExecContext(ctx, query,
		refreshToken.UserID,
		refreshToken.Token,
		refreshToken.ExpireAt,
		refreshToken.UserAgent,
		refreshToken.IpAddress,
	)

	if err != nil {
		return util.LogError("[SessionRepo] ошибка вставки refresh токена в БД", err)
	}

	return nil
}

// FindActive ищет refresh-токен, пригодный к обмену: не отозванный
// и не просроченный. Если такого нет, возвращает nil без ошибки
func (r *SessionRepository) FindActive(ctx context.Context, exec sqlx.ExtContext, token string) (*model.RefreshToken, error) {
	query := `SELECT id, user_id, token, expire_at, revoked, user_agent, ip_address, created_at
				FROM refresh_tokens
				WHERE token = $1 AND revoked = FALSE AND expire_at > NOW()`

	refreshToken := &model.RefreshToken{}
	err := sqlx.GetContext(ctx, exec, refreshToken, query, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, util.LogError("[SessionRepo] ошибка поиска refresh токена", err)
	}

	return refreshToken, nil
}

// Revoke помечает токен отозванным. Условие revoked = FALSE делает операцию
// атомарной: при гонке двух обменов одного токена строку переведет
// только один из них. Повторный отзыв не ошибка, просто вернется false
func (r *SessionRepository) Revoke(ctx context.Context, exec sqlx.ExtContext, token string) (bool, error) {
	query := `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1 AND revoked = FALSE`

	result, err := exec.ExecContext(ctx, query, token)
	if err != nil {
		return false, util.LogError("[SessionRepo] не удалось отозвать refresh токен", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, util.LogError("[SessionRepo] не удалось проверить, отозван ли токен", err)
	}

	return rowsAffected > 0, nil
}

// RevokeAllForUser отзывает все живые токены пользователя одним запросом
// Возвращает число отозванных
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, exec sqlx.ExtContext, userID int64) (int64, error) {
	query := `UPDATE refresh_tokens SET revoked = TRUE
				WHERE user_id = $1 AND revoked = FALSE AND expire_at > NOW()`

	result, err := exec.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, util.LogError("[SessionRepo] не удалось отозвать токены пользователя", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, util.LogError("[SessionRepo] не удалось получить число отозванных токенов", err)
	}

	return rowsAffected, nil
}

func (r *SessionRepository) BeginTX(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, util.LogError("[SessionRepo] не удалось открыть транзакцию", err)
	}
	return tx, nil
}
