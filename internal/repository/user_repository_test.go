package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"auth-session-server/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1. FindByEmail: пользователь вычитывается вместе с версией токенов
func TestUserRepository_FindByEmail(t *testing.T) {
	database, dbMock := newMockDatabase(t)
	repo := repository.NewUserRepository(database)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "email", "full_name", "password_hash", "active", "token_version", "last_login_at", "created_at"}).
		AddRow(int64(1), "user@example.com", "Ivan Petrov", "$2a$12$hash", true, int64(4), &now, now)

	dbMock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email = $1`)).
		WithArgs("user@example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), database, "user@example.com")

	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, int64(4), user.TokenVersion)
	assert.True(t, user.Active)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

// 2. GetTokenVersion: читаются только версии активных пользователей
func TestUserRepository_GetTokenVersion(t *testing.T) {
	database, dbMock := newMockDatabase(t)
	repo := repository.NewUserRepository(database)

	dbMock.ExpectQuery(regexp.QuoteMeta(`SELECT token_version FROM users WHERE id = $1 AND active = TRUE`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"token_version"}).AddRow(int64(4)))

	version, err := repo.GetTokenVersion(context.Background(), database, 1)

	require.NoError(t, err)
	assert.Equal(t, int64(4), version)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

// 3. GetTokenVersion: деактивированный пользователь это ошибка,
// его токены не должны проходить проверку
func TestUserRepository_GetTokenVersion_InactiveUser(t *testing.T) {
	database, dbMock := newMockDatabase(t)
	repo := repository.NewUserRepository(database)

	dbMock.ExpectQuery(regexp.QuoteMeta(`AND active = TRUE`)).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"token_version"}))

	_, err := repo.GetTokenVersion(context.Background(), database, 2)

	assert.Error(t, err)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

// 4. IncrementTokenVersion: инкремент на стороне БД, новая версия из RETURNING
func TestUserRepository_IncrementTokenVersion(t *testing.T) {
	database, dbMock := newMockDatabase(t)
	repo := repository.NewUserRepository(database)

	dbMock.ExpectQuery(regexp.QuoteMeta(`UPDATE users SET token_version = token_version + 1 WHERE id = $1 RETURNING token_version`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"token_version"}).AddRow(int64(5)))

	version, err := repo.IncrementTokenVersion(context.Background(), database, 1)

	require.NoError(t, err)
	assert.Equal(t, int64(5), version)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

// 5. ListRolesForUser: роли приходят отсортированными по имени
func TestUserRepository_ListRolesForUser(t *testing.T) {
	database, dbMock := newMockDatabase(t)
	repo := repository.NewUserRepository(database)

	rows := sqlmock.NewRows([]string{"id", "name", "description"}).
		AddRow(int64(1), "admin", "администратор").
		AddRow(int64(2), "editor", "редактор")

	dbMock.ExpectQuery(regexp.QuoteMeta(`JOIN user_roles ur ON ur.role_id = r.id`)).
		WithArgs(int64(1)).
		WillReturnRows(rows)

	roles, err := repo.ListRolesForUser(context.Background(), database, 1)

	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "admin", roles[0].Name)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

// 6. UpdatePassword: в БД уходит только новый хэш
func TestUserRepository_UpdatePassword(t *testing.T) {
	database, dbMock := newMockDatabase(t)
	repo := repository.NewUserRepository(database)

	dbMock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET password_hash = $2 WHERE id = $1`)).
		WithArgs(int64(1), "$2a$12$newhash").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdatePassword(context.Background(), database, 1, "$2a$12$newhash")

	assert.NoError(t, err)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}
