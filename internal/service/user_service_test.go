package service_test

import (
	"errors"
	"testing"
	"time"

	"auth-session-server/internal/model"
	"auth-session-server/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestUserService() (*service.UserService, *MockUserRepository, *MockJWTService, *MockSessionRepository, *MockVersionCache) {
	mockUserRepo := new(MockUserRepository)
	mockJWTService := new(MockJWTService)
	mockSessionRepo := new(MockSessionRepository)
	mockCache := new(MockVersionCache)

	svc := service.NewUserService(mockUserRepo, mockJWTService, mockSessionRepo, mockCache)

	return svc, mockUserRepo, mockJWTService, mockSessionRepo, mockCache
}

// ===== TESTS: GetUser =====

// 1. Пользователь возвращается вместе с ролями
func TestGetUser_Success(t *testing.T) {
	svc, mockUserRepo, _, _, _ := newTestUserService()
	ctx := ctxWithDB()

	mockUserRepo.On("FindByID", ctx, mock.Anything, int64(1)).
		Return(activeUser(0), nil)
	mockUserRepo.On("ListRolesForUser", ctx, mock.Anything, int64(1)).
		Return([]model.Role{{ID: 1, Name: "admin"}}, nil)

	user, roles, err := svc.GetUser(ctx, 1)

	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Len(t, roles, 1)
	mockUserRepo.AssertExpectations(t)
}

// ===== TESTS: UpdateProfile =====

// 2. Некорректный email отклоняется до обращения к БД
func TestUpdateProfile_InvalidEmail(t *testing.T) {
	svc, mockUserRepo, _, _, _ := newTestUserService()
	ctx := ctxWithDB()

	_, err := svc.UpdateProfile(ctx, 1, "not-an-email", "Ivan Petrov")

	assert.Error(t, err)
	mockUserRepo.AssertNotCalled(t, "FindByID")
}

// 3. Успешное обновление профиля
func TestUpdateProfile_Success(t *testing.T) {
	svc, mockUserRepo, _, _, _ := newTestUserService()
	ctx := ctxWithDB()

	mockUserRepo.On("FindByID", ctx, mock.Anything, int64(1)).
		Return(activeUser(0), nil)
	mockUserRepo.On("UpdateProfile", ctx, mock.Anything, mock.MatchedBy(func(u *model.User) bool {
		return u.Email == "new@example.com" && u.FullName == "Petr Ivanov"
	})).Return(nil)

	user, err := svc.UpdateProfile(ctx, 1, "new@example.com", "Petr Ivanov")

	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
	mockUserRepo.AssertExpectations(t)
}

// ===== TESTS: ChangePassword =====

// 4. Неверный текущий пароль: тип ошибки различим для клиента
func TestChangePassword_WrongCurrentPassword(t *testing.T) {
	svc, mockUserRepo, _, mockSessionRepo, _ := newTestUserService()
	ctx := ctxWithDB()

	mockUserRepo.On("FindByID", ctx, mock.Anything, int64(1)).
		Return(activeUser(2), nil)

	_, err := svc.ChangePassword(ctx, 1, "WrongPass999", "NewGoodPass1", "agent", "127.0.0.1")

	assert.ErrorIs(t, err, model.ErrIncorrectCurrentPassword)
	mockSessionRepo.AssertNotCalled(t, "BeginTX")
}

// 5. Слабый новый пароль отклоняется
func TestChangePassword_WeakNewPassword(t *testing.T) {
	svc, mockUserRepo, _, mockSessionRepo, _ := newTestUserService()
	ctx := ctxWithDB()

	mockUserRepo.On("FindByID", ctx, mock.Anything, int64(1)).
		Return(activeUser(2), nil)

	_, err := svc.ChangePassword(ctx, 1, "GoodPass123", "weak", "agent", "127.0.0.1")

	assert.Error(t, err)
	mockSessionRepo.AssertNotCalled(t, "BeginTX")
}

// 6. Успешная смена: пароль обновлен, сессии отозваны, версия поднята,
// устройству выдана свежая пара
func TestChangePassword_Success(t *testing.T) {
	svc, mockUserRepo, mockJWTService, mockSessionRepo, mockCache := newTestUserService()
	ctx := ctxWithDB()

	tx, dbMock := newMockTx(t)
	dbMock.ExpectCommit()

	user := activeUser(2)
	expiresAt := time.Now().Add(15 * time.Minute)

	mockUserRepo.On("FindByID", ctx, mock.Anything, int64(1)).
		Return(user, nil)
	mockSessionRepo.On("BeginTX", ctx).Return(tx, nil)
	mockUserRepo.On("UpdatePassword", ctx, mock.Anything, int64(1), mock.AnythingOfType("string")).
		Return(nil)
	mockSessionRepo.On("RevokeAllForUser", ctx, mock.Anything, int64(1)).
		Return(int64(2), nil)
	mockUserRepo.On("IncrementTokenVersion", ctx, mock.Anything, int64(1)).
		Return(int64(3), nil)
	mockCache.On("InvalidateTokenVersion", ctx, int64(1)).
		Return(nil)
	mockCache.On("SetTokenVersion", ctx, int64(1), int64(3)).
		Return(nil)
	mockUserRepo.On("ListRolesForUser", ctx, mock.Anything, int64(1)).
		Return([]model.Role{}, nil)
	mockJWTService.On("IssueAccessToken", mock.MatchedBy(func(u *model.User) bool {
		// access-токен подписывается уже с новой версией
		return u.TokenVersion == 3
	}), []string{}).Return("fresh-access-token", expiresAt, nil)
	mockJWTService.On("RefreshTTL").Return(168 * time.Hour)
	mockSessionRepo.On("Create", ctx, mock.Anything, mock.MatchedBy(func(rt *model.RefreshToken) bool {
		return rt.UserID == 1 && rt.Token != ""
	})).Return(nil)

	pair, err := svc.ChangePassword(ctx, 1, "GoodPass123", "NewGoodPass1", "agent", "127.0.0.1")

	require.NoError(t, err)
	assert.Equal(t, "fresh-access-token", pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NoError(t, dbMock.ExpectationsWereMet())
	mockUserRepo.AssertExpectations(t)
	mockSessionRepo.AssertExpectations(t)
	mockJWTService.AssertExpectations(t)
	mockCache.AssertExpectations(t)
}

// 7. Неудавшаяся запись новой версии в кэш стирает запись, чтобы старые
// access-токены не проходили проверку по доревокационному значению
func TestChangePassword_CacheWriteFails(t *testing.T) {
	svc, mockUserRepo, mockJWTService, mockSessionRepo, mockCache := newTestUserService()
	ctx := ctxWithDB()

	tx, dbMock := newMockTx(t)
	dbMock.ExpectCommit()

	user := activeUser(2)
	expiresAt := time.Now().Add(15 * time.Minute)

	mockUserRepo.On("FindByID", ctx, mock.Anything, int64(1)).
		Return(user, nil)
	mockSessionRepo.On("BeginTX", ctx).Return(tx, nil)
	mockUserRepo.On("UpdatePassword", ctx, mock.Anything, int64(1), mock.AnythingOfType("string")).
		Return(nil)
	mockSessionRepo.On("RevokeAllForUser", ctx, mock.Anything, int64(1)).
		Return(int64(2), nil)
	mockUserRepo.On("IncrementTokenVersion", ctx, mock.Anything, int64(1)).
		Return(int64(3), nil)
	mockCache.On("SetTokenVersion", ctx, int64(1), int64(3)).
		Return(errors.New("redis: connection refused"))
	mockCache.On("InvalidateTokenVersion", ctx, int64(1)).
		Return(nil)
	mockUserRepo.On("ListRolesForUser", ctx, mock.Anything, int64(1)).
		Return([]model.Role{}, nil)
	mockJWTService.On("IssueAccessToken", mock.Anything, []string{}).
		Return("fresh-access-token", expiresAt, nil)
	mockJWTService.On("RefreshTTL").Return(168 * time.Hour)
	mockSessionRepo.On("Create", ctx, mock.Anything, mock.Anything).
		Return(nil)

	pair, err := svc.ChangePassword(ctx, 1, "GoodPass123", "NewGoodPass1", "agent", "127.0.0.1")

	require.NoError(t, err)
	assert.Equal(t, "fresh-access-token", pair.AccessToken)
	// сброс до фиксации и сброс после неудавшейся записи
	mockCache.AssertNumberOfCalls(t, "InvalidateTokenVersion", 2)
	mockCache.AssertExpectations(t)
}
