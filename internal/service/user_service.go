package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"

	"auth-session-server/config"
	"auth-session-server/internal/model"
	"auth-session-server/internal/ports"
	"auth-session-server/internal/security"
	"auth-session-server/internal/util"
)

type UserService struct {
	userRepository    ports.UserRepository
	jwtService        ports.JWTServiceInterface
	sessionRepository ports.SessionRepositoryInterface
	versionCache      ports.VersionCacheInterface
}

func NewUserService(
	userRepository ports.UserRepository,
	jwtService ports.JWTServiceInterface,
	sessionRepository ports.SessionRepositoryInterface,
	versionCache ports.VersionCacheInterface,
) *UserService {
	return &UserService{
		userRepository:    userRepository,
		jwtService:        jwtService,
		sessionRepository: sessionRepository,
		versionCache:      versionCache,
	}
}

// GetUser : возвращает пользователя вместе с его ролями
func (s *UserService) GetUser(ctx context.Context, id int64) (*model.User, []model.Role, error) {
	db, ok := ctx.Value("db").(*config.Database)
	if !ok {
		return nil, nil, fmt.Errorf("[UserService] database connection не найден в context")
	}

	user, err := s.userRepository.FindByID(ctx, db, id)
	if err != nil {
		return nil, nil, fmt.Errorf("[UserService] пользователь не найден: %w", err)
	}

	roles, err := s.userRepository.ListRolesForUser(ctx, db, id)
	if err != nil {
		return nil, nil, util.LogError("[UserService] не удалось получить роли", err)
	}

	return user, roles, nil
}

// UpdateProfile : обновляет email и имя пользователя
func (s *UserService) UpdateProfile(ctx context.Context, id int64, email, fullName string) (*model.User, error) {
	db, ok := ctx.Value("db").(*config.Database)
	if !ok {
		return nil, fmt.Errorf("[UserService] database connection не найден в context")
	}

	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("[UserService] некорректный email")
	}

	user, err := s.userRepository.FindByID(ctx, db, id)
	if err != nil {
		return nil, fmt.Errorf("[UserService] пользователь не найден: %w", err)
	}

	user.Email = email
	user.FullName = fullName
	if err := s.userRepository.UpdateProfile(ctx, db, user); err != nil {
		return nil, util.LogError("[UserService] не удалось обновить профиль", err)
	}

	return user, nil
}

// ChangePassword меняет пароль после проверки текущего.
// Смена пароля отзывает все живые сессии пользователя и поднимает версию
// токенов, чтобы украденные ранее токены умерли вместе со старым паролем.
// Устройству, с которого меняли пароль, выдается свежая пара
func (s *UserService) ChangePassword(ctx context.Context, id int64, currentPassword, newPassword, userAgent, ipAddress string) (*model.TokensPair, error) {
	db, ok := ctx.Value("db").(*config.Database)
	if !ok {
		return nil, fmt.Errorf("[UserService] database connection не найден в context")
	}

	user, err := s.userRepository.FindByID(ctx, db, id)
	if err != nil {
		return nil, fmt.Errorf("[UserService] пользователь не найден: %w", err)
	}

	if !security.CheckPassword(currentPassword, user.PasswordHash) {
		return nil, fmt.Errorf("[UserService] %w", model.ErrIncorrectCurrentPassword)
	}

	if err := validatePassword(newPassword); err != nil {
		return nil, fmt.Errorf("[UserService] %w", err)
	}

	newHash, err := security.HashPassword(newPassword)
	if err != nil {
		return nil, util.LogError("[UserService] не удалось создать хэш пароля", err)
	}

	tx, err := s.sessionRepository.BeginTX(ctx)
	if err != nil {
		return nil, util.LogError("[UserService] не удалось открыть транзакцию", err)
	}
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				log.Printf("[UserService] ошибка отката транзакции: %v", err)
			}
		}
	}()

	if err := s.userRepository.UpdatePassword(ctx, tx, id, newHash); err != nil {
		return nil, util.LogError("[UserService] не удалось обновить пароль", err)
	}

	revokedCount, err := s.sessionRepository.RevokeAllForUser(ctx, tx, id)
	if err != nil {
		return nil, util.LogError("[UserService] не удалось отозвать сессии", err)
	}

	newVersion, err := s.userRepository.IncrementTokenVersion(ctx, tx, id)
	if err != nil {
		return nil, util.LogError("[UserService] не удалось поднять версию токенов", err)
	}

	// как и при revoke-all: стереть до фиксации, записать новую после
	dropVersionFromCache(ctx, s.versionCache, id)

	if err := tx.Commit(); err != nil {
		return nil, util.LogError("[UserService] не удалось зафиксировать смену пароля", err)
	}
	committed = true

	storeVersionInCache(ctx, s.versionCache, id, newVersion)

	log.Printf("[UserService] пароль пользователя %d изменен, отозвано %d сессий", id, revokedCount)

	roles, err := s.userRepository.ListRolesForUser(ctx, db, id)
	if err != nil {
		return nil, util.LogError("[UserService] не удалось получить роли", err)
	}
	names := roleNames(roles)

	user.TokenVersion = newVersion
	accessToken, expiresAt, err := s.jwtService.IssueAccessToken(user, names)
	if err != nil {
		return nil, util.LogError("[UserService] ошибка генерации токенов", err)
	}

	refreshToken, err := security.GenerateRefreshToken()
	if err != nil {
		return nil, util.LogError("[UserService] ошибка генерации токенов", err)
	}

	stored := &model.RefreshToken{
		UserID:    id,
		Token:     refreshToken,
		ExpireAt:  time.Now().Add(s.jwtService.RefreshTTL()),
		UserAgent: userAgent,
		IpAddress: ipAddress,
	}
	if err := s.sessionRepository.Create(ctx, db, stored); err != nil {
		return nil, util.LogError("[UserService] не удалось сохранить refresh токен", err)
	}

	return &model.TokensPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("пароль должен быть не меньше 8 символов")
	}

	var hasUpper, hasLower, hasDigit bool
	for _, c := range password {
		switch {
		case unicode.IsUpper(c):
			hasUpper = true
		case unicode.IsLower(c):
			hasLower = true
		case unicode.IsDigit(c):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return fmt.Errorf("пароль должен содержать заглавные и строчные буквы и цифры")
	}
	return nil
}
