package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"auth-session-server/config"
	"auth-session-server/internal/model"
	"auth-session-server/internal/notifier"
	"auth-session-server/internal/ports"
	"auth-session-server/internal/security"
	"auth-session-server/internal/util"

	"github.com/jmoiron/sqlx"
)

type AuthenticationService struct {
	sessionRepository ports.SessionRepositoryInterface
	*config.AppConfig
	jwtService     ports.JWTServiceInterface
	userRepository ports.UserRepository
	versionCache   ports.VersionCacheInterface
}

func NewAuthenticationService(
	sessionRepository ports.SessionRepositoryInterface,
	cfg *config.AppConfig,
	jwtService ports.JWTServiceInterface,
	userRepository ports.UserRepository,
	versionCache ports.VersionCacheInterface,
) *AuthenticationService {
	return &AuthenticationService{
		sessionRepository,
		cfg,
		jwtService,
		userRepository,
		versionCache,
	}
}

// Login аутентифицирует пользователя по email и паролю.
// Наружу уходит только model.ErrInvalidCredentials: по ответу нельзя понять,
// нет такого пользователя, он деактивирован или пароль не подошел.
//
// Побочные эффекты: отметка времени входа и вставка refresh-токена.
//
// Возвращает:
//   - model.LoginResult с парой токенов и краткой информацией о пользователе
//   - ошибку, если аутентификация не удалась
func (s *AuthenticationService) Login(ctx context.Context, email, password, userAgent, ipAddress string) (*model.LoginResult, error) {
	db, ok := ctx.Value("db").(*config.Database)
	if !ok {
		return nil, fmt.Errorf("[AuthService] database connection не найден в context")
	}

	user, err := s.userRepository.FindByEmail(ctx, db, email)
	if err != nil {
		log.Printf("[AuthService] вход отклонен, пользователь %q не найден: %v", email, err)
		return nil, fmt.Errorf("[AuthService] %w", model.ErrInvalidCredentials)
	}

	if !user.Active {
		log.Printf("[AuthService] вход отклонен, пользователь %d деактивирован", user.ID)
		return nil, fmt.Errorf("[AuthService] %w", model.ErrInvalidCredentials)
	}

	if !security.CheckPassword(password, user.PasswordHash) {
		return nil, fmt.Errorf("[AuthService] %w", model.ErrInvalidCredentials)
	}

	roles, err := s.userRepository.ListRolesForUser(ctx, db, user.ID)
	if err != nil {
		return nil, util.LogError("[AuthService] не удалось получить роли", err)
	}
	roleNames := roleNames(roles)

	pair, err := s.issuePair(ctx, db, user, roleNames, userAgent, ipAddress)
	if err != nil {
		return nil, err
	}

	// refresh-токен уже вставлен; неудавшаяся отметка времени входа
	// не должна превращать состоявшийся логин в ошибку
	if err := s.userRepository.UpdateLastLogin(ctx, db, user.ID); err != nil {
		log.Printf("[AuthService] не удалось отметить время входа пользователя %d: %v", user.ID, err)
	}

	return &model.LoginResult{
		Tokens: *pair,
		User: model.UserSummary{
			ID:       user.ID,
			Email:    user.Email,
			FullName: user.FullName,
			Roles:    roleNames,
		},
	}, nil
}

// RefreshTokens обменивает refresh-токен на новую пару. Каждый refresh-токен
// одноразовый: отзыв предъявленного и вставка нового выполняются в одной
// транзакции, а отзыв условный (revoked = FALSE), поэтому при гонке двух
// запросов с одним токеном пару получит максимум один из них.
//
// При обмене с нового IP-адреса на webhook уходит уведомление,
// сам обмен при этом не запрещается.
//
// Возвращает:
//   - model.TokensPair
//   - model.ErrInvalidOrExpiredToken, если токен не найден, просрочен
//     или уже был обменян
func (s *AuthenticationService) RefreshTokens(ctx context.Context, refreshToken, userAgent, ipAddress string) (*model.TokensPair, error) {
	tx, err := s.sessionRepository.BeginTX(ctx)
	if err != nil {
		return nil, util.LogError("[AuthService] не удалось открыть транзакцию", err)
	}
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				log.Printf("[AuthService] ошибка отката транзакции: %v", err)
			}
		}
	}()

	stored, err := s.sessionRepository.FindActive(ctx, tx, refreshToken)
	if err != nil {
		return nil, util.LogError("[AuthService] ошибка поиска refresh токена", err)
	}
	if stored == nil {
		return nil, fmt.Errorf("[AuthService] %w", model.ErrInvalidOrExpiredToken)
	}

	revoked, err := s.sessionRepository.Revoke(ctx, tx, refreshToken)
	if err != nil {
		return nil, util.LogError("[AuthService] не удалось отозвать refresh токен", err)
	}
	if !revoked {
		// гонка: конкурирующий запрос успел обменять токен первым
		log.Printf("[AuthService] повторный обмен refresh токена пользователя %d", stored.UserID)
		return nil, fmt.Errorf("[AuthService] %w", model.ErrInvalidOrExpiredToken)
	}

	user, err := s.userRepository.FindByID(ctx, tx, stored.UserID)
	if err != nil {
		return nil, util.LogError("[AuthService] не удалось найти владельца токена", err)
	}
	if !user.Active {
		log.Printf("[AuthService] обмен отклонен, пользователь %d деактивирован", user.ID)
		return nil, fmt.Errorf("[AuthService] %w", model.ErrInvalidOrExpiredToken)
	}

	roles, err := s.userRepository.ListRolesForUser(ctx, tx, user.ID)
	if err != nil {
		return nil, util.LogError("[AuthService] не удалось получить роли", err)
	}

	pair, err := s.issuePair(ctx, tx, user, roleNames(roles), userAgent, ipAddress)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, util.LogError("[AuthService] не удалось зафиксировать ротацию токена", err)
	}
	committed = true

	if stored.IpAddress != "" && stored.IpAddress != ipAddress && s.AppConfig.Webhook.URL != "" {
		log.Printf("[AuthService] обмен токена пользователя %d с нового IP, отправка webhook", user.ID)
		go func(userID int64, newIP, oldIP string) {
			if err := notifier.NotifyWebhook(s.AppConfig.Webhook.URL, userID, newIP, oldIP); err != nil {
				log.Printf("[AuthService] ошибка отправки webhook: %v", err)
			}
		}(user.ID, ipAddress, stored.IpAddress)
	}

	return pair, nil
}

// RevokeRefreshToken отзывает один refresh-токен; используется при logout.
// Неизвестный или уже отозванный токен не ошибка: с точки зрения клиента
// выход всё равно состоялся, вернется false
func (s *AuthenticationService) RevokeRefreshToken(ctx context.Context, refreshToken string) (bool, error) {
	db, ok := ctx.Value("db").(*config.Database)
	if !ok {
		return false, fmt.Errorf("[AuthService] database connection не найден в context")
	}

	revoked, err := s.sessionRepository.Revoke(ctx, db, refreshToken)
	if err != nil {
		return false, util.LogError("[AuthService] не удалось отозвать refresh токен", err)
	}
	return revoked, nil
}

// RevokeAllRefreshTokens отзывает все живые refresh-токены пользователя
// и в той же транзакции поднимает версию его токенов. Поднятие версии -
// основной рубильник: уже выданные access-токены перестают проходить
// проверку версии при следующем же запросе, отзыв refresh-токенов -
// вторая линия защиты.
//
// Возвращает число отозванных refresh-токенов
func (s *AuthenticationService) RevokeAllRefreshTokens(ctx context.Context, userID int64) (int64, error) {
	tx, err := s.sessionRepository.BeginTX(ctx)
	if err != nil {
		return 0, util.LogError("[AuthService] не удалось открыть транзакцию", err)
	}
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				log.Printf("[AuthService] ошибка отката транзакции: %v", err)
			}
		}
	}()

	count, err := s.sessionRepository.RevokeAllForUser(ctx, tx, userID)
	if err != nil {
		return 0, util.LogError("[AuthService] не удалось отозвать токены пользователя", err)
	}

	newVersion, err := s.userRepository.IncrementTokenVersion(ctx, tx, userID)
	if err != nil {
		return 0, util.LogError("[AuthService] не удалось поднять версию токенов", err)
	}

	// запись о версии стирается до фиксации: между коммитом и записью
	// новой версии кэш не должен отдавать доревокационную
	dropVersionFromCache(ctx, s.versionCache, userID)

	if err := tx.Commit(); err != nil {
		return 0, util.LogError("[AuthService] не удалось зафиксировать отзыв сессий", err)
	}
	committed = true

	storeVersionInCache(ctx, s.versionCache, userID, newVersion)

	log.Printf("[AuthService] отозвано %d сессий пользователя %d, новая версия %d", count, userID, newVersion)
	return count, nil
}

// ValidateToken : разовая проверка access-токена вне основного пути запросов.
// Помимо подписи и срока проверяет, что владелец существует, активен
// и версия токена не устарела
func (s *AuthenticationService) ValidateToken(ctx context.Context, accessToken string) (bool, error) {
	claims, err := s.jwtService.ValidateJWT(accessToken)
	if err != nil {
		return false, nil
	}

	currentVersion, err := s.CurrentTokenVersion(ctx, claims.UserID)
	if err != nil {
		return false, nil
	}

	return claims.EffectiveTokenVersion() == currentVersion, nil
}

// CurrentTokenVersion : текущая версия токенов пользователя.
// Сначала кэш, при промахе точечное чтение из БД с досылкой в кэш
func (s *AuthenticationService) CurrentTokenVersion(ctx context.Context, userID int64) (int64, error) {
	if s.versionCache != nil {
		version, found, err := s.versionCache.GetTokenVersion(ctx, userID)
		if err == nil && found {
			return version, nil
		}
		if err != nil {
			log.Printf("[AuthService] кэш версий недоступен, чтение из БД: %v", err)
		}
	}

	db, ok := ctx.Value("db").(*config.Database)
	if !ok {
		return 0, fmt.Errorf("[AuthService] database connection не найден в context")
	}

	version, err := s.userRepository.GetTokenVersion(ctx, db, userID)
	if err != nil {
		return 0, util.LogError("[AuthService] не удалось получить версию токенов", err)
	}

	// прогрев условный: если конкурентный revoke-all уже записал
	// поднятую версию, значение из БД, прочитанное до его коммита,
	// не должно ее затереть
	if s.versionCache != nil {
		if err := s.versionCache.WarmTokenVersion(ctx, userID, version); err != nil {
			log.Printf("[AuthService] не удалось прогреть кэш версий: %v", err)
		}
	}

	return version, nil
}

// storeVersionInCache пишет свежеподнятую версию; при неудаче запись
// стирается, чтобы кэш не продолжал отдавать доревокационное значение
func storeVersionInCache(ctx context.Context, cache ports.VersionCacheInterface, userID, version int64) {
	if cache == nil {
		return
	}
	if err := cache.SetTokenVersion(ctx, userID, version); err != nil {
		log.Printf("не удалось обновить версию в кэше: %v", err)
		dropVersionFromCache(ctx, cache, userID)
	}
}

// dropVersionFromCache стирает запись о версии. Ошибка кэша не фатальна:
// при отсутствии записи правду скажет БД
func dropVersionFromCache(ctx context.Context, cache ports.VersionCacheInterface, userID int64) {
	if cache == nil {
		return
	}
	if err := cache.InvalidateTokenVersion(ctx, userID); err != nil {
		log.Printf("не удалось сбросить версию в кэше: %v", err)
	}
}

// issuePair выпускает access-токен со снимком текущей версии пользователя
// и новый refresh-токен, сохраняя последний через переданный exec
func (s *AuthenticationService) issuePair(ctx context.Context, exec sqlx.ExtContext, user *model.User, roleNames []string, userAgent, ipAddress string) (*model.TokensPair, error) {
	accessToken, expiresAt, err := s.jwtService.IssueAccessToken(user, roleNames)
	if err != nil {
		return nil, util.LogError("[AuthService] ошибка генерации токенов", err)
	}

	refreshToken, err := security.GenerateRefreshToken()
	if err != nil {
		return nil, util.LogError("[AuthService] ошибка генерации токенов", err)
	}

	stored := &model.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpireAt:  time.Now().Add(s.jwtService.RefreshTTL()),
		UserAgent: userAgent,
		IpAddress: ipAddress,
	}
	if err := s.sessionRepository.Create(ctx, exec, stored); err != nil {
		return nil, util.LogError("[AuthService] ошибка сохранения refresh токена", err)
	}

	return &model.TokensPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

func roleNames(roles []model.Role) []string {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	return names
}
