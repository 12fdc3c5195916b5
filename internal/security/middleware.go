package security

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"auth-session-server/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"

	RefreshTokenHeader    = "X-Refresh-Token"
	NewAccessTokenHeader  = "X-New-Access-Token"
	NewRefreshTokenHeader = "X-New-Refresh-Token"
)

// TokenValidator : часть JWT-сервиса, нужная middleware
type TokenValidator interface {
	ValidateJWT(jwtTokenStr string) (*Claims, error)
}

// SessionRefresher : операции сервиса аутентификации, нужные middleware:
// тихое обновление пары и точечное чтение текущей версии пользователя
type SessionRefresher interface {
	RefreshTokens(ctx context.Context, refreshToken, userAgent, ipAddress string) (*model.TokensPair, error)
	CurrentTokenVersion(ctx context.Context, userID int64) (int64, error)
}

// JWTMiddleware разбирает bearer-токен запроса и решает его судьбу:
//   - токена нет -> запрос идет дальше без identity
//   - токен валиден и версия совпадает -> identity кладется в контекст
//   - токен валиден, но версия устарела -> отказ, токен считается отозванным
//   - токен просрочен и есть refresh-токен -> тихое обновление пары,
//     запрос продолжается уже под новой identity
//   - токен битый -> как будто токена нет, конвейер не падает
//
// Проверка подписи и срока не ходит в хранилище; единственное обращение
// к нему - чтение текущей версии пользователя
func JWTMiddleware(jwtService TokenValidator, authService SessionRefresher, adminToken string) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(handleAuthentication(jwtService, authService, adminToken, next))
	}
}

func handleAuthentication(jwtService TokenValidator, authService SessionRefresher, adminToken string, next http.Handler) func(writer http.ResponseWriter, request *http.Request) {
	return func(writer http.ResponseWriter, request *http.Request) {
		token := extractAccessToken(request)
		if token == "" {
			next.ServeHTTP(writer, request)
			return
		}

		if adminToken != "" && token == adminToken {
			adminClaims := &Claims{
				Email:   "admin",
				IsAdmin: true,
			}
			req := request.WithContext(context.WithValue(request.Context(), UserContextKey, adminClaims))
			next.ServeHTTP(writer, req)
			return
		}

		claims, err := jwtService.ValidateJWT(token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				attemptSilentRefresh(jwtService, authService, next, writer, request)
				return
			}

			// битый токен или чужая подпись: запрос идет дальше без identity
			log.Printf("невалидный access токен: %v", err)
			clearAuthCookies(writer)
			next.ServeHTTP(writer, request)
			return
		}

		currentVersion, err := authService.CurrentTokenVersion(request.Context(), claims.UserID)
		if err != nil {
			log.Printf("не удалось получить версию токенов пользователя %d: %v", claims.UserID, err)
			clearAuthCookies(writer)
			http.Error(writer, "unauthorized", http.StatusUnauthorized)
			return
		}

		// токен, выданный до версионирования, не несет клейму версии;
		// он действителен, только пока текущая версия пользователя равна 0
		if claims.EffectiveTokenVersion() != currentVersion {
			log.Printf("access токен пользователя %d отозван: %v (версия в токене %d, текущая %d)",
				claims.UserID, model.ErrSessionRevoked, claims.EffectiveTokenVersion(), currentVersion)
			clearAuthCookies(writer)
			http.Error(writer, "unauthorized", http.StatusUnauthorized)
			return
		}

		req := request.WithContext(context.WithValue(request.Context(), UserContextKey, claims))
		next.ServeHTTP(writer, req)
	}
}

// attemptSilentRefresh обменивает refresh-токен на новую пару. Новая пара
// уходит клиенту в заголовках и cookie, а сам запрос не падает и выполняется
// уже под новой identity
func attemptSilentRefresh(jwtService TokenValidator, authService SessionRefresher, next http.Handler, writer http.ResponseWriter, request *http.Request) {
	refreshToken := extractRefreshToken(request)
	if refreshToken == "" {
		clearAuthCookies(writer)
		http.Error(writer, "unauthorized", http.StatusUnauthorized)
		return
	}

	pair, err := authService.RefreshTokens(request.Context(), refreshToken, request.UserAgent(), request.RemoteAddr)
	if err != nil {
		log.Printf("тихое обновление токенов не удалось: %v", err)
		clearAuthCookies(writer)
		http.Error(writer, "unauthorized", http.StatusUnauthorized)
		return
	}

	newClaims, err := jwtService.ValidateJWT(pair.AccessToken)
	if err != nil {
		log.Printf("выданный при обновлении токен не прошел проверку: %v", err)
		clearAuthCookies(writer)
		http.Error(writer, "unauthorized", http.StatusUnauthorized)
		return
	}

	EmitTokens(writer, pair)

	req := request.WithContext(context.WithValue(request.Context(), UserContextKey, newClaims))
	next.ServeHTTP(writer, req)
}

// RequireAuthenticated отклоняет запросы, у которых после JWTMiddleware
// не оказалось identity в контексте
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		claims, ok := request.Context().Value(UserContextKey).(*Claims)
		if !ok || claims == nil {
			http.Error(writer, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// EmitTokens отдает пару токенов клиенту: в заголовках ответа и в http-only cookie
func EmitTokens(writer http.ResponseWriter, pair *model.TokensPair) {
	writer.Header().Set(NewAccessTokenHeader, pair.AccessToken)
	writer.Header().Set(NewRefreshTokenHeader, pair.RefreshToken)

	http.SetCookie(writer, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  pair.ExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(writer, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearAuthCookies затирает авторизационные cookie, чтобы клиент
// не продолжал слать мертвые токены
func ClearAuthCookies(writer http.ResponseWriter) {
	clearAuthCookies(writer)
}

func clearAuthCookies(writer http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(writer, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func extractAccessToken(request *http.Request) string {
	authorizationHeader := request.Header.Get("Authorization")
	if strings.HasPrefix(authorizationHeader, "Bearer ") {
		return strings.TrimPrefix(authorizationHeader, "Bearer ")
	}

	if cookie, err := request.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	return ""
}

func extractRefreshToken(request *http.Request) string {
	if header := request.Header.Get(RefreshTokenHeader); header != "" {
		return header
	}

	if cookie, err := request.Cookie(RefreshTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	return ""
}

// GetClaimsFromContext достает identity текущего запроса
func GetClaimsFromContext(ctx context.Context) (*Claims, error) {
	claims, ok := ctx.Value(UserContextKey).(*Claims)
	if !ok || claims == nil {
		return nil, errors.New("пользователь не авторизован")
	}
	return claims, nil
}
