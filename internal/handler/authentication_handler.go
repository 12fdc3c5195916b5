package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"auth-session-server/internal/model"
	"auth-session-server/internal/model/requestresponse"
	"auth-session-server/internal/ports"
	"auth-session-server/internal/security"
	"auth-session-server/internal/service"

	"github.com/go-chi/chi/v5"
)

type AuthenticationHandler struct {
	ports.AuthenticationService
}

func NewAuthenticationHandler(authenticationService *service.AuthenticationService) *AuthenticationHandler {
	return &AuthenticationHandler{authenticationService}
}

// Login godoc
// @Summary Аутентификация пользователя
// @Description Получение пары access/refresh токенов по email и паролю
// @Tags Authentication
// @Accept json
// @Produce json
// @Param body body requestresponse.LoginRequest true "Тело запроса"
// @Success 200 {object} requestresponse.LoginResponse "Успешная аутентификация"
// @Failure 400 {object} requestresponse.ErrorResponse "Некорректный JSON или пустые поля"
// @Failure 401 {object} requestresponse.ErrorResponse "Неверный email или пароль"
// @Failure 500 {object} requestresponse.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/auth/login [post]
func (h *AuthenticationHandler) Login(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	var req requestresponse.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	if req.Email == "" || req.Password == "" {
		sendErrorResponse(w, 400, "email и password обязательны")
		return
	}

	result, err := h.AuthenticationService.Login(ctx, req.Email, req.Password, r.UserAgent(), r.RemoteAddr)
	if err != nil {
		log.Println(err)
		switch {
		case errors.Is(err, model.ErrInvalidCredentials):
			sendErrorResponse(w, http.StatusUnauthorized, "неверный email или пароль")
		default:
			sendErrorResponse(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
		}
		return
	}

	security.EmitTokens(w, &result.Tokens)

	resp := requestresponse.LoginResponse{}
	resp.Response.AccessToken = result.Tokens.AccessToken
	resp.Response.RefreshToken = result.Tokens.RefreshToken
	resp.Response.ExpiresAt = result.Tokens.ExpiresAt
	resp.Response.User = result.User

	w.WriteHeader(200)
	json.NewEncoder(w).Encode(resp)
}

// RefreshToken godoc
// @Summary Обновление токенов
// @Description Обменивает одноразовый refresh-токен на новую пару. Токен берется из тела запроса, заголовка X-Refresh-Token или cookie
// @Tags Authentication
// @Accept json
// @Produce json
// @Param body body requestresponse.RefreshTokenRequest false "Тело запроса"
// @Success 200 {object} requestresponse.RefreshTokenResponse "Новые access и refresh токены"
// @Failure 401 {object} requestresponse.ErrorResponse "Токен не найден, просрочен или уже обменян"
// @Failure 500 {object} requestresponse.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/auth/refresh [post]
func (h *AuthenticationHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	var req requestresponse.RefreshTokenRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			return
		}
	}

	refreshToken := req.RefreshToken
	if refreshToken == "" {
		refreshToken = refreshTokenFromTransport(r)
	}
	if refreshToken == "" {
		security.ClearAuthCookies(w)
		sendErrorResponse(w, http.StatusUnauthorized, "refresh токен не передан")
		return
	}

	pair, err := h.AuthenticationService.RefreshTokens(ctx, refreshToken, r.UserAgent(), r.RemoteAddr)
	if err != nil {
		log.Println(err)
		security.ClearAuthCookies(w)
		switch {
		case errors.Is(err, model.ErrInvalidOrExpiredToken):
			sendErrorResponse(w, http.StatusUnauthorized, "не удалось обновить токены")
		default:
			sendErrorResponse(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
		}
		return
	}

	security.EmitTokens(w, pair)

	resp := requestresponse.RefreshTokenResponse{}
	resp.Response.AccessToken = pair.AccessToken
	resp.Response.RefreshToken = pair.RefreshToken
	resp.Response.ExpiresAt = pair.ExpiresAt

	w.WriteHeader(200)
	json.NewEncoder(w).Encode(resp)
}

// Logout godoc
// @Summary Завершение сессии
// @Description Отзывает переданный refresh-токен. Всегда отвечает 200: незнакомый или уже отозванный токен не мешает клиенту выйти
// @Tags Authentication
// @Accept json
// @Produce json
// @Param body body requestresponse.LogoutRequest false "Тело запроса, токен опционален"
// @Success 200 {object} requestresponse.LogoutResponse
// @Router /api/auth/logout [post]
func (h *AuthenticationHandler) Logout(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	var req requestresponse.LogoutRequest
	if r.Body != nil && r.ContentLength != 0 {
		// битое тело не мешает выходу
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	refreshToken := req.RefreshToken
	if refreshToken == "" {
		refreshToken = refreshTokenFromTransport(r)
	}

	if refreshToken != "" {
		if _, err := h.AuthenticationService.RevokeRefreshToken(ctx, refreshToken); err != nil {
			// logout снисходителен: ошибку пишем в лог, клиенту отвечаем успехом
			log.Println(err)
		}
	}

	security.ClearAuthCookies(w)

	resp := requestresponse.LogoutResponse{}
	resp.Response.LoggedOut = true

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// RevokeAllSessions godoc
// @Summary Отзыв всех сессий текущего пользователя
// @Description Отзывает все refresh-токены и поднимает версию токенов: все выданные access-токены, включая текущий, немедленно перестают действовать
// @Tags Authentication
// @Produce json
// @Param Authorization header string true "Bearer токен" default(Bearer <access_token>)
// @Success 200 {object} requestresponse.RevokeAllResponse
// @Failure 401 {object} requestresponse.ErrorResponse
// @Failure 500 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/auth/revoke-all [post]
func (h *AuthenticationHandler) RevokeAllSessions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	claims, err := security.GetClaimsFromContext(ctx)
	if err != nil {
		sendErrorResponse(w, http.StatusUnauthorized, "не авторизован")
		return
	}

	count, err := h.AuthenticationService.RevokeAllRefreshTokens(ctx, claims.UserID)
	if err != nil {
		log.Println(err)
		sendErrorResponse(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
		return
	}

	security.ClearAuthCookies(w)

	resp := requestresponse.RevokeAllResponse{}
	resp.Response.RevokedCount = count

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// RevokeUserSessions godoc
// @Summary Отзыв всех сессий указанного пользователя
// @Description Доступен самому пользователю и администратору. Мгновенно инвалидирует все выданные пользователю токены
// @Tags Users
// @Produce json
// @Param id path int true "ID пользователя"
// @Param Authorization header string true "Bearer токен" default(Bearer <access_token>)
// @Success 200 {object} requestresponse.RevokeAllResponse
// @Failure 400 {object} requestresponse.ErrorResponse
// @Failure 401 {object} requestresponse.ErrorResponse
// @Failure 403 {object} requestresponse.ErrorResponse
// @Failure 500 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/users/{id}/sessions [delete]
func (h *AuthenticationHandler) RevokeUserSessions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	targetID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "некорректный id пользователя")
		return
	}

	if !restrictToOwner(w, r, targetID) {
		return
	}

	count, err := h.AuthenticationService.RevokeAllRefreshTokens(ctx, targetID)
	if err != nil {
		log.Println(err)
		sendErrorResponse(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
		return
	}

	resp := requestresponse.RevokeAllResponse{}
	resp.Response.RevokedCount = count

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// GetCurrentUser godoc
// @Summary Информация о текущем пользователе
// @Description Возвращает identity из claims access-токена, без похода в БД
// @Tags Authentication
// @Produce json
// @Param Authorization header string true "Bearer токен" default(Bearer <access_token>)
// @Success 200 {object} requestresponse.CurrentUserResponse
// @Failure 401 {object} requestresponse.ErrorResponse
// @Router /api/auth/me [get]
func (h *AuthenticationHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	claims, err := security.GetClaimsFromContext(r.Context())
	if err != nil {
		sendErrorResponse(w, http.StatusUnauthorized, "не авторизован")
		return
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	resp := requestresponse.CurrentUserResponse{}
	resp.Response.UserID = claims.UserID
	resp.Response.Email = claims.Email
	resp.Response.Roles = claims.Roles

	w.WriteHeader(200)
	json.NewEncoder(w).Encode(resp)
}

// GetCurrentUserHead godoc
// @Summary Информация о текущем пользователе
// @Tags Authentication
// @Param Authorization header string true "Bearer токен" default(Bearer <access_token>)
// @Success 200
// @Failure 401 {object} requestresponse.ErrorResponse
// @Router /api/auth/me [head]
func (h *AuthenticationHandler) GetCurrentUserHead(w http.ResponseWriter, r *http.Request) {
	h.GetCurrentUser(w, r)
}

// refreshTokenFromTransport достает refresh-токен из заголовка или cookie
func refreshTokenFromTransport(r *http.Request) string {
	if header := r.Header.Get(security.RefreshTokenHeader); header != "" {
		return header
	}
	if cookie, err := r.Cookie(security.RefreshTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}
