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
	"auth-session-server/internal/util"

	"github.com/go-chi/chi/v5"
)

type UserHandler struct {
	ports.UserService
}

func NewUserHandler(userService ports.UserService) *UserHandler {
	return &UserHandler{userService}
}

// GetUser godoc
// @Summary Получение информации о пользователе
// @Description Возвращает профиль и роли. Доступен самому пользователю и администратору
// @Tags Users
// @Produce json
// @Param id path int true "ID пользователя"
// @Param Authorization header string true "Bearer токен" default(Bearer <access_token>)
// @Success 200 {object} requestresponse.UserResponse
// @Failure 400 {object} requestresponse.ErrorResponse
// @Failure 403 {object} requestresponse.ErrorResponse
// @Failure 404 {object} requestresponse.ErrorResponse
// @Failure 500 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/users/{id} [get]
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	targetID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "некорректный id пользователя")
		return
	}

	if !restrictToOwner(w, r, targetID) {
		return
	}

	user, roles, err := h.UserService.GetUser(r.Context(), targetID)
	if err != nil {
		log.Println(err)
		sendErrorResponse(w, http.StatusNotFound, "пользователь не найден")
		return
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	resp := requestresponse.UserResponse{}
	resp.Data.ID = user.ID
	resp.Data.Email = user.Email
	resp.Data.FullName = user.FullName
	resp.Data.Active = user.Active
	resp.Data.LastLoginAt = user.LastLoginAt
	resp.Data.Roles = make([]string, 0, len(roles))
	for _, role := range roles {
		resp.Data.Roles = append(resp.Data.Roles, role.Name)
	}

	w.WriteHeader(200)
	json.NewEncoder(w).Encode(resp)
}

// GetUserHead godoc
// @Summary Проверка существования пользователя
// @Tags Users
// @Param id path int true "ID пользователя"
// @Param Authorization header string true "Bearer токен" default(Bearer <access_token>)
// @Success 200
// @Failure 403 {object} requestresponse.ErrorResponse
// @Failure 404 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/users/{id} [head]
func (h *UserHandler) GetUserHead(w http.ResponseWriter, r *http.Request) {
	h.GetUser(w, r)
}

// UpdateProfile godoc
// @Summary Обновление профиля
// @Description Меняет email и имя пользователя. Доступен самому пользователю и администратору
// @Tags Users
// @Accept json
// @Produce json
// @Param id path int true "ID пользователя"
// @Param body body requestresponse.UpdateProfileRequest true "Тело запроса"
// @Param Authorization header string true "Bearer токен" default(Bearer <access_token>)
// @Success 200 {object} requestresponse.UpdateProfileResponse
// @Failure 400 {object} requestresponse.ErrorResponse
// @Failure 403 {object} requestresponse.ErrorResponse
// @Failure 500 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/users/{id} [put]
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	targetID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "некорректный id пользователя")
		return
	}

	if !restrictToOwner(w, r, targetID) {
		return
	}

	var req requestresponse.UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	user, err := h.UserService.UpdateProfile(r.Context(), targetID, req.Email, req.FullName)
	if err != nil {
		log.Println(err)
		sendErrorResponse(w, http.StatusBadRequest, "не удалось обновить профиль")
		return
	}

	resp := requestresponse.UpdateProfileResponse{}
	resp.Response.Email = user.Email
	resp.Response.FullName = user.FullName

	w.WriteHeader(200)
	json.NewEncoder(w).Encode(resp)
}

// ChangePassword godoc
// @Summary Смена пароля
// @Description Требует текущий пароль. Отзывает все сессии пользователя и выдает устройству свежую пару токенов
// @Tags Users
// @Accept json
// @Produce json
// @Param id path int true "ID пользователя"
// @Param body body requestresponse.ChangePasswordRequest true "Тело запроса"
// @Param Authorization header string true "Bearer токен" default(Bearer <access_token>)
// @Success 200 {object} requestresponse.ChangePasswordResponse
// @Failure 400 {object} requestresponse.ErrorResponse
// @Failure 403 {object} requestresponse.ErrorResponse
// @Failure 500 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/users/{id}/password [put]
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	targetID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "некорректный id пользователя")
		return
	}

	if !restrictToOwner(w, r, targetID) {
		return
	}

	var req requestresponse.ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	pair, err := h.UserService.ChangePassword(r.Context(), targetID, req.CurrentPassword, req.NewPassword, r.UserAgent(), r.RemoteAddr)
	if err != nil {
		log.Println(err)
		switch {
		case errors.Is(err, model.ErrIncorrectCurrentPassword):
			sendErrorResponse(w, http.StatusBadRequest, "неверный текущий пароль")
		default:
			sendErrorResponse(w, http.StatusBadRequest, "не удалось сменить пароль")
		}
		return
	}

	security.EmitTokens(w, pair)

	resp := requestresponse.ChangePasswordResponse{}
	resp.Response.Updated = true
	resp.Response.AccessToken = pair.AccessToken
	resp.Response.RefreshToken = pair.RefreshToken
	resp.Response.ExpiresAt = pair.ExpiresAt

	w.WriteHeader(200)
	json.NewEncoder(w).Encode(resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		util.HandleError(w, "invalid request body", 400)
		return err
	}
	return nil
}

// restrictToOwner проверяет, имеет ли пользователь право доступа к ресурсу
func restrictToOwner(w http.ResponseWriter, r *http.Request, targetID int64) bool {
	claims, ok := r.Context().Value(security.UserContextKey).(*security.Claims)
	if !ok || claims == nil {
		sendErrorResponse(w, http.StatusUnauthorized, "unauthorized")
		return false
	}

	if !claims.IsAdmin && claims.UserID != targetID {
		sendErrorResponse(w, http.StatusForbidden, "доступ запрещён")
		return false
	}

	return true
}

func sendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	util.HandleError(w, message, statusCode)
}
