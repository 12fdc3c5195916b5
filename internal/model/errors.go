package model

import "errors"

// Ошибки сервиса аутентификации. Наружу отдаются только эти виды,
// чтобы не раскрывать, какая именно проверка не прошла.
// Обработчики сопоставляют их через errors.Is
var (
	// ErrInvalidCredentials : неверная пара логин/пароль, пользователь не найден
	// или деактивирован. Никогда не уточняет, что именно не так
	ErrInvalidCredentials = errors.New("неверный логин или пароль")

	// ErrInvalidOrExpiredToken : refresh-токен не найден, просрочен или уже
	// был обменян; также невалидная подпись или алгоритм access-токена
	ErrInvalidOrExpiredToken = errors.New("невалидный или просроченный токен")

	// ErrSessionRevoked : версия из claims не совпадает с текущей версией
	// пользователя. Клиенту отдается так же, как просроченный токен,
	// но в логах различается
	ErrSessionRevoked = errors.New("сессия отозвана")

	// ErrIncorrectCurrentPassword : только для смены пароля
	ErrIncorrectCurrentPassword = errors.New("неверный текущий пароль")
)
