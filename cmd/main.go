package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auth-session-server/config"
	"auth-session-server/internal/handler"
	"auth-session-server/internal/repository"
	"auth-session-server/internal/security"
	"auth-session-server/internal/service"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	httpSwagger "github.com/swaggo/http-swagger"
)

// versionCacheTTL ограничивает жизнь записи в кэше версий; сам kill-switch
// не зависит от TTL, так как отзыв пишет новую версию в кэш сразу
const versionCacheTTL = time.Hour

// @title Auth-session-server
// @version 1.0
// @description Сервис аутентификации: выпуск и ротация токенов, отзыв сессий

// @host localhost:8080

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	db, err := config.SetupDatabase(cfg.DatabaseConfig.DSN)
	if err != nil {
		log.Fatalf("Не удалось подключиться к БД: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Ошибка при закрытии БД: %v", err)
		}
	}()

	redisClient, err := config.SetupRedis(&cfg.RedisConfig)
	if err != nil {
		log.Fatalf("Ошибка подключения к Redis: %v", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Printf("Ошибка при закрытии Redis: %v", err)
		}
	}()

	srv, router := config.SetupServer(cfg.ServerAddr)

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	versionCache := repository.NewVersionCacheRepository(redisClient, versionCacheTTL)

	jwtService := security.NewJWTService(&cfg.JWT)
	authService := service.NewAuthenticationService(sessionRepo, cfg, jwtService, userRepo, versionCache)
	userService := service.NewUserService(userRepo, jwtService, sessionRepo, versionCache)

	authHandler := handler.NewAuthenticationHandler(authService)
	userHandler := handler.NewUserHandler(userService)

	router.Use(config.DBMiddleware(db))
	router.Get("/swagger/*", httpSwagger.WrapHandler)

	setupAuthRoutes(router, authHandler, jwtService, authService, cfg)
	setupUserRoutes(router, userHandler, authHandler, jwtService, authService, cfg)

	runServer(ctx, srv)
}

func setupAuthRoutes(r chi.Router, h *handler.AuthenticationHandler, jwtService *security.JWTService, authService *service.AuthenticationService, cfg *config.AppConfig) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(security.JWTMiddleware(jwtService, authService, cfg.Admin.AdminToken))
			r.Use(security.RequireAuthenticated)
			r.Get("/me", h.GetCurrentUser)
			r.Head("/me", h.GetCurrentUserHead)
			r.Post("/revoke-all", h.RevokeAllSessions)
		})
		r.Group(func(r chi.Router) {
			r.Post("/login", h.Login)
			r.Post("/refresh", h.RefreshToken)
			r.Post("/logout", h.Logout)
		})
	})
}

func setupUserRoutes(r chi.Router, h *handler.UserHandler, authHandler *handler.AuthenticationHandler, jwtService *security.JWTService, authService *service.AuthenticationService, cfg *config.AppConfig) {
	r.Route("/api/users", func(r chi.Router) {
		r.Use(security.JWTMiddleware(jwtService, authService, cfg.Admin.AdminToken))
		r.Use(security.RequireAuthenticated)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetUser)
			r.Head("/", h.GetUserHead)
			r.Put("/", h.UpdateProfile)
			r.Put("/password", h.ChangePassword)
			r.Delete("/sessions", authHandler.RevokeUserSessions)
		})
	})
}

func runServer(ctx context.Context, server *http.Server) {
	serverErrors := make(chan error, 1)
	go func() {
		log.Println("сервер запущен на " + server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil {
			log.Fatalf("ошибка работы сервера: %v", err)
		}
	case sig := <-signalChannel:
		log.Printf("получен сигнал %v остановки работы сервера ", sig)
	}

	shutDownCtx, shutDownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutDownCancel()

	if err := server.Shutdown(shutDownCtx); err != nil {
		log.Printf("ошибка при остановке сервера: %v", err)
	} else {
		log.Println("Сервер успешно остановлен")
	}
}
