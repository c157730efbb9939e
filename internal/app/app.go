package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-auth-service/internal/cache"
	"go-auth-service/internal/config"
	"go-auth-service/internal/database"
	"go-auth-service/internal/handler"
	"go-auth-service/internal/middleware"
	"go-auth-service/internal/oauth"
	"go-auth-service/internal/observability"
	"go-auth-service/internal/repository"
	"go-auth-service/internal/router"
	"go-auth-service/internal/service"
)

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Environment); err != nil {
		slog.Warn("sentry initialization failed", "error", err)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)
	slog.Info("database ready")

	var userCache cache.UserCache = cache.NewNoop()
	evictionCtx, evictionCancel := context.WithCancel(context.Background())
	if cfg.CacheEnabled {
		memoryCache := cache.NewMemory(cfg.CacheTTL)
		go memoryCache.StartEvictionTicker(evictionCtx, time.Minute)
		userCache = memoryCache
	}

	userService := service.NewUserService(userRepo, userCache, cfg.BcryptCost)
	authService, err := service.NewAuthService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.RefreshTokenTTL, userService, tokenRepo, slog.Default())
	if err != nil {
		evictionCancel()
		db.Close()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}

	oauthManager := oauth.NewManager(cfg.OAuthRedirectBase, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.YandexClientID, cfg.YandexClientSecret)

	authMiddleware := middleware.NewAuthMiddleware(authService)
	secureCookies := cfg.Environment == "production"
	authHandler := handler.NewAuthHandler(authService, oauthManager, secureCookies)
	userHandler := handler.NewUserHandler(userService)

	appRouter := router.New(cfg, authMiddleware, authHandler, userHandler)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      appRouter,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		db:     db,
		cleanupFuncs: []func(){
			evictionCancel,
			db.Close,
			observability.FlushSentry,
		},
	}, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	slog.Info("server stopped")
	return nil
}
