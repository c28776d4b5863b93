package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/chatgate/adapters/llm"
	"github.com/satriahrh/chatgate/adapters/mongo"
	"github.com/satriahrh/chatgate/adapters/sqlite"
	"github.com/satriahrh/chatgate/domain/repositories"
	"github.com/satriahrh/chatgate/internal/api"
	"github.com/satriahrh/chatgate/internal/auth"
	"github.com/satriahrh/chatgate/internal/config"
	"github.com/satriahrh/chatgate/internal/session"
	"github.com/satriahrh/chatgate/internal/websocket"
	"github.com/satriahrh/chatgate/usecase"
)

const shutdownTimeout = 10 * time.Second

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repositories.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		return sqlite.NewStore(cfg.SQLitePath, logger)
	case config.StoreMongo:
		return mongo.NewStore(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	}
	return nil, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
	}

	// Initialize adapters
	factory := llm.NewFactory(llm.Options{
		BaseURLs: cfg.BaseURLs(),
		Timeout:  cfg.ProviderTimeout,
		Logger:   logger,
	})

	// Initialize usecase services
	opts := []usecase.Option{}
	if cfg.HasDefaultCredential() {
		opts = append(opts, usecase.WithDefaultCredential(cfg.DefaultKind(), cfg.DefaultModel, cfg.DefaultAPIKey))
	}
	if store != nil {
		opts = append(opts,
			usecase.WithPersistence(store.Sessions, store.Messages),
			usecase.WithCredentialStore(store.APIKeys))
	}
	registry := session.NewRegistry()
	chatService := usecase.NewChatService(registry, factory, logger, opts...)

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	hub := websocket.NewHub(chatService, logger,
		websocket.WithChunkDelay(cfg.StreamChunkDelay),
		websocket.WithAllowedOrigins(cfg.FrontendOrigins))
	go hub.Run(hubCtx)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error))
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.FrontendOrigins,
		AllowCredentials: true,
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	handlerOpts := []api.HandlerOption{
		api.WithHub(hub),
		api.WithChunkDelay(cfg.StreamChunkDelay),
	}
	if store != nil {
		handlerOpts = append(handlerOpts, api.WithStore(store))
	}
	api.InitRoutes(e, api.NewHandler(chatService, logger, handlerOpts...), auth.NewValidator(cfg.JWTSecret))

	// Graceful shutdown
	go func() {
		if err := e.Start(cfg.Address()); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("address", cfg.Address()),
		zap.String("store", cfg.StoreDriver),
		zap.Bool("defaultProvider", cfg.HasDefaultCredential()))

	// Wait for interrupt signal to gracefully shutdown the server
	quit, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-quit.Done()

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	stopHub()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if store != nil {
		if err := store.Close(shutdownCtx); err != nil {
			logger.Error("Failed to close store", zap.Error(err))
		}
	}

	logger.Info("Server exited", zap.Int("liveSessions", registry.Len()))
	return nil
}
