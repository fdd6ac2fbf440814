package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scriptshare/internal/server/api"
	"scriptshare/internal/server/auth"
	"scriptshare/internal/server/config"
	"scriptshare/internal/server/database"
	"scriptshare/internal/server/service"
	"scriptshare/internal/server/storage"
)

func main() {
	// Structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load config
	cfg := config.Load()
	slog.Info("configuration loaded",
		"port", cfg.Port,
		"uploads_path", cfg.UploadsPath,
		"base_url", cfg.BaseURL,
	)

	// Connect to database
	ctx := context.Background()
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	if err := db.RunMigrations(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations complete")

	// Initialize asset storage
	store := storage.NewFileSystemStore(cfg.UploadsPath)
	if err := store.EnsureDirs(); err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	slog.Info("asset storage initialized", "path", cfg.UploadsPath)

	// Initialize repositories and services
	scriptRepo := database.NewScriptRepository(db)
	userRepo := database.NewUserRepository(db)
	configRepo := database.NewConfigRepository(db)

	issuer := auth.NewIssuer(cfg.TokenSecret, cfg.TokenTTL)
	scriptSvc := service.NewScriptService(scriptRepo, userRepo, configRepo, store, cfg.BaseURL)
	userSvc := service.NewUserService(userRepo, issuer)
	configSvc := service.NewConfigService(configRepo)

	// Setup HTTP router
	handler := api.NewHandler(scriptSvc, userSvc, configSvc, db)
	authmw := api.NewAuthMiddleware(issuer, userSvc)
	e := api.SetupRouter(handler, authmw, store.Root(), cfg)

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		slog.Info("starting server", "addr", addr, "base_url", cfg.BaseURL)
		if err := e.Start(addr); err != nil {
			slog.Info("server stopped", "reason", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down", "signal", sig)

	// Stop accepting new requests, finish in-flight with 30s timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server exited cleanly")
}
