package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"focusflow/backend/internal/config"
	"focusflow/backend/internal/db"
	"focusflow/backend/internal/handler"
	"focusflow/backend/internal/realtime"
	"focusflow/backend/internal/repository"
	"focusflow/backend/internal/router"
	"focusflow/backend/internal/service"
	"focusflow/backend/internal/timer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	migrations, err := db.Migrations(cfg.MigrationsDir)
	if err != nil {
		logger.Error("load migrations", "error", err)
		os.Exit(1)
	}
	applied, err := db.RunMigrations(database, migrations)
	if err != nil {
		logger.Error("run migrations", "error", err)
		os.Exit(1)
	}
	if applied > 0 {
		logger.Info("migrations applied", "count", applied)
	}

	hub := realtime.NewHub(cfg.WebSocketOrigins, logger)

	userRepo := repository.NewUserRepository(database)
	timerRepo := repository.NewTimerRepository(database, cfg.Timer.Work)

	authService := service.NewAuthService(userRepo, timerRepo, cfg.JWTSecret, cfg.TokenTTL, cfg.Timer.Work)
	timerService := service.NewTimerService(
		func(userID string) timer.Store { return timerRepo.ForUser(userID) },
		hub,
		cfg.Timer,
		cfg.TickInterval,
		logger,
	)
	hub.SetController(timerService)

	authHandler := handler.NewAuthHandler(authService, cfg.SessionCookie, cfg.SecureCookies)
	timerHandler := handler.NewTimerHandler(timerService, hub)

	engine := router.New(authService, authHandler, timerHandler, router.Options{
		CORSOrigins:   cfg.CORSOrigins,
		SessionCookie: cfg.SessionCookie,
	})

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: engine,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-sigCh
		logger.Info("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		hub.Close()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
		if err := timerService.Close(ctx); err != nil {
			logger.Warn("flush timers", "error", err)
		}
	}()

	logger.Info("backend listening", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Error("run server", "error", err)
		os.Exit(1)
	}
	<-done
}
