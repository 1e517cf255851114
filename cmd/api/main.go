package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tomlord1122/todo-app/internal/auth"
	"github.com/Tomlord1122/todo-app/internal/config"
	"github.com/Tomlord1122/todo-app/internal/database"
	"github.com/Tomlord1122/todo-app/internal/logger"
	"github.com/Tomlord1122/todo-app/internal/repository"
	"github.com/Tomlord1122/todo-app/internal/server"
	"github.com/Tomlord1122/todo-app/internal/service"
	"github.com/Tomlord1122/todo-app/internal/storage"
	"github.com/Tomlord1122/todo-app/internal/throttle"
)

func gracefulShutdown(apiServer *http.Server, dbService database.Service, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("shutting down gracefully, press Ctrl+C again to force")
	stop()

	// The server has 5 seconds to finish the requests it is handling.
	ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxTimeout); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	if dbService != nil {
		if err := dbService.Close(); err != nil {
			logger.Error("error closing database connection pool", "error", err)
		} else {
			logger.Info("database connection pool closed")
		}
	}

	done <- true
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	dbService, err := database.New(cfg.DB)
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}

	if cfg.DB.AutoMigrate {
		if err := dbService.Migrate(); err != nil {
			logger.Fatal("failed to auto-migrate database", "error", err)
		}
		logger.Info("database auto-migration complete")
	}

	disk, err := storage.NewDisk(cfg.StorageDir)
	if err != nil {
		logger.Fatal("failed to prepare asset storage", "error", err)
	}

	gormDB := dbService.GetDB()
	todoRepo := repository.NewGormTodoRepository(gormDB)
	userRepo := repository.NewGormUserRepository(gormDB)

	todoService := service.NewTodoService(todoRepo, disk, logger.Get())
	authService := service.NewAuthService(userRepo)

	deps := server.Dependencies{
		Todos:      todoService,
		Auth:       authService,
		Tokens:     auth.NewTokens(cfg.JWTSecret, cfg.SessionTTL),
		DB:         dbService,
		StorageDir: disk.Root(),
		Logger:     logger.Get(),
	}

	if t := cfg.Throttle; t.RedisAddr != "" {
		limiter, err := throttle.NewRedis(context.Background(), t.RedisAddr, t.RedisPassword, t.RedisDB, t.MaxAttempts, t.Window)
		if err != nil {
			logger.Warn("login throttling disabled", "error", err)
		} else {
			defer limiter.Close()
			deps.Limiter = limiter
		}
	}

	apiServer, err := server.NewServer(cfg, deps)
	if err != nil {
		logger.Fatal("failed to build server", "error", err)
	}

	done := make(chan bool, 1)
	go gracefulShutdown(apiServer, dbService, done)

	logger.Info("starting server", "addr", apiServer.Addr)
	err = apiServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server error", "error", err)
	}

	<-done
	logger.Info("graceful shutdown complete")
}
