package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Tomlord1122/todo-app/internal/config"
	"github.com/Tomlord1122/todo-app/internal/domain"
)

// Service exposes the gorm handle plus pool lifecycle and health.
type Service interface {
	Health() map[string]string
	Close() error
	GetDB() *gorm.DB
	Migrate() error
}

const (
	maxIdleConns = 10
	maxOpenConns = 100
)

type service struct {
	db   *gorm.DB
	name string
}

// New opens the connection pool described by cfg.
func New(cfg config.DBConfig) (Service, error) {
	newLogger := logger.New(
		slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &service{db: db, name: cfg.Database}, nil
}

func (s *service) GetDB() *gorm.DB {
	return s.db
}

// Migrate creates or alters the users and todos tables.
func (s *service) Migrate() error {
	return s.db.AutoMigrate(&domain.User{}, &domain.Todo{})
}

// Health pings the pool and reports its statistics.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	sqlDB, err := s.db.DB()
	if err != nil {
		return map[string]string{"status": "down", "error": fmt.Sprintf("get underlying sql.DB: %v", err)}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		slog.Warn("database ping failed", "database", s.name, "error", err)
		return map[string]string{"status": "down", "error": fmt.Sprintf("db down: %v", err)}
	}

	st := sqlDB.Stats()
	return map[string]string{
		"status":              "up",
		"message":             poolMessage(st),
		"open_connections":    strconv.Itoa(st.OpenConnections),
		"in_use":              strconv.Itoa(st.InUse),
		"idle":                strconv.Itoa(st.Idle),
		"wait_count":          strconv.FormatInt(st.WaitCount, 10),
		"wait_duration":       st.WaitDuration.String(),
		"max_idle_closed":     strconv.FormatInt(st.MaxIdleClosed, 10),
		"max_lifetime_closed": strconv.FormatInt(st.MaxLifetimeClosed, 10),
	}
}

// poolMessage describes the most pressing pool condition.
func poolMessage(st sql.DBStats) string {
	open := int64(st.OpenConnections)
	switch {
	case st.MaxLifetimeClosed > open/2:
		return "Many connections are being closed due to max lifetime, consider increasing ConnMaxLifetime."
	case st.MaxIdleClosed > open/2 && st.OpenConnections > st.Idle:
		return "Many idle connections are being closed, consider revising MaxIdleConns."
	case st.WaitCount > 1000:
		return "The database has a high number of wait events."
	case st.OpenConnections > maxOpenConns*8/10:
		return "The database is experiencing heavy load."
	default:
		return "It's healthy"
	}
}

func (s *service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	slog.Info("closing connection pool", "database", s.name)
	return sqlDB.Close()
}
