package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the api binary reads from the environment.
type Config struct {
	Port     int
	AppEnv   string
	LogLevel string
	LogJSON  bool

	DB DBConfig

	JWTSecret  string
	SessionTTL time.Duration

	StorageDir string

	CORSAllowedOrigins []string

	Throttle ThrottleConfig
}

// ThrottleConfig limits login and register attempts per client. An empty
// RedisAddr disables throttling.
type ThrottleConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MaxAttempts   int
	Window        time.Duration
}

// DBConfig describes the postgres connection.
type DBConfig struct {
	Host        string
	Port        string
	Username    string
	Password    string
	Database    string
	Schema      string
	AutoMigrate bool
}

// DSN returns the key/value connection string understood by gorm's postgres driver.
func (c DBConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.Host, c.Username, c.Password, c.Database, c.Port)
	if c.Schema != "" {
		dsn += " search_path=" + c.Schema
	}
	return dsn
}

// Production reports whether the app runs with APP_ENV=production.
func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnvInt("PORT", 8080),
		AppEnv:   getEnv("APP_ENV", "local"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogJSON:  getEnvBool("LOG_JSON", false),
		DB: DBConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			Username:    getEnv("DB_USERNAME", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			Database:    getEnv("DB_DATABASE", "todo"),
			Schema:      getEnv("DB_SCHEMA", "public"),
			AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),
		},
		JWTSecret:          os.Getenv("JWT_SECRET"),
		SessionTTL:         getEnvDuration("SESSION_TTL", 24*time.Hour),
		StorageDir:         getEnv("STORAGE_DIR", "./storage/public"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"https://*", "http://*"}),
		Throttle: ThrottleConfig{
			RedisAddr:     os.Getenv("REDIS_ADDR"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			MaxAttempts:   getEnvInt("LOGIN_MAX_ATTEMPTS", 5),
			Window:        getEnvDuration("LOGIN_THROTTLE_WINDOW", time.Minute),
		},
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		fmt.Printf("Warning: Invalid %s environment variable '%s'. Using default %d.\n", key, value, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
