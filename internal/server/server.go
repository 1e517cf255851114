package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Tomlord1122/todo-app/internal/auth"
	"github.com/Tomlord1122/todo-app/internal/config"
	"github.com/Tomlord1122/todo-app/internal/service"
	"github.com/Tomlord1122/todo-app/internal/throttle"
)

// HealthChecker reports the state of a backing service.
type HealthChecker interface {
	Health() map[string]string
}

// Dependencies are the collaborators the HTTP layer is wired to.
type Dependencies struct {
	Todos      service.TodoService
	Auth       service.AuthService
	Tokens     *auth.Tokens
	DB         HealthChecker
	StorageDir string
	Logger     *slog.Logger

	// Limiter throttles login and register attempts. Nil disables it.
	Limiter throttle.Limiter
}

type Server struct {
	port          int
	todoService   service.TodoService
	authService   service.AuthService
	tokens        *auth.Tokens
	db            HealthChecker
	storageDir    string
	secureCookies bool
	corsOrigins   []string
	log           *slog.Logger
	views         *views
	registry      *prometheus.Registry
	metrics       *metrics
	limiter       throttle.Limiter
}

func newServer(cfg *config.Config, deps Dependencies) (*Server, error) {
	v, err := loadViews()
	if err != nil {
		return nil, fmt.Errorf("load views: %w", err)
	}

	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	registry := prometheus.NewRegistry()
	return &Server{
		port:          cfg.Port,
		todoService:   deps.Todos,
		authService:   deps.Auth,
		tokens:        deps.Tokens,
		db:            deps.DB,
		storageDir:    deps.StorageDir,
		secureCookies: cfg.Production(),
		corsOrigins:   cfg.CORSAllowedOrigins,
		log:           log,
		views:         v,
		registry:      registry,
		metrics:       newMetrics(registry),
		limiter:       deps.Limiter,
	}, nil
}

// NewServer builds the configured *http.Server.
func NewServer(cfg *config.Config, deps Dependencies) (*http.Server, error) {
	appServer, err := newServer(cfg, deps)
	if err != nil {
		return nil, err
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", appServer.port),
		Handler:      appServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}, nil
}
