package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/Tomlord1122/todo-app/internal/auth"
	"github.com/Tomlord1122/todo-app/internal/domain"
	"github.com/Tomlord1122/todo-app/internal/repository"
)

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthService registers and authenticates users.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (auth.Identity, error)
	Login(ctx context.Context, req LoginRequest) (auth.Identity, error)
}

type authService struct {
	users repository.UserRepository
	cost  int
}

// NewAuthService creates an AuthService hashing with bcrypt's default cost.
func NewAuthService(users repository.UserRepository) AuthService {
	return &authService{users: users, cost: bcrypt.DefaultCost}
}

// Register creates the account and returns its identity.
func (s *authService) Register(ctx context.Context, req RegisterRequest) (auth.Identity, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateStruct(req); err != nil {
		return auth.Identity{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{Name: req.Name, Email: req.Email, PasswordHash: string(hash)}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return auth.Identity{}, domain.NewValidationError("email", "The email has already been taken.")
		}
		return auth.Identity{}, fmt.Errorf("create user: %w", err)
	}
	return auth.Identity{UserID: user.ID, Name: user.Name}, nil
}

// Login checks the credentials. Unknown emails and wrong passwords fail alike.
func (s *authService) Login(ctx context.Context, req LoginRequest) (auth.Identity, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateStruct(req); err != nil {
		return auth.Identity{}, err
	}

	failed := domain.NewValidationError("email", "These credentials do not match our records.")

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return auth.Identity{}, failed
		}
		return auth.Identity{}, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return auth.Identity{}, failed
	}
	return auth.Identity{UserID: user.ID, Name: user.Name}, nil
}
