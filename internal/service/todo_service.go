package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/Tomlord1122/todo-app/internal/auth"
	"github.com/Tomlord1122/todo-app/internal/domain"
	"github.com/Tomlord1122/todo-app/internal/repository"
	"github.com/Tomlord1122/todo-app/internal/storage"
)

const (
	// MaxCoverSize is the largest accepted cover upload (2 MB).
	MaxCoverSize   = 2048 * 1024
	coverNamespace = "covers"
	sniffLength    = 3072
)

var coverTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// CreateTodoRequest holds the data needed to create a new todo.
type CreateTodoRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description *string `json:"description"`
}

// UpdateTodoRequest is a partial update. Nil fields are left unchanged;
// an empty Description clears it.
type UpdateTodoRequest struct {
	Title       *string `json:"title" validate:"omitnil,required,max=255"`
	Description *string `json:"description"`
	IsFinished  *bool   `json:"is_finished"`

	// Invalid holds field errors found while reading the request. They are
	// reported only once the todo is known to exist and belong to the caller.
	Invalid map[string]string `json:"-"`
}

// CoverUpload is a single uploaded image.
type CoverUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// ListTodosRequest carries the listing parameters of GET /.
type ListTodosRequest struct {
	Search string
	Filter string
	Page   int
	// Path and Query are used to build pagination links that keep the
	// active search and filter.
	Path  string
	Query url.Values
}

// TodoResponse is the standard representation of a Todo returned by the service.
type TodoResponse struct {
	ID          uint    `json:"id"`
	UserID      uint    `json:"user_id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	IsFinished  bool    `json:"is_finished"`
	Cover       *string `json:"cover"`
	CoverURL    *string `json:"cover_url"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// Filters echoes the active listing parameters back to the view.
type Filters struct {
	Search string `json:"search"`
	Filter string `json:"filter"`
}

// HomeResponse is everything the list view renders.
type HomeResponse struct {
	Auth    auth.Identity `json:"auth"`
	Todos   TodoPage      `json:"todos"`
	Filters Filters       `json:"filters"`
	Stats   domain.Stats  `json:"stats"`
}

// TodoService defines the operations for managing todos.
// Every operation is scoped to the identity passed in.
type TodoService interface {
	ListTodos(ctx context.Context, who auth.Identity, req ListTodosRequest) (*HomeResponse, error)
	Stats(ctx context.Context, who auth.Identity) (domain.Stats, error)
	CreateTodo(ctx context.Context, who auth.Identity, req CreateTodoRequest) (*TodoResponse, error)
	UpdateTodo(ctx context.Context, who auth.Identity, id uint, req UpdateTodoRequest) (*TodoResponse, error)
	DeleteTodo(ctx context.Context, who auth.Identity, id uint) error
	ReplaceCover(ctx context.Context, who auth.Identity, id uint, upload CoverUpload) (*TodoResponse, error)
}

type todoService struct {
	repo   repository.TodoRepository
	assets storage.AssetStore
	log    *slog.Logger
}

// NewTodoService creates a new instance of todoService.
func NewTodoService(repo repository.TodoRepository, assets storage.AssetStore, log *slog.Logger) TodoService {
	return &todoService{
		repo:   repo,
		assets: assets,
		log:    log,
	}
}

func toResponse(t *domain.Todo) TodoResponse {
	resp := TodoResponse{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		IsFinished:  t.IsFinished,
		Cover:       t.Cover,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
	}
	if t.Cover != nil {
		u := "/storage/" + *t.Cover
		resp.CoverURL = &u
	}
	return resp
}

// Stats counts the caller's todos, ignoring any filter.
func (s *todoService) Stats(ctx context.Context, who auth.Identity) (domain.Stats, error) {
	stats, err := s.repo.Stats(ctx, who.UserID)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("count todos: %w", err)
	}
	return stats, nil
}

// ListTodos returns one filtered page of the caller's todos with stats and page links.
func (s *todoService) ListTodos(ctx context.Context, who auth.Identity, req ListTodosRequest) (*HomeResponse, error) {
	// Stats cover the whole set, before any filter or page applies.
	stats, err := s.Stats(ctx, who)
	if err != nil {
		return nil, err
	}

	page := min(max(req.Page, 1), repository.MaxPage)
	q := domain.TodoQuery{
		UserID: who.UserID,
		Search: strings.TrimSpace(req.Search),
		Filter: domain.ParseStatusFilter(req.Filter),
		Page:   page,
	}

	todos, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}

	items := make([]TodoResponse, 0, len(todos))
	for i := range todos {
		items = append(items, toResponse(&todos[i]))
	}

	path := req.Path
	if path == "" {
		path = "/"
	}
	p := paginator{
		path:    path,
		query:   req.Query,
		current: page,
		perPage: repository.PerPage,
		total:   total,
	}

	return &HomeResponse{
		Auth:    who,
		Todos:   p.page(items),
		Filters: Filters{Search: req.Search, Filter: req.Filter},
		Stats:   stats,
	}, nil
}

// CreateTodo adds an unfinished todo owned by who.
func (s *todoService) CreateTodo(ctx context.Context, who auth.Identity, req CreateTodoRequest) (*TodoResponse, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	todo := &domain.Todo{
		UserID:      who.UserID,
		Title:       req.Title,
		Description: SanitizeDescription(req.Description),
		IsFinished:  false,
	}
	if err := s.repo.Create(ctx, todo); err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}

	resp := toResponse(todo)
	return &resp, nil
}

// loadOwned fetches id and checks it belongs to who. Not-found is
// reported before ownership.
func loadOwned(ctx context.Context, repo repository.TodoRepository, who auth.Identity, id uint) (*domain.Todo, error) {
	todo, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !todo.OwnedBy(who.UserID) {
		return nil, domain.ErrForbidden
	}
	return todo, nil
}

// UpdateTodo applies a partial update to a todo owned by who.
func (s *todoService) UpdateTodo(ctx context.Context, who auth.Identity, id uint, req UpdateTodoRequest) (*TodoResponse, error) {
	var updated *domain.Todo
	err := s.repo.InTx(ctx, func(repo repository.TodoRepository) error {
		todo, err := loadOwned(ctx, repo, who, id)
		if err != nil {
			return err
		}

		if req.Title != nil {
			trimmed := strings.TrimSpace(*req.Title)
			req.Title = &trimmed
		}
		if err := checkPatch(req); err != nil {
			return err
		}

		if req.Title != nil {
			todo.Title = *req.Title
		}
		if req.Description != nil {
			todo.Description = SanitizeDescription(req.Description)
		}
		if req.IsFinished != nil {
			todo.IsFinished = *req.IsFinished
		}

		if err := repo.Update(ctx, todo); err != nil {
			return fmt.Errorf("update todo %d: %w", id, err)
		}
		updated = todo
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := toResponse(updated)
	return &resp, nil
}

// DeleteTodo removes the todo and its cover file.
func (s *todoService) DeleteTodo(ctx context.Context, who auth.Identity, id uint) error {
	return s.repo.InTx(ctx, func(repo repository.TodoRepository) error {
		todo, err := loadOwned(ctx, repo, who, id)
		if err != nil {
			return err
		}

		if todo.Cover != nil {
			s.releaseAsset(ctx, *todo.Cover)
		}

		if err := repo.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete todo %d: %w", id, err)
		}
		return nil
	})
}

// ReplaceCover stores the new image before the old one is removed, so a
// failed upload never leaves the todo pointing at a deleted file.
func (s *todoService) ReplaceCover(ctx context.Context, who auth.Identity, id uint, upload CoverUpload) (*TodoResponse, error) {
	var (
		updated  *domain.Todo
		previous *string
	)
	err := s.repo.InTx(ctx, func(repo repository.TodoRepository) error {
		todo, err := loadOwned(ctx, repo, who, id)
		if err != nil {
			return err
		}

		content, ext, err := checkCover(upload)
		if err != nil {
			return err
		}

		key, err := s.assets.Store(ctx, content, coverNamespace, ext)
		if err != nil {
			return fmt.Errorf("store cover: %w", err)
		}

		previous = todo.Cover
		todo.Cover = &key
		if err := repo.Update(ctx, todo); err != nil {
			s.releaseAsset(ctx, key)
			return fmt.Errorf("update cover of todo %d: %w", id, err)
		}
		updated = todo
		return nil
	})
	if err != nil {
		return nil, err
	}

	if previous != nil {
		s.releaseAsset(ctx, *previous)
	}

	resp := toResponse(updated)
	return &resp, nil
}

// checkPatch merges the field errors collected while reading the request
// with the struct rules. The first message per field wins.
func checkPatch(req UpdateTodoRequest) error {
	fields := make(map[string]string, len(req.Invalid))
	for k, v := range req.Invalid {
		fields[k] = v
	}

	var ve *domain.ValidationError
	if err := validateStruct(req); errors.As(err, &ve) {
		for k, v := range ve.Fields {
			if _, ok := fields[k]; !ok {
				fields[k] = v
			}
		}
	} else if err != nil {
		return err
	}

	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// releaseAsset deletes a stored file. Failures are logged, not returned:
// the row store and asset store are not transactional together.
func (s *todoService) releaseAsset(ctx context.Context, key string) {
	err := s.assets.Delete(ctx, key)
	switch {
	case err == nil, errors.Is(err, domain.ErrAssetNotFound):
	default:
		s.log.Warn("failed to delete stored asset", "key", key, "error", err)
	}
}

// checkCover enforces the size and format rules and returns a reader
// positioned at the start of the file plus the extension to store it under.
func checkCover(upload CoverUpload) (io.Reader, string, error) {
	if upload.Size > MaxCoverSize {
		return nil, "", domain.NewValidationError("cover", "The cover field must not be greater than 2048 kilobytes.")
	}
	if upload.Content == nil {
		return nil, "", domain.NewValidationError("cover", "The cover field is required.")
	}

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(upload.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, "", fmt.Errorf("read cover: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, "", domain.NewValidationError("cover", "The cover field is required.")
	}

	mt := mimetype.Detect(head)
	ext, ok := coverTypes[mt.String()]
	if !ok {
		return nil, "", domain.NewValidationError("cover", "The cover field must be a file of type: jpeg, png, jpg, webp.")
	}

	return io.MultiReader(bytes.NewReader(head), upload.Content), ext, nil
}
