package repository

import (
	"context"
	"errors"
	"math"
	"strings"

	"gorm.io/gorm"

	"github.com/Tomlord1122/todo-app/internal/domain"
)

// PerPage is the fixed page size of todo listings.
const PerPage = 20

// MaxPage is the highest page whose offset still fits in an int.
const MaxPage = math.MaxInt / PerPage

// TodoRepository defines the owner-scoped todo data operations.
type TodoRepository interface {
	Create(ctx context.Context, todo *domain.Todo) error
	// FindByID returns domain.ErrNotFound when no row has the id.
	FindByID(ctx context.Context, id uint) (*domain.Todo, error)
	// List returns one page of todos matching q and the total number of matches.
	List(ctx context.Context, q domain.TodoQuery) ([]domain.Todo, int64, error)
	Stats(ctx context.Context, userID uint) (domain.Stats, error)
	Update(ctx context.Context, todo *domain.Todo) error
	Delete(ctx context.Context, id uint) error
	// InTx runs fn against a repository bound to a single transaction.
	InTx(ctx context.Context, fn func(repo TodoRepository) error) error
}

type gormTodoRepository struct {
	db *gorm.DB
}

// NewGormTodoRepository creates a new GORM todo repository
func NewGormTodoRepository(db *gorm.DB) TodoRepository {
	return &gormTodoRepository{db: db}
}

// Create adds a new todo to the database
func (r *gormTodoRepository) Create(ctx context.Context, todo *domain.Todo) error {
	return r.db.WithContext(ctx).Create(todo).Error
}

// FindByID retrieves a todo by its ID
func (r *gormTodoRepository) FindByID(ctx context.Context, id uint) (*domain.Todo, error) {
	var todo domain.Todo
	if err := r.db.WithContext(ctx).First(&todo, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &todo, nil
}

// List runs the filtered count and the page query
func (r *gormTodoRepository) List(ctx context.Context, q domain.TodoQuery) ([]domain.Todo, int64, error) {
	scope := r.filtered(ctx, q)

	var total int64
	if err := scope.Session(&gorm.Session{}).Model(&domain.Todo{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := min(max(q.Page, 1), MaxPage)

	todos := make([]domain.Todo, 0, PerPage)
	err := scope.Session(&gorm.Session{}).
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * PerPage).
		Limit(PerPage).
		Find(&todos).Error
	if err != nil {
		return nil, 0, err
	}
	return todos, total, nil
}

// filtered builds the WHERE clause shared by the count and page queries.
// Search and status predicates are ANDed onto the owner scope.
func (r *gormTodoRepository) filtered(ctx context.Context, q domain.TodoQuery) *gorm.DB {
	tx := r.db.WithContext(ctx).Model(&domain.Todo{}).Where("user_id = ?", q.UserID)

	if search := strings.TrimSpace(q.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		tx = tx.Where("(title ILIKE ? OR description ILIKE ?)", pattern, pattern)
	}

	switch q.Filter {
	case domain.FilterFinished:
		tx = tx.Where("is_finished = ?", true)
	case domain.FilterUnfinished:
		tx = tx.Where("is_finished = ?", false)
	}
	return tx
}

// Stats aggregates total and finished counts in one query
func (r *gormTodoRepository) Stats(ctx context.Context, userID uint) (domain.Stats, error) {
	var row struct {
		Total    int64
		Finished int64
	}
	err := r.db.WithContext(ctx).
		Model(&domain.Todo{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN is_finished THEN 1 ELSE 0 END), 0) AS finished").
		Where("user_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.Stats{
		Total:      row.Total,
		Finished:   row.Finished,
		Unfinished: row.Total - row.Finished,
	}, nil
}

// Update saves every column of the todo
func (r *gormTodoRepository) Update(ctx context.Context, todo *domain.Todo) error {
	return r.db.WithContext(ctx).Save(todo).Error
}

// Delete removes a todo by its ID
func (r *gormTodoRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&domain.Todo{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *gormTodoRepository) InTx(ctx context.Context, fn func(repo TodoRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTodoRepository{db: tx})
	})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
