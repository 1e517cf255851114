package domain

import "time"

// Todo is a task owned by exactly one user.
type Todo struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description *string   `gorm:"type:text" json:"description"`
	IsFinished  bool      `gorm:"not null;default:false" json:"is_finished"`
	Cover       *string   `gorm:"size:255" json:"cover"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OwnedBy reports whether userID owns the todo.
func (t *Todo) OwnedBy(userID uint) bool {
	return t.UserID == userID
}

// StatusFilter narrows a listing by completion state.
type StatusFilter string

const (
	FilterAll        StatusFilter = ""
	FilterFinished   StatusFilter = "finished"
	FilterUnfinished StatusFilter = "unfinished"
)

// ParseStatusFilter maps any unknown value to FilterAll.
func ParseStatusFilter(s string) StatusFilter {
	switch StatusFilter(s) {
	case FilterFinished, FilterUnfinished:
		return StatusFilter(s)
	default:
		return FilterAll
	}
}

// TodoQuery is the owner-scoped listing request.
type TodoQuery struct {
	UserID uint
	Search string
	Filter StatusFilter
	Page   int
}

// Stats are counted over all of a user's todos.
type Stats struct {
	Total      int64 `json:"total"`
	Finished   int64 `json:"finished"`
	Unfinished int64 `json:"unfinished"`
}
