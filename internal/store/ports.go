package store

import (
	"context"
	"time"

	"github.com/hylla/syssla/internal/domain"
)

// CreateTaskInput carries the user-supplied fields for a new task. The
// repository assigns the id and timestamps; new tasks always start as todo.
type CreateTaskInput struct {
	Title       string
	Description string
	DueDate     *time.Time
	CategoryID  string
	Priority    domain.Priority
	TimeRange   string
}

// CreateCategoryInput carries the user-supplied fields for a new category.
type CreateCategoryInput struct {
	Name  string
	Icon  string
	Color string
}

// Repository is the persistence collaborator: a per-user row store. Every
// call is scoped by userID and fails with ErrNotFound when the row does not
// belong to that user.
type Repository interface {
	ListTasks(ctx context.Context, userID string) ([]domain.Task, error)
	ListCategories(ctx context.Context, userID string) ([]domain.Category, error)

	CreateTask(ctx context.Context, userID string, in CreateTaskInput) (domain.Task, error)
	UpdateTask(ctx context.Context, userID, id string, patch domain.TaskPatch) (domain.Task, error)
	DeleteTask(ctx context.Context, userID, id string) error

	CreateCategory(ctx context.Context, userID string, in CreateCategoryInput) (domain.Category, error)
	UpdateCategory(ctx context.Context, userID, id string, patch domain.CategoryPatch) (domain.Category, error)
	DeleteCategory(ctx context.Context, userID, id string) error
}

// User identifies the authenticated owner of the in-memory collections.
type User struct {
	ID    string
	Email string
	Name  string
}

// Identity is the sign-in collaborator. A missing current user means "no data
// available" and clears local collections.
type Identity interface {
	CurrentUser() (User, bool)
	SignIn(ctx context.Context) (User, error)
	SignOut(ctx context.Context) error
}
