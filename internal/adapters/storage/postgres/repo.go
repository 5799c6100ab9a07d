// Package postgres persists tasks and categories in a hosted Postgres
// database. It is the remote backend behind signed-in sessions and exposes
// the same Repository contract as the sqlite adapter.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/hylla/syssla/internal/domain"
	"github.com/hylla/syssla/internal/store"
)

// driverName defines a package constant value.
const driverName = "postgres"

// Repository implements store.Repository over a Postgres connection. Row ids
// and timestamps are assigned here, never by the caller.
type Repository struct {
	db    *sql.DB
	newID func() string
	now   func() time.Time
}

// Open connects with a lib/pq DSN and ensures the schema exists.
func Open(dsn string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := &Repository{
		db:    db,
		newID: uuid.NewString,
		now:   time.Now,
	}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			icon TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		);`,
		// category_id is a soft reference: deleting a category must leave
		// its tasks in place, so no foreign key.
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'todo',
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			due_date TIMESTAMPTZ,
			category_id TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL DEFAULT '',
			time_range TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_user_created ON tasks(user_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_categories_user_created ON categories(user_id, created_at ASC);`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
	}
	return nil
}

// ListTasks lists the user's tasks newest first.
func (r *Repository) ListTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, description, status, completed, due_date, category_id, priority, time_range, created_at, updated_at
		FROM tasks
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// ListCategories lists the user's categories oldest first.
func (r *Repository) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, icon, color, created_at
		FROM categories
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Category{}
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cat)
	}
	return out, rows.Err()
}

// CreateTask creates task.
func (r *Repository) CreateTask(ctx context.Context, userID string, in store.CreateTaskInput) (domain.Task, error) {
	task, err := domain.NewTask(domain.TaskInput{
		ID:          r.newID(),
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		DueDate:     in.DueDate,
		CategoryID:  in.CategoryID,
		Priority:    in.Priority,
		TimeRange:   in.TimeRange,
	}, r.now())
	if err != nil {
		return domain.Task{}, err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tasks(id, user_id, title, description, status, completed, due_date, category_id, priority, time_range, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		string(task.Status),
		task.Completed,
		nullableTime(task.DueDate),
		task.CategoryID,
		string(task.Priority),
		task.TimeRange,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

// UpdateTask loads the row, applies the patch, and writes it back. The row
// must belong to userID or the call fails with store.ErrNotFound.
func (r *Repository) UpdateTask(ctx context.Context, userID, id string, patch domain.TaskPatch) (domain.Task, error) {
	task, err := r.getTask(ctx, userID, id)
	if err != nil {
		return domain.Task{}, err
	}
	if err := task.Apply(patch, r.now()); err != nil {
		return domain.Task{}, err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, completed = $4, due_date = $5, category_id = $6, priority = $7, time_range = $8, updated_at = $9
		WHERE id = $10 AND user_id = $11
	`,
		task.Title,
		task.Description,
		string(task.Status),
		task.Completed,
		nullableTime(task.DueDate),
		task.CategoryID,
		string(task.Priority),
		task.TimeRange,
		task.UpdatedAt,
		id,
		userID,
	)
	if err != nil {
		return domain.Task{}, err
	}
	if err := translateNoRows(res); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// DeleteTask deletes task.
func (r *Repository) DeleteTask(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// CreateCategory creates category.
func (r *Repository) CreateCategory(ctx context.Context, userID string, in store.CreateCategoryInput) (domain.Category, error) {
	cat, err := domain.NewCategory(r.newID(), userID, in.Name, in.Icon, in.Color, r.now())
	if err != nil {
		return domain.Category{}, err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO categories(id, user_id, name, icon, color, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, cat.ID, cat.UserID, cat.Name, cat.Icon, cat.Color, cat.CreatedAt)
	if err != nil {
		return domain.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return cat, nil
}

// UpdateCategory updates state for the requested operation.
func (r *Repository) UpdateCategory(ctx context.Context, userID, id string, patch domain.CategoryPatch) (domain.Category, error) {
	cat, err := r.getCategory(ctx, userID, id)
	if err != nil {
		return domain.Category{}, err
	}
	if err := cat.Apply(patch); err != nil {
		return domain.Category{}, err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE categories
		SET name = $1, icon = $2, color = $3
		WHERE id = $4 AND user_id = $5
	`, cat.Name, cat.Icon, cat.Color, id, userID)
	if err != nil {
		return domain.Category{}, err
	}
	if err := translateNoRows(res); err != nil {
		return domain.Category{}, err
	}
	return cat, nil
}

// DeleteCategory deletes the category row only. Tasks keep their dangling
// category_id and regroup as uncategorized in the views.
func (r *Repository) DeleteCategory(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// getTask returns a single task scoped by owner.
func (r *Repository) getTask(ctx context.Context, userID, id string) (domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, description, status, completed, due_date, category_id, priority, time_range, created_at, updated_at
		FROM tasks
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	return scanTask(row)
}

// getCategory returns a single category scoped by owner.
func (r *Repository) getCategory(ctx context.Context, userID, id string) (domain.Category, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, icon, color, created_at
		FROM categories
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	return scanCategory(row)
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

// scanTask handles scan task.
func scanTask(s scanner) (domain.Task, error) {
	var (
		t        domain.Task
		status   string
		due      sql.NullTime
		priority string
	)
	if err := s.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&t.Description,
		&status,
		&t.Completed,
		&due,
		&t.CategoryID,
		&priority,
		&t.TimeRange,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, store.ErrNotFound
		}
		return domain.Task{}, err
	}
	t.Status = domain.Status(status)
	if !t.Status.Valid() {
		t.Status = domain.StatusTodo
	}
	t.Priority = domain.Priority(priority)
	if due.Valid {
		dueUTC := due.Time.UTC()
		t.DueDate = &dueUTC
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

// scanCategory handles scan category.
func scanCategory(s scanner) (domain.Category, error) {
	var c domain.Category
	if err := s.Scan(&c.ID, &c.UserID, &c.Name, &c.Icon, &c.Color, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Category{}, store.ErrNotFound
		}
		return domain.Category{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// nullableTime handles nullable time.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
