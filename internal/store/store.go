package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hylla/syssla/internal/domain"
)

// Clock returns the current time.
type Clock func() time.Time

// Store is the single source of truth for the signed-in user's tasks and
// categories. Every mutation issues exactly one repository call and applies
// the result to local state only after the call succeeds; failures leave the
// collections untouched. Renderers receive copies and callbacks, never
// mutation access.
type Store struct {
	mu       sync.Mutex
	repo     Repository
	identity Identity
	clock    Clock

	userID     string
	tasks      []domain.Task     // newest-created-first
	categories []domain.Category // oldest-created-first
	lastErr    error

	subs    map[int]func()
	nextSub int
}

// New constructs a store over the persistence and identity collaborators.
func New(repo Repository, identity Identity, clock Clock) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		repo:     repo,
		identity: identity,
		clock:    clock,
		subs:     map[int]func(){},
	}
}

// Subscribe registers a change callback and returns its unsubscribe func.
// Callbacks run after every successful mutation or reload.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notifyLocked() []func() {
	out := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

func runAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

// User returns the id of the signed-in user, or empty.
func (s *Store) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Err returns the most recent mutation or load error.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// SetUser switches the store to a user identity, loading that user's
// collections. An empty id clears the collections (signed out).
func (s *Store) SetUser(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		s.mu.Lock()
		s.userID = ""
		s.tasks = nil
		s.categories = nil
		s.lastErr = nil
		subs := s.notifyLocked()
		s.mu.Unlock()
		runAll(subs)
		return nil
	}

	tasks, err := s.repo.ListTasks(ctx, userID)
	if err != nil {
		return s.fail("list tasks", err)
	}
	categories, err := s.repo.ListCategories(ctx, userID)
	if err != nil {
		return s.fail("list categories", err)
	}

	s.mu.Lock()
	s.userID = userID
	s.tasks = tasks
	s.categories = categories
	s.lastErr = nil
	subs := s.notifyLocked()
	s.mu.Unlock()
	runAll(subs)
	return nil
}

// Refresh re-reads both collections for the current user.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	userID := s.userID
	s.mu.Unlock()
	if userID == "" {
		return ErrNoUser
	}
	return s.SetUser(ctx, userID)
}

// Tasks returns a copy of the task collection, newest-created-first.
func (s *Store) Tasks() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tasks)
}

// Categories returns a copy of the category collection, oldest-created-first.
func (s *Store) Categories() []domain.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.categories)
}

// Task looks up one task by id in the local collection.
func (s *Store) Task(id string) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Task{}, false
}

// Category looks up one category by id in the local collection.
func (s *Store) Category(id string) (domain.Category, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Category{}, false
}

// AddTask validates the title, writes the task remotely, and prepends it to
// the local list once the write succeeds.
func (s *Store) AddTask(ctx context.Context, in CreateTaskInput) (domain.Task, error) {
	userID, err := s.requireUser()
	if err != nil {
		return domain.Task{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return domain.Task{}, domain.ErrInvalidTitle
	}

	created, err := s.repo.CreateTask(ctx, userID, in)
	if err != nil {
		return domain.Task{}, s.fail("create task", err)
	}

	s.mu.Lock()
	s.tasks = append([]domain.Task{created}, s.tasks...)
	s.lastErr = nil
	subs := s.notifyLocked()
	s.mu.Unlock()
	runAll(subs)
	return created, nil
}

// EditTask applies a field patch to a task. Nil patch fields are untouched;
// non-nil zero values clear the stored field.
func (s *Store) EditTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	userID, err := s.requireUser()
	if err != nil {
		return domain.Task{}, err
	}
	if _, ok := s.Task(id); !ok {
		return domain.Task{}, ErrNotFound
	}
	// Validate locally before the round trip so empty titles never reach
	// the repository.
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return domain.Task{}, domain.ErrInvalidTitle
	}

	updated, err := s.repo.UpdateTask(ctx, userID, id, patch)
	if err != nil {
		return domain.Task{}, s.fail("update task", err)
	}
	s.replaceTask(updated)
	return updated, nil
}

// ToggleTask flips the coarse completion state and reconciles status.
func (s *Store) ToggleTask(ctx context.Context, id string) (domain.Task, error) {
	task, ok := s.Task(id)
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	completed := !task.Completed
	return s.EditTask(ctx, id, domain.TaskPatch{Completed: &completed})
}

// UpdateTaskStatus sets the lifecycle state directly, reconciling the
// completed flag. Setting the current status short-circuits without a
// repository call, matching the board engine's same-column no-op rule.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status domain.Status) (domain.Task, error) {
	if !status.Valid() {
		return domain.Task{}, domain.ErrInvalidStatus
	}
	task, ok := s.Task(id)
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	if task.Status == status {
		return task, nil
	}
	return s.EditTask(ctx, id, domain.TaskPatch{Status: &status})
}

// CycleTaskStatus advances one step in todo → in-progress → done → todo.
// This is the list view's one-click affordance.
func (s *Store) CycleTaskStatus(ctx context.Context, id string) (domain.Task, error) {
	task, ok := s.Task(id)
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	return s.UpdateTaskStatus(ctx, id, task.Status.Next())
}

// DeleteTask removes the task remotely, then locally.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	userID, err := s.requireUser()
	if err != nil {
		return err
	}
	if _, ok := s.Task(id); !ok {
		return ErrNotFound
	}
	if err := s.repo.DeleteTask(ctx, userID, id); err != nil {
		return s.fail("delete task", err)
	}

	s.mu.Lock()
	s.tasks = slices.DeleteFunc(s.tasks, func(t domain.Task) bool { return t.ID == id })
	s.lastErr = nil
	subs := s.notifyLocked()
	s.mu.Unlock()
	runAll(subs)
	return nil
}

// AddCategory validates the name, writes the category remotely, and appends
// it locally (categories stay in creation order).
func (s *Store) AddCategory(ctx context.Context, in CreateCategoryInput) (domain.Category, error) {
	userID, err := s.requireUser()
	if err != nil {
		return domain.Category{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return domain.Category{}, domain.ErrInvalidName
	}

	created, err := s.repo.CreateCategory(ctx, userID, in)
	if err != nil {
		return domain.Category{}, s.fail("create category", err)
	}

	s.mu.Lock()
	s.categories = append(s.categories, created)
	s.lastErr = nil
	subs := s.notifyLocked()
	s.mu.Unlock()
	runAll(subs)
	return created, nil
}

// UpdateCategory applies a field patch to a category.
func (s *Store) UpdateCategory(ctx context.Context, id string, patch domain.CategoryPatch) (domain.Category, error) {
	userID, err := s.requireUser()
	if err != nil {
		return domain.Category{}, err
	}
	if _, ok := s.Category(id); !ok {
		return domain.Category{}, ErrNotFound
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return domain.Category{}, domain.ErrInvalidName
	}

	updated, err := s.repo.UpdateCategory(ctx, userID, id, patch)
	if err != nil {
		return domain.Category{}, s.fail("update category", err)
	}

	s.mu.Lock()
	for i := range s.categories {
		if s.categories[i].ID == updated.ID {
			s.categories[i] = updated
			break
		}
	}
	s.lastErr = nil
	subs := s.notifyLocked()
	s.mu.Unlock()
	runAll(subs)
	return updated, nil
}

// DeleteCategory removes the category remotely, then locally. Member tasks
// keep their dangling category id and regroup as uncategorized at view time.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	userID, err := s.requireUser()
	if err != nil {
		return err
	}
	if _, ok := s.Category(id); !ok {
		return ErrNotFound
	}
	if err := s.repo.DeleteCategory(ctx, userID, id); err != nil {
		return s.fail("delete category", err)
	}

	s.mu.Lock()
	s.categories = slices.DeleteFunc(s.categories, func(c domain.Category) bool { return c.ID == id })
	s.lastErr = nil
	subs := s.notifyLocked()
	s.mu.Unlock()
	runAll(subs)
	return nil
}

// CategorySeed describes one default category created on first sign-in.
type CategorySeed struct {
	Name  string
	Icon  string
	Color string
}

// EnsureDefaultCategories seeds starter categories when the user has none.
func (s *Store) EnsureDefaultCategories(ctx context.Context, seeds []CategorySeed) error {
	s.mu.Lock()
	existing := len(s.categories)
	s.mu.Unlock()
	if existing > 0 || len(seeds) == 0 {
		return nil
	}
	for _, seed := range seeds {
		if _, err := s.AddCategory(ctx, CreateCategoryInput(seed)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) requireUser() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" {
		return "", ErrNoUser
	}
	return s.userID, nil
}

// replaceTask swaps in the latest successful response for a task wholesale,
// keeping list order stable.
func (s *Store) replaceTask(updated domain.Task) {
	s.mu.Lock()
	for i := range s.tasks {
		if s.tasks[i].ID == updated.ID {
			s.tasks[i] = updated
			break
		}
	}
	s.lastErr = nil
	subs := s.notifyLocked()
	s.mu.Unlock()
	runAll(subs)
}

// fail records and wraps a repository failure. Not-found rows pass through as
// ErrNotFound so callers can distinguish them from transport failures.
func (s *Store) fail(op string, err error) error {
	var out error
	if errors.Is(err, ErrNotFound) {
		out = err
	} else {
		out = &PersistenceError{Op: op, Err: err}
	}
	s.mu.Lock()
	s.lastErr = out
	s.mu.Unlock()
	return out
}
