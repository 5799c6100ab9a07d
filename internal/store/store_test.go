package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hylla/syssla/internal/domain"
)

type fakeRepo struct {
	tasks      map[string]domain.Task
	categories map[string]domain.Category
	seq        int
	now        time.Time

	createCalls int
	updateCalls int
	failNext    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		tasks:      map[string]domain.Task{},
		categories: map[string]domain.Category{},
		now:        time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (f *fakeRepo) nextID() string {
	f.seq++
	return fmt.Sprintf("id-%d", f.seq)
}

func (f *fakeRepo) tick() time.Time {
	f.now = f.now.Add(time.Second)
	return f.now
}

func (f *fakeRepo) takeFailure() error {
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeRepo) ListTasks(_ context.Context, userID string) ([]domain.Task, error) {
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	out := []domain.Task{}
	for _, t := range f.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	// Newest-created-first, mirroring the SQL ORDER BY created_at DESC.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.After(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) ListCategories(_ context.Context, userID string) ([]domain.Category, error) {
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	out := []domain.Category{}
	for _, c := range f.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.Before(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateTask(_ context.Context, userID string, in CreateTaskInput) (domain.Task, error) {
	f.createCalls++
	if err := f.takeFailure(); err != nil {
		return domain.Task{}, err
	}
	task, err := domain.NewTask(domain.TaskInput{
		ID:          f.nextID(),
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		DueDate:     in.DueDate,
		CategoryID:  in.CategoryID,
		Priority:    in.Priority,
		TimeRange:   in.TimeRange,
	}, f.tick())
	if err != nil {
		return domain.Task{}, err
	}
	f.tasks[task.ID] = task
	return task, nil
}

func (f *fakeRepo) UpdateTask(_ context.Context, userID, id string, patch domain.TaskPatch) (domain.Task, error) {
	f.updateCalls++
	if err := f.takeFailure(); err != nil {
		return domain.Task{}, err
	}
	task, ok := f.tasks[id]
	if !ok || task.UserID != userID {
		return domain.Task{}, ErrNotFound
	}
	if err := task.Apply(patch, f.tick()); err != nil {
		return domain.Task{}, err
	}
	f.tasks[id] = task
	return task, nil
}

func (f *fakeRepo) DeleteTask(_ context.Context, userID, id string) error {
	if err := f.takeFailure(); err != nil {
		return err
	}
	task, ok := f.tasks[id]
	if !ok || task.UserID != userID {
		return ErrNotFound
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeRepo) CreateCategory(_ context.Context, userID string, in CreateCategoryInput) (domain.Category, error) {
	if err := f.takeFailure(); err != nil {
		return domain.Category{}, err
	}
	cat, err := domain.NewCategory(f.nextID(), userID, in.Name, in.Icon, in.Color, f.tick())
	if err != nil {
		return domain.Category{}, err
	}
	f.categories[cat.ID] = cat
	return cat, nil
}

func (f *fakeRepo) UpdateCategory(_ context.Context, userID, id string, patch domain.CategoryPatch) (domain.Category, error) {
	if err := f.takeFailure(); err != nil {
		return domain.Category{}, err
	}
	cat, ok := f.categories[id]
	if !ok || cat.UserID != userID {
		return domain.Category{}, ErrNotFound
	}
	if err := cat.Apply(patch); err != nil {
		return domain.Category{}, err
	}
	f.categories[id] = cat
	return cat, nil
}

func (f *fakeRepo) DeleteCategory(_ context.Context, userID, id string) error {
	if err := f.takeFailure(); err != nil {
		return err
	}
	cat, ok := f.categories[id]
	if !ok || cat.UserID != userID {
		return ErrNotFound
	}
	delete(f.categories, id)
	return nil
}

type staticIdentity struct {
	user User
}

func (s staticIdentity) CurrentUser() (User, bool)            { return s.user, s.user.ID != "" }
func (s staticIdentity) SignIn(context.Context) (User, error) { return s.user, nil }
func (s staticIdentity) SignOut(context.Context) error        { return nil }

func newTestStore(t *testing.T) (*Store, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	st := New(repo, staticIdentity{user: User{ID: "u1"}}, nil)
	if err := st.SetUser(context.Background(), "u1"); err != nil {
		t.Fatalf("SetUser() error = %v", err)
	}
	return st, repo
}

func TestAddTaskPrependsAfterConfirm(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	first, err := st.AddTask(ctx, CreateTaskInput{Title: "first"})
	if err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	second, err := st.AddTask(ctx, CreateTaskInput{Title: "second"})
	if err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}

	tasks := st.Tasks()
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != second.ID || tasks[1].ID != first.ID {
		t.Fatal("newest task must be first")
	}
	if tasks[0].Status != domain.StatusTodo || tasks[0].Completed {
		t.Fatalf("new task state: %+v", tasks[0])
	}
}

func TestAddTaskEmptyTitleNeverReachesRepo(t *testing.T) {
	st, repo := newTestStore(t)
	_, err := st.AddTask(context.Background(), CreateTaskInput{Title: "   "})
	if !errors.Is(err, domain.ErrInvalidTitle) {
		t.Fatalf("expected ErrInvalidTitle, got %v", err)
	}
	if repo.createCalls != 0 {
		t.Fatalf("validation failure must not call the repository, got %d calls", repo.createCalls)
	}
}

func TestMutationFailureLeavesStateUntouched(t *testing.T) {
	st, repo := newTestStore(t)
	ctx := context.Background()
	task, _ := st.AddTask(ctx, CreateTaskInput{Title: "keep me"})

	repo.failNext = errors.New("connection reset")
	title := "renamed"
	_, err := st.EditTask(ctx, task.ID, domain.TaskPatch{Title: &title})
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}

	got, _ := st.Task(task.ID)
	if got.Title != "keep me" {
		t.Fatalf("failed mutation must not change local state, got %q", got.Title)
	}
	if st.Err() == nil {
		t.Fatal("expected retrievable last error")
	}
}

func TestToggleReconcilesStatusBothWays(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	task, _ := st.AddTask(ctx, CreateTaskInput{Title: "t"})

	toggled, err := st.ToggleTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("ToggleTask() error = %v", err)
	}
	if !toggled.Completed || toggled.Status != domain.StatusDone {
		t.Fatalf("toggle on: %+v", toggled)
	}

	toggled, err = st.ToggleTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("ToggleTask() error = %v", err)
	}
	if toggled.Completed || toggled.Status != domain.StatusTodo {
		t.Fatalf("toggle off: %+v", toggled)
	}
}

func TestUpdateTaskStatusShortCircuits(t *testing.T) {
	st, repo := newTestStore(t)
	ctx := context.Background()
	task, _ := st.AddTask(ctx, CreateTaskInput{Title: "t"})

	if _, err := st.UpdateTaskStatus(ctx, task.ID, domain.StatusDone); err != nil {
		t.Fatalf("UpdateTaskStatus() error = %v", err)
	}
	calls := repo.updateCalls

	// Same status again: no observable change, no repository call.
	again, err := st.UpdateTaskStatus(ctx, task.ID, domain.StatusDone)
	if err != nil {
		t.Fatalf("UpdateTaskStatus() error = %v", err)
	}
	if repo.updateCalls != calls {
		t.Fatalf("idempotent status update must short-circuit, calls went %d -> %d", calls, repo.updateCalls)
	}
	if !again.Completed {
		t.Fatal("completed must stay reconciled")
	}
}

func TestCycleTaskStatusWraps(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	task, _ := st.AddTask(ctx, CreateTaskInput{Title: "t"})
	_, _ = st.UpdateTaskStatus(ctx, task.ID, domain.StatusDone)

	cycled, err := st.CycleTaskStatus(ctx, task.ID)
	if err != nil {
		t.Fatalf("CycleTaskStatus() error = %v", err)
	}
	if cycled.Status != domain.StatusTodo {
		t.Fatalf("done must wrap to todo, got %q", cycled.Status)
	}
	if cycled.Completed {
		t.Fatal("wrapped task must not stay completed")
	}
}

func TestEditTaskClearVersusKeep(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	due := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	desc := "notes"
	task, _ := st.AddTask(ctx, CreateTaskInput{Title: "t", Description: desc, DueDate: &due, CategoryID: "c9"})

	title := "t2"
	edited, err := st.EditTask(ctx, task.ID, domain.TaskPatch{Title: &title})
	if err != nil {
		t.Fatalf("EditTask() error = %v", err)
	}
	if edited.Description != "notes" || edited.DueDate == nil || edited.CategoryID != "c9" {
		t.Fatalf("nil patch fields must keep values: %+v", edited)
	}

	empty := ""
	zero := time.Time{}
	edited, err = st.EditTask(ctx, task.ID, domain.TaskPatch{Description: &empty, DueDate: &zero})
	if err != nil {
		t.Fatalf("EditTask() error = %v", err)
	}
	if edited.Description != "" || edited.DueDate != nil {
		t.Fatalf("zero patch fields must clear values: %+v", edited)
	}
}

func TestDeleteCategoryKeepsTasks(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	cat, _ := st.AddCategory(ctx, CreateCategoryInput{Name: "Groceries", Icon: "🛒"})
	task, _ := st.AddTask(ctx, CreateTaskInput{Title: "milk", CategoryID: cat.ID})

	if err := st.DeleteCategory(ctx, cat.ID); err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}
	if len(st.Categories()) != 0 {
		t.Fatal("category must be removed")
	}
	kept, ok := st.Task(task.ID)
	if !ok {
		t.Fatal("member task must survive category deletion")
	}
	if kept.CategoryID != cat.ID {
		t.Fatalf("task keeps its dangling category id, got %q", kept.CategoryID)
	}
}

func TestSignOutClearsCollections(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	_, _ = st.AddTask(ctx, CreateTaskInput{Title: "t"})
	_, _ = st.AddCategory(ctx, CreateCategoryInput{Name: "Home"})

	if err := st.SetUser(ctx, ""); err != nil {
		t.Fatalf("SetUser() error = %v", err)
	}
	if len(st.Tasks()) != 0 || len(st.Categories()) != 0 {
		t.Fatal("losing the user identity must clear collections")
	}
	if _, err := st.AddTask(ctx, CreateTaskInput{Title: "t"}); !errors.Is(err, ErrNoUser) {
		t.Fatalf("expected ErrNoUser, got %v", err)
	}
}

func TestUserScopingHidesForeignRows(t *testing.T) {
	st, repo := newTestStore(t)
	ctx := context.Background()
	mine, _ := st.AddTask(ctx, CreateTaskInput{Title: "mine"})

	// A row owned by another user is invisible and unmodifiable.
	other, _ := domain.NewTask(domain.TaskInput{ID: "x1", UserID: "u2", Title: "theirs"}, repo.tick())
	repo.tasks[other.ID] = other

	if err := st.SetUser(ctx, "u1"); err != nil {
		t.Fatalf("SetUser() error = %v", err)
	}
	tasks := st.Tasks()
	if len(tasks) != 1 || tasks[0].ID != mine.ID {
		t.Fatalf("expected only the owned task, got %+v", tasks)
	}
}

func TestSubscribeNotify(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	var fired int
	unsubscribe := st.Subscribe(func() { fired++ })
	_, _ = st.AddTask(ctx, CreateTaskInput{Title: "t"})
	if fired != 1 {
		t.Fatalf("expected 1 notification, got %d", fired)
	}

	unsubscribe()
	_, _ = st.AddTask(ctx, CreateTaskInput{Title: "t2"})
	if fired != 1 {
		t.Fatalf("unsubscribed callback must not fire, got %d", fired)
	}
}

func TestEnsureDefaultCategoriesSeedsOnce(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	seeds := []CategorySeed{
		{Name: "Personal", Icon: "👤", Color: "#3B82F6"},
		{Name: "Work", Icon: "💼", Color: "#10B981"},
	}
	if err := st.EnsureDefaultCategories(ctx, seeds); err != nil {
		t.Fatalf("EnsureDefaultCategories() error = %v", err)
	}
	if got := len(st.Categories()); got != 2 {
		t.Fatalf("expected 2 seeded categories, got %d", got)
	}
	if err := st.EnsureDefaultCategories(ctx, seeds); err != nil {
		t.Fatalf("EnsureDefaultCategories() error = %v", err)
	}
	if got := len(st.Categories()); got != 2 {
		t.Fatalf("seeding must be a no-op when categories exist, got %d", got)
	}
}

func TestCompletedStatusLockstepAcrossMutations(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	task, _ := st.AddTask(ctx, CreateTaskInput{Title: "t"})

	check := func(label string) {
		got, _ := st.Task(task.ID)
		if got.Completed != (got.Status == domain.StatusDone) {
			t.Fatalf("%s: completed=%t disagrees with status=%q", label, got.Completed, got.Status)
		}
	}

	check("after add")
	_, _ = st.ToggleTask(ctx, task.ID)
	check("after toggle")
	_, _ = st.UpdateTaskStatus(ctx, task.ID, domain.StatusInProgress)
	check("after status update")
	_, _ = st.CycleTaskStatus(ctx, task.ID)
	check("after cycle")
	title := "t2"
	_, _ = st.EditTask(ctx, task.ID, domain.TaskPatch{Title: &title})
	check("after edit")
}
