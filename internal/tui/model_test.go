package tui

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/hylla/syssla/internal/domain"
	"github.com/hylla/syssla/internal/store"
	"github.com/hylla/syssla/internal/view"
)

type fakeService struct {
	tasks      []domain.Task
	categories []domain.Category
	err        error
	now        time.Time
	nextID     int
}

func newFakeService(tasks []domain.Task, categories []domain.Category) *fakeService {
	return &fakeService{
		tasks:      tasks,
		categories: categories,
		now:        time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeService) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-new-%d", prefix, f.nextID)
}

func (f *fakeService) Refresh(context.Context) error {
	return f.err
}

func (f *fakeService) Tasks() []domain.Task {
	out := make([]domain.Task, len(f.tasks))
	copy(out, f.tasks)
	return out
}

func (f *fakeService) Categories() []domain.Category {
	out := make([]domain.Category, len(f.categories))
	copy(out, f.categories)
	return out
}

func (f *fakeService) Task(id string) (domain.Task, bool) {
	for _, t := range f.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Task{}, false
}

func (f *fakeService) AddTask(_ context.Context, in store.CreateTaskInput) (domain.Task, error) {
	task, err := domain.NewTask(domain.TaskInput{
		ID:          f.newID("t"),
		UserID:      "u1",
		Title:       in.Title,
		Description: in.Description,
		DueDate:     in.DueDate,
		CategoryID:  in.CategoryID,
		Priority:    in.Priority,
		TimeRange:   in.TimeRange,
	}, f.now)
	if err != nil {
		return domain.Task{}, err
	}
	f.tasks = append([]domain.Task{task}, f.tasks...)
	return task, nil
}

func (f *fakeService) EditTask(_ context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	for idx := range f.tasks {
		if f.tasks[idx].ID != id {
			continue
		}
		task := f.tasks[idx]
		if err := task.Apply(patch, f.now); err != nil {
			return domain.Task{}, err
		}
		f.tasks[idx] = task
		return task, nil
	}
	return domain.Task{}, store.ErrNotFound
}

func (f *fakeService) ToggleTask(_ context.Context, id string) (domain.Task, error) {
	for idx := range f.tasks {
		if f.tasks[idx].ID == id {
			f.tasks[idx].Toggle(f.now)
			return f.tasks[idx], nil
		}
	}
	return domain.Task{}, store.ErrNotFound
}

func (f *fakeService) UpdateTaskStatus(_ context.Context, id string, status domain.Status) (domain.Task, error) {
	for idx := range f.tasks {
		if f.tasks[idx].ID == id {
			if err := f.tasks[idx].SetStatus(status, f.now); err != nil {
				return domain.Task{}, err
			}
			return f.tasks[idx], nil
		}
	}
	return domain.Task{}, store.ErrNotFound
}

func (f *fakeService) CycleTaskStatus(ctx context.Context, id string) (domain.Task, error) {
	task, ok := f.Task(id)
	if !ok {
		return domain.Task{}, store.ErrNotFound
	}
	return f.UpdateTaskStatus(ctx, id, task.Status.Next())
}

func (f *fakeService) DeleteTask(_ context.Context, id string) error {
	for idx := range f.tasks {
		if f.tasks[idx].ID == id {
			f.tasks = append(f.tasks[:idx], f.tasks[idx+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeService) AddCategory(_ context.Context, in store.CreateCategoryInput) (domain.Category, error) {
	cat, err := domain.NewCategory(f.newID("c"), "u1", in.Name, in.Icon, in.Color, f.now)
	if err != nil {
		return domain.Category{}, err
	}
	f.categories = append(f.categories, cat)
	return cat, nil
}

func (f *fakeService) UpdateCategory(_ context.Context, id string, patch domain.CategoryPatch) (domain.Category, error) {
	for idx := range f.categories {
		if f.categories[idx].ID != id {
			continue
		}
		cat := f.categories[idx]
		if err := cat.Apply(patch); err != nil {
			return domain.Category{}, err
		}
		f.categories[idx] = cat
		return cat, nil
	}
	return domain.Category{}, store.ErrNotFound
}

func (f *fakeService) DeleteCategory(_ context.Context, id string) error {
	for idx := range f.categories {
		if f.categories[idx].ID == id {
			f.categories = append(f.categories[:idx], f.categories[idx+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func seedTask(t *testing.T, svc *fakeService, id, title, categoryID string, status domain.Status) domain.Task {
	t.Helper()
	task, err := domain.NewTask(domain.TaskInput{
		ID:         id,
		UserID:     "u1",
		Title:      title,
		CategoryID: categoryID,
	}, svc.now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if status != domain.StatusTodo {
		if err := task.SetStatus(status, svc.now); err != nil {
			t.Fatalf("SetStatus() error = %v", err)
		}
	}
	svc.tasks = append([]domain.Task{task}, svc.tasks...)
	return task
}

func seedCategory(t *testing.T, svc *fakeService, id, name, icon string) domain.Category {
	t.Helper()
	cat, err := domain.NewCategory(id, "u1", name, icon, "", svc.now)
	if err != nil {
		t.Fatalf("NewCategory() error = %v", err)
	}
	svc.categories = append(svc.categories, cat)
	return cat
}

func loadReadyModel(t *testing.T, m Model) Model {
	t.Helper()
	return applyMsg(t, applyCmd(t, m, m.Init()), tea.WindowSizeMsg{Width: 120, Height: 40})
}

func applyMsg(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, cmd := m.Update(msg)
	out, ok := updated.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", updated)
	}
	return applyCmd(t, out, cmd)
}

func applyCmd(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	out := m
	currentCmd := cmd
	for i := 0; i < 6 && currentCmd != nil; i++ {
		msg := currentCmd()
		updated, nextCmd := out.Update(msg)
		casted, ok := updated.(Model)
		if !ok {
			t.Fatalf("expected Model, got %T", updated)
		}
		out = casted
		currentCmd = nextCmd
	}
	return out
}

func keyRune(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func typeString(t *testing.T, m Model, s string) Model {
	t.Helper()
	for _, r := range s {
		m = applyMsg(t, m, keyRune(r))
	}
	return m
}

func TestModelLoadAndNavigation(t *testing.T) {
	svc := newFakeService(nil, nil)
	work := seedCategory(t, svc, "c1", "Work", "💼")
	seedTask(t, svc, "t1", "Write report", work.ID, domain.StatusTodo)
	seedTask(t, svc, "t2", "Review PR", work.ID, domain.StatusTodo)

	m := loadReadyModel(t, NewModel(svc))
	if len(m.tasks) != 2 || len(m.categories) != 1 {
		t.Fatalf("unexpected loaded model: %d tasks, %d categories", len(m.tasks), len(m.categories))
	}

	m = applyMsg(t, m, keyRune('j'))
	if m.selectedIdx != 1 {
		t.Fatalf("expected selectedIdx=1, got %d", m.selectedIdx)
	}
	m = applyMsg(t, m, keyRune('k'))
	if m.selectedIdx != 0 {
		t.Fatalf("expected selectedIdx=0, got %d", m.selectedIdx)
	}

	m = applyMsg(t, m, keyRune('b'))
	if m.screen != screenBoard {
		t.Fatal("expected board screen after toggle")
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyRight})
	if m.selectedColumn != 1 {
		t.Fatalf("expected selectedColumn=1, got %d", m.selectedColumn)
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyLeft})
	if m.selectedColumn != 0 {
		t.Fatalf("expected selectedColumn=0, got %d", m.selectedColumn)
	}
}

func TestModelFilterAndCategoryTabsAreExclusive(t *testing.T) {
	svc := newFakeService(nil, nil)
	work := seedCategory(t, svc, "c1", "Work", "💼")
	seedTask(t, svc, "t1", "Open item", work.ID, domain.StatusTodo)
	done := seedTask(t, svc, "t2", "Closed item", work.ID, domain.StatusDone)
	if !done.Completed {
		t.Fatal("expected seeded done task to be completed")
	}

	m := loadReadyModel(t, NewModel(svc))
	if len(m.flattenedTasks()) != 2 {
		t.Fatalf("expected 2 visible tasks, got %d", len(m.flattenedTasks()))
	}

	m = applyMsg(t, m, keyRune('f'))
	if m.selection.Filter() != view.FilterPending {
		t.Fatalf("expected Pending filter, got %q", m.selection.Filter())
	}
	visible := m.flattenedTasks()
	if len(visible) != 1 || visible[0].ID != "t1" {
		t.Fatalf("expected only the pending task visible, got %#v", visible)
	}

	m = applyMsg(t, m, keyRune('c'))
	if m.selection.CategoryID() != work.ID {
		t.Fatalf("expected category tab %q, got %q", work.ID, m.selection.CategoryID())
	}
	if m.selection.Filter() != view.FilterAll {
		t.Fatal("expected category tab to reset the filter to All")
	}

	m = applyMsg(t, m, keyRune('f'))
	if m.selection.CategoryID() != "" {
		t.Fatal("expected filter tab to clear the category selection")
	}
}

func TestModelAddTaskForm(t *testing.T) {
	svc := newFakeService(nil, nil)
	seedCategory(t, svc, "c1", "Work", "💼")

	m := loadReadyModel(t, NewModel(svc))
	m = applyMsg(t, m, keyRune('n'))
	if m.mode != modeAddTask {
		t.Fatalf("expected add-task mode, got %v", m.mode)
	}

	m = typeString(t, m, "Ship release")
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyTab}) // details
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyTab}) // due
	m = typeString(t, m, "2026-09-01")
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})

	if m.mode != modeNone {
		t.Fatalf("expected form closed after submit, got mode %v", m.mode)
	}
	if len(svc.tasks) != 1 {
		t.Fatalf("expected 1 task after add, got %d", len(svc.tasks))
	}
	created := svc.tasks[0]
	if created.Title != "Ship release" {
		t.Fatalf("unexpected title %q", created.Title)
	}
	if created.DueDate == nil || created.DueDate.Format("2006-01-02") != "2026-09-01" {
		t.Fatalf("unexpected due date %v", created.DueDate)
	}
	if created.Status != domain.StatusTodo {
		t.Fatalf("expected new task in todo, got %q", created.Status)
	}
}

func TestModelAddTaskRequiresTitle(t *testing.T) {
	svc := newFakeService(nil, nil)
	m := loadReadyModel(t, NewModel(svc))
	m = applyMsg(t, m, keyRune('n'))
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.mode != modeAddTask {
		t.Fatal("expected form to stay open on empty title")
	}
	if len(svc.tasks) != 0 {
		t.Fatalf("expected no task created, got %d", len(svc.tasks))
	}
}

func TestModelEditTaskClearsDueDate(t *testing.T) {
	svc := newFakeService(nil, nil)
	due := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	task, err := domain.NewTask(domain.TaskInput{
		ID:      "t1",
		UserID:  "u1",
		Title:   "Dated",
		DueDate: &due,
	}, svc.now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	svc.tasks = []domain.Task{task}

	m := loadReadyModel(t, NewModel(svc))
	m = applyMsg(t, m, keyRune('e'))
	if m.mode != modeEditTask || m.editingTaskID != "t1" {
		t.Fatalf("expected edit mode for t1, got mode %v id %q", m.mode, m.editingTaskID)
	}
	if got := m.formInputs[taskFieldDue].Value(); got != "2026-09-01" {
		t.Fatalf("expected due prefilled, got %q", got)
	}

	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	m.formInputs[taskFieldDue].SetValue("-")
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})

	if svc.tasks[0].DueDate != nil {
		t.Fatalf("expected due date cleared, got %v", svc.tasks[0].DueDate)
	}
	if svc.tasks[0].Title != "Dated" {
		t.Fatalf("expected title kept, got %q", svc.tasks[0].Title)
	}
}

func TestModelToggleCycleAndMoveKeys(t *testing.T) {
	svc := newFakeService(nil, nil)
	seedTask(t, svc, "t1", "Thing", "", domain.StatusTodo)

	m := loadReadyModel(t, NewModel(svc))

	m = applyMsg(t, m, keyRune('x'))
	if !svc.tasks[0].Completed || svc.tasks[0].Status != domain.StatusDone {
		t.Fatalf("expected toggle to complete task, got %+v", svc.tasks[0])
	}
	m = applyMsg(t, m, keyRune('x'))
	if svc.tasks[0].Completed || svc.tasks[0].Status != domain.StatusTodo {
		t.Fatalf("expected toggle to reopen task as todo, got %+v", svc.tasks[0])
	}

	m = applyMsg(t, m, keyRune('s'))
	if svc.tasks[0].Status != domain.StatusInProgress {
		t.Fatalf("expected cycle to in-progress, got %q", svc.tasks[0].Status)
	}

	m = applyMsg(t, m, keyRune(']'))
	if svc.tasks[0].Status != domain.StatusDone {
		t.Fatalf("expected ] to move task to done, got %q", svc.tasks[0].Status)
	}
	if !svc.tasks[0].Completed {
		t.Fatal("expected done status to mark the task completed")
	}
	m = applyMsg(t, m, keyRune(']'))
	if svc.tasks[0].Status != domain.StatusDone {
		t.Fatalf("expected ] at the last column to be a no-op, got %q", svc.tasks[0].Status)
	}
	m = applyMsg(t, m, keyRune('['))
	if svc.tasks[0].Status != domain.StatusInProgress {
		t.Fatalf("expected [ to move task back, got %q", svc.tasks[0].Status)
	}
}

func TestModelDeleteTaskConfirm(t *testing.T) {
	svc := newFakeService(nil, nil)
	seedTask(t, svc, "t1", "Doomed", "", domain.StatusTodo)

	m := loadReadyModel(t, NewModel(svc))
	m = applyMsg(t, m, keyRune('d'))
	if m.mode != modeConfirmDelete || m.pendingConfirm.ID != "t1" {
		t.Fatalf("expected delete confirmation for t1, got %+v", m.pendingConfirm)
	}

	m = applyMsg(t, m, keyRune('n'))
	if m.mode != modeNone || len(svc.tasks) != 1 {
		t.Fatal("expected cancel to keep the task")
	}

	m = applyMsg(t, m, keyRune('d'))
	m = applyMsg(t, m, keyRune('y'))
	if len(svc.tasks) != 0 {
		t.Fatalf("expected task deleted, got %d tasks", len(svc.tasks))
	}
}

func TestModelCategoryLifecycle(t *testing.T) {
	svc := newFakeService(nil, nil)
	m := loadReadyModel(t, NewModel(svc))

	m = applyMsg(t, m, keyRune('N'))
	if m.mode != modeAddCategory {
		t.Fatalf("expected add-category mode, got %v", m.mode)
	}
	m = typeString(t, m, "Health")
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if len(svc.categories) != 1 || svc.categories[0].Name != "Health" {
		t.Fatalf("expected Health category created, got %#v", svc.categories)
	}

	// Select the category tab, then rename it.
	m = applyMsg(t, m, keyRune('c'))
	m = applyMsg(t, m, keyRune('E'))
	if m.mode != modeEditCategory {
		t.Fatalf("expected edit-category mode, got %v", m.mode)
	}
	m.categoryInputs[categoryFieldName].SetValue("Fitness")
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if svc.categories[0].Name != "Fitness" {
		t.Fatalf("expected rename to Fitness, got %q", svc.categories[0].Name)
	}

	m = applyMsg(t, m, keyRune('X'))
	m = applyMsg(t, m, keyRune('y'))
	if len(svc.categories) != 0 {
		t.Fatalf("expected category deleted, got %d", len(svc.categories))
	}
	if m.selection.CategoryID() != "" {
		t.Fatalf("expected stale category tab cleared, got %q", m.selection.CategoryID())
	}
}

func TestModelDeletedCategoryRegroupsTasks(t *testing.T) {
	svc := newFakeService(nil, nil)
	work := seedCategory(t, svc, "c1", "Work", "💼")
	seedTask(t, svc, "t1", "Orphan-to-be", work.ID, domain.StatusTodo)

	m := loadReadyModel(t, NewModel(svc))
	m = applyMsg(t, m, keyRune('c'))
	m = applyMsg(t, m, keyRune('X'))
	m = applyMsg(t, m, keyRune('y'))

	if len(svc.tasks) != 1 {
		t.Fatalf("expected task to survive category delete, got %d", len(svc.tasks))
	}
	groups := m.visibleGroups()
	if len(groups) != 1 || groups[0].CategoryID != view.UncategorizedID {
		t.Fatalf("expected single uncategorized group, got %#v", groups)
	}
}

func TestModelBoardDragMovesTask(t *testing.T) {
	svc := newFakeService(nil, nil)
	seedTask(t, svc, "t1", "Dragged", "", domain.StatusTodo)

	m := loadReadyModel(t, NewModel(svc))
	m = applyMsg(t, m, keyRune('b'))

	colSpan := m.columnWidth() + 5
	cardY := m.boardTop() + 2
	m = applyMsg(t, m, tea.MouseClickMsg{X: 2, Y: cardY, Button: tea.MouseLeft})
	if _, ok := m.drag.Pressed(); !ok {
		t.Fatal("expected press to land on the card")
	}
	m = applyMsg(t, m, tea.MouseMotionMsg{X: colSpan + 2, Y: cardY})
	if _, ok := m.drag.Active(); !ok {
		t.Fatal("expected drag to activate after motion")
	}
	m = applyMsg(t, m, tea.MouseReleaseMsg{X: colSpan + 2, Y: cardY, Button: tea.MouseLeft})

	if svc.tasks[0].Status != domain.StatusInProgress {
		t.Fatalf("expected drop to move task to in-progress, got %q", svc.tasks[0].Status)
	}
}

func TestModelBoardSameColumnDropIsNoop(t *testing.T) {
	svc := newFakeService(nil, nil)
	seedTask(t, svc, "t1", "Stationary", "", domain.StatusTodo)

	m := loadReadyModel(t, NewModel(svc))
	m = applyMsg(t, m, keyRune('b'))

	cardY := m.boardTop() + 2
	m = applyMsg(t, m, tea.MouseClickMsg{X: 2, Y: cardY, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.MouseMotionMsg{X: 6, Y: cardY + 1})
	m = applyMsg(t, m, tea.MouseReleaseMsg{X: 6, Y: cardY + 1, Button: tea.MouseLeft})

	if svc.tasks[0].Status != domain.StatusTodo {
		t.Fatalf("expected same-column drop to change nothing, got %q", svc.tasks[0].Status)
	}
	if m.mode != modeNone {
		t.Fatalf("expected no dialog after drag, got mode %v", m.mode)
	}
}

func TestModelBoardClickOpensEdit(t *testing.T) {
	svc := newFakeService(nil, nil)
	seedTask(t, svc, "t1", "Clicked", "", domain.StatusTodo)

	m := loadReadyModel(t, NewModel(svc))
	m = applyMsg(t, m, keyRune('b'))

	cardY := m.boardTop() + 2
	m = applyMsg(t, m, tea.MouseClickMsg{X: 2, Y: cardY, Button: tea.MouseLeft})
	m = applyMsg(t, m, tea.MouseReleaseMsg{X: 2, Y: cardY, Button: tea.MouseLeft})

	if m.mode != modeEditTask || m.editingTaskID != "t1" {
		t.Fatalf("expected click to open edit for t1, got mode %v id %q", m.mode, m.editingTaskID)
	}
}

func TestModelMouseWheel(t *testing.T) {
	svc := newFakeService(nil, nil)
	seedTask(t, svc, "t2", "Second", "", domain.StatusTodo)
	seedTask(t, svc, "t1", "First", "", domain.StatusTodo)

	m := loadReadyModel(t, NewModel(svc))
	m = applyMsg(t, m, tea.MouseWheelMsg{Button: tea.MouseWheelDown})
	if m.selectedIdx != 1 {
		t.Fatalf("expected selectedIdx=1 after wheel down, got %d", m.selectedIdx)
	}
	m = applyMsg(t, m, tea.MouseWheelMsg{Button: tea.MouseWheelUp})
	if m.selectedIdx != 0 {
		t.Fatalf("expected selectedIdx=0 after wheel up, got %d", m.selectedIdx)
	}
}

func TestModelTaskInfoOverlay(t *testing.T) {
	svc := newFakeService(nil, nil)
	task, err := domain.NewTask(domain.TaskInput{
		ID:          "t1",
		UserID:      "u1",
		Title:       "Documented",
		Description: "# Notes\n\nsome detail",
	}, svc.now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	svc.tasks = []domain.Task{task}

	m := loadReadyModel(t, NewModel(svc))
	m = applyMsg(t, m, keyRune('i'))
	if m.mode != modeTaskInfo || m.infoTaskID != "t1" {
		t.Fatalf("expected task info for t1, got mode %v id %q", m.mode, m.infoTaskID)
	}
	v := m.View()
	if v.Content == nil {
		t.Fatal("expected view content with info overlay")
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.mode != modeNone {
		t.Fatalf("expected overlay closed, got mode %v", m.mode)
	}
}

func TestModelQuitKey(t *testing.T) {
	m := NewModel(newFakeService(nil, nil))
	updated, cmd := m.Update(tea.KeyPressMsg{Code: 'q', Text: "q"})
	if updated == nil {
		t.Fatal("expected model return value")
	}
	if cmd == nil {
		t.Fatal("expected quit cmd")
	}
}

func TestModelViewStates(t *testing.T) {
	m := NewModel(newFakeService(nil, nil))
	v := m.View()
	if v.Content == nil || v.MouseMode != tea.MouseModeCellMotion {
		t.Fatal("expected loading view with mouse enabled")
	}

	svc := newFakeService(nil, nil)
	work := seedCategory(t, svc, "c1", "Work", "💼")
	seedTask(t, svc, "t1", "Visible task", work.ID, domain.StatusTodo)
	m = loadReadyModel(t, NewModel(svc, WithUserLabel("someone@example.com")))
	v = m.View()
	if v.Content == nil {
		t.Fatal("expected ready view content")
	}
	muted := lipgloss.Color("241")
	if !strings.Contains(m.renderList(lipgloss.Color("62"), muted, lipgloss.Color("239")), "Visible task") {
		t.Fatal("expected list view to include the task title")
	}
	if !strings.Contains(m.renderHeader(lipgloss.Color("62"), muted), "someone@example.com") {
		t.Fatal("expected header to include the user label")
	}

	m.err = context.DeadlineExceeded
	v = m.View()
	if v.Content == nil {
		t.Fatal("expected error view content")
	}
}
