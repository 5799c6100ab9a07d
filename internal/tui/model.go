package tui

import (
	"context"
	"fmt"
	"image/color"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/hylla/syssla/internal/board"
	"github.com/hylla/syssla/internal/domain"
	"github.com/hylla/syssla/internal/store"
	"github.com/hylla/syssla/internal/view"
)

// Service represents service data used by this package. *store.Store
// satisfies it.
type Service interface {
	Refresh(context.Context) error
	Tasks() []domain.Task
	Categories() []domain.Category
	Task(string) (domain.Task, bool)

	AddTask(context.Context, store.CreateTaskInput) (domain.Task, error)
	EditTask(context.Context, string, domain.TaskPatch) (domain.Task, error)
	ToggleTask(context.Context, string) (domain.Task, error)
	UpdateTaskStatus(context.Context, string, domain.Status) (domain.Task, error)
	CycleTaskStatus(context.Context, string) (domain.Task, error)
	DeleteTask(context.Context, string) error

	AddCategory(context.Context, store.CreateCategoryInput) (domain.Category, error)
	UpdateCategory(context.Context, string, domain.CategoryPatch) (domain.Category, error)
	DeleteCategory(context.Context, string) error
}

// screen selects the main surface: the grouped list or the status board.
type screen int

const (
	screenList screen = iota
	screenBoard
)

// inputMode represents a selectable mode.
type inputMode int

// modeNone and related constants define package defaults.
const (
	modeNone inputMode = iota
	modeAddTask
	modeEditTask
	modeAddCategory
	modeEditCategory
	modeConfirmDelete
	modeTaskInfo
)

// task-form field indexes used throughout keyboard/update logic. The text
// inputs come first; priority and category are cycled, not typed.
const (
	taskFieldTitle = iota
	taskFieldDescription
	taskFieldDue
	taskFieldTimeRange
	taskFieldPriority
	taskFieldCategory
	taskFieldCount
)

// category-form field indexes.
const (
	categoryFieldName = iota
	categoryFieldIcon
	categoryFieldColor
)

// priorityOptions stores the cycle order for the task-form priority field.
// The empty value renders as "-" and clears the priority.
var priorityOptions = []domain.Priority{
	"",
	domain.PriorityLow,
	domain.PriorityMid,
	domain.PriorityHigh,
}

// statusLabels stores display labels for the board columns.
var statusLabels = map[domain.Status]string{
	domain.StatusTodo:       "To Do",
	domain.StatusInProgress: "In Progress",
	domain.StatusDone:       "Done",
}

// statusGlyphs stores the list-view state affordance per status.
var statusGlyphs = map[domain.Status]string{
	domain.StatusTodo:       "[ ]",
	domain.StatusInProgress: "[~]",
	domain.StatusDone:       "[x]",
}

// confirmTarget describes a pending delete confirmation.
type confirmTarget struct {
	Kind  string // "task" or "category"
	ID    string
	Label string
}

// Model represents model data used by this package.
type Model struct {
	svc Service

	ready  bool
	width  int
	height int
	err    error

	status string

	help help.Model
	keys keyMap

	taskFields TaskFieldConfig
	userLabel  string

	tasks      []domain.Task
	categories []domain.Category

	screen    screen
	selection view.Selection

	// list-screen cursor over the flattened visible tasks.
	selectedIdx int

	// board-screen cursor.
	selectedColumn int
	selectedTask   int
	drag           *board.Engine

	mode          inputMode
	formInputs    []textinput.Model
	formFocus     int
	priorityIdx   int
	categoryIdx   int
	editingTaskID string

	categoryInputs    []textinput.Model
	categoryFocus     int
	editingCategoryID string

	pendingConfirm confirmTarget
	infoTaskID     string
	markdown       markdownRenderer
}

// refreshedMsg reports the result of a collection reload.
type refreshedMsg struct {
	err error
}

// actionMsg reports the result of one store mutation.
type actionMsg struct {
	status string
	err    error
}

// NewModel constructs a new value for this package.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:        svc,
		status:     "loading...",
		help:       h,
		keys:       newKeyMap(),
		taskFields: DefaultTaskFieldConfig(),
		selection:  view.NewSelection(),
	}
	m.drag = board.NewEngine(func(taskID string) (domain.Status, bool) {
		task, ok := svc.Task(taskID)
		if !ok {
			return "", false
		}
		return task.Status, true
	}, board.DefaultActivationDistance)
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	return m.refreshCmd
}

// refreshCmd re-reads both collections from the backend.
func (m Model) refreshCmd() tea.Msg {
	return refreshedMsg{err: m.svc.Refresh(context.Background())}
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case refreshedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.snapshot()
		if m.status == "" || m.status == "loading..." {
			m.status = "ready"
		}
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.snapshot()
		if msg.status != "" {
			m.status = msg.status
		}
		return m, nil

	case tea.KeyPressMsg:
		if m.mode != modeNone {
			return m.handleInputModeKey(msg)
		}
		return m.handleNormalModeKey(msg)

	case tea.MouseWheelMsg:
		return m.handleMouseWheel(msg)

	case tea.MouseClickMsg:
		return m.handleMousePress(msg)

	case tea.MouseMotionMsg:
		return m.handleMouseMotion(msg)

	case tea.MouseReleaseMsg:
		return m.handleMouseRelease(msg)

	default:
		return m, nil
	}
}

// snapshot copies the current collections out of the store and clamps the
// cursors against the new shape.
func (m *Model) snapshot() {
	m.tasks = m.svc.Tasks()
	m.categories = m.svc.Categories()
	if m.selection.CategoryID() != "" && m.selection.CategoryID() != view.UncategorizedID {
		if _, ok := m.categoryByID(m.selection.CategoryID()); !ok {
			m.selection = m.selection.SetCategory("")
		}
	}
	m.clampSelections()
}

// visibleTasks returns the list-screen tasks after filter and category tabs.
func (m Model) visibleTasks() []domain.Task {
	filtered := view.FilterTasks(m.tasks, m.selection.Filter(), "")
	if m.selection.CategoryID() == "" {
		return filtered
	}
	if m.selection.CategoryID() == view.UncategorizedID {
		out := make([]domain.Task, 0, len(filtered))
		known := map[string]bool{}
		for _, c := range m.categories {
			known[c.ID] = true
		}
		for _, t := range filtered {
			if t.CategoryID == "" || !known[t.CategoryID] {
				out = append(out, t)
			}
		}
		return out
	}
	return view.FilterTasks(m.tasks, m.selection.Filter(), m.selection.CategoryID())
}

// visibleGroups returns the rendered list sections.
func (m Model) visibleGroups() []view.Group {
	return view.GroupByCategory(m.visibleTasks(), m.categories)
}

// flattenedTasks returns the list-screen tasks in render order (group by
// group), which is the space the list cursor moves in.
func (m Model) flattenedTasks() []domain.Task {
	groups := m.visibleGroups()
	out := make([]domain.Task, 0, len(m.tasks))
	for _, g := range groups {
		out = append(out, g.Tasks...)
	}
	return out
}

// columnTasks returns the board tasks for one status column.
func (m Model) columnTasks(status domain.Status) []domain.Task {
	return view.TasksByStatus(m.visibleTasks())[status]
}

// selectedListTask returns the task under the list cursor.
func (m Model) selectedListTask() (domain.Task, bool) {
	flat := m.flattenedTasks()
	if len(flat) == 0 {
		return domain.Task{}, false
	}
	return flat[clamp(m.selectedIdx, 0, len(flat)-1)], true
}

// selectedBoardTask returns the task under the board cursor.
func (m Model) selectedBoardTask() (domain.Task, bool) {
	statuses := domain.Statuses()
	col := m.columnTasks(statuses[clamp(m.selectedColumn, 0, len(statuses)-1)])
	if len(col) == 0 {
		return domain.Task{}, false
	}
	return col[clamp(m.selectedTask, 0, len(col)-1)], true
}

// currentTask returns the task under whichever cursor is active.
func (m Model) currentTask() (domain.Task, bool) {
	if m.screen == screenBoard {
		return m.selectedBoardTask()
	}
	return m.selectedListTask()
}

func (m Model) taskByID(id string) (domain.Task, bool) {
	for _, t := range m.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Task{}, false
}

func (m Model) categoryByID(id string) (domain.Category, bool) {
	for _, c := range m.categories {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Category{}, false
}

// clampSelections clamps selections.
func (m *Model) clampSelections() {
	flat := m.flattenedTasks()
	if len(flat) == 0 {
		m.selectedIdx = 0
	} else {
		m.selectedIdx = clamp(m.selectedIdx, 0, len(flat)-1)
	}

	statuses := domain.Statuses()
	m.selectedColumn = clamp(m.selectedColumn, 0, len(statuses)-1)
	col := m.columnTasks(statuses[m.selectedColumn])
	if len(col) == 0 {
		m.selectedTask = 0
	} else {
		m.selectedTask = clamp(m.selectedTask, 0, len(col)-1)
	}
}

// handleNormalModeKey handles keys outside any dialog.
func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.refreshCmd

	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.toggleScreen):
		if m.screen == screenList {
			m.screen = screenBoard
		} else {
			m.screen = screenList
		}
		m.clampSelections()
		return m, nil

	case key.Matches(msg, m.keys.moveUp):
		if m.screen == screenBoard {
			if m.selectedTask > 0 {
				m.selectedTask--
			}
		} else if m.selectedIdx > 0 {
			m.selectedIdx--
		}
		return m, nil

	case key.Matches(msg, m.keys.moveDown):
		if m.screen == screenBoard {
			col := m.columnTasks(domain.Statuses()[m.selectedColumn])
			if m.selectedTask < len(col)-1 {
				m.selectedTask++
			}
		} else if m.selectedIdx < len(m.flattenedTasks())-1 {
			m.selectedIdx++
		}
		return m, nil

	case key.Matches(msg, m.keys.moveLeft):
		if m.screen == screenBoard {
			if m.selectedColumn > 0 {
				m.selectedColumn--
				m.clampSelections()
			}
			return m, nil
		}
		m.cycleCategory(-1)
		return m, nil

	case key.Matches(msg, m.keys.moveRight):
		if m.screen == screenBoard {
			if m.selectedColumn < len(domain.Statuses())-1 {
				m.selectedColumn++
				m.clampSelections()
			}
			return m, nil
		}
		m.cycleCategory(1)
		return m, nil

	case key.Matches(msg, m.keys.filterTab):
		m.cycleFilter()
		return m, nil

	case key.Matches(msg, m.keys.categoryTab):
		m.cycleCategory(1)
		return m, nil

	case key.Matches(msg, m.keys.addTask):
		return m, m.startTaskForm(nil)

	case key.Matches(msg, m.keys.editTask):
		task, ok := m.currentTask()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		return m, m.startTaskForm(&task)

	case key.Matches(msg, m.keys.taskInfo):
		task, ok := m.currentTask()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		m.mode = modeTaskInfo
		m.infoTaskID = task.ID
		m.status = "task info"
		return m, nil

	case key.Matches(msg, m.keys.toggleDone):
		task, ok := m.currentTask()
		if !ok {
			return m, nil
		}
		return m, m.toggleTaskCmd(task.ID)

	case key.Matches(msg, m.keys.cycleStatus):
		task, ok := m.currentTask()
		if !ok {
			return m, nil
		}
		return m, m.cycleStatusCmd(task.ID)

	case key.Matches(msg, m.keys.moveTaskLeft):
		return m.moveSelectedTask(-1)

	case key.Matches(msg, m.keys.moveTaskRight):
		return m.moveSelectedTask(1)

	case key.Matches(msg, m.keys.deleteTask):
		task, ok := m.currentTask()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.pendingConfirm = confirmTarget{Kind: "task", ID: task.ID, Label: task.Title}
		return m, nil

	case key.Matches(msg, m.keys.addCategory):
		return m, m.startCategoryForm(nil)

	case key.Matches(msg, m.keys.editCategory):
		cat, ok := m.categoryByID(m.selection.CategoryID())
		if !ok {
			m.status = "select a category tab first"
			return m, nil
		}
		return m, m.startCategoryForm(&cat)

	case key.Matches(msg, m.keys.deleteCategory):
		cat, ok := m.categoryByID(m.selection.CategoryID())
		if !ok {
			m.status = "select a category tab first"
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.pendingConfirm = confirmTarget{Kind: "category", ID: cat.ID, Label: cat.Name}
		return m, nil
	}
	return m, nil
}

// cycleFilter advances the status filter tab, clearing the category tab.
func (m *Model) cycleFilter() {
	filters := view.Filters()
	next := 0
	for i, f := range filters {
		if f == m.selection.Filter() {
			next = (i + 1) % len(filters)
			break
		}
	}
	m.selection = m.selection.SetFilter(filters[next])
	m.selectedIdx = 0
	m.clampSelections()
}

// cycleCategory moves the category tab selection: off → each category in
// creation order → uncategorized → off. Picking one resets the filter.
func (m *Model) cycleCategory(delta int) {
	ids := make([]string, 0, len(m.categories)+2)
	ids = append(ids, "")
	for _, c := range m.categories {
		ids = append(ids, c.ID)
	}
	ids = append(ids, view.UncategorizedID)

	current := 0
	for i, id := range ids {
		if id == m.selection.CategoryID() {
			current = i
			break
		}
	}
	next := (current + delta + len(ids)) % len(ids)
	m.selection = m.selection.SetCategory(ids[next])
	m.selectedIdx = 0
	m.clampSelections()
}

// moveSelectedTask shifts the selected task one board column left or right.
func (m Model) moveSelectedTask(delta int) (tea.Model, tea.Cmd) {
	task, ok := m.currentTask()
	if !ok {
		return m, nil
	}
	statuses := domain.Statuses()
	idx := 0
	for i, s := range statuses {
		if s == task.Status {
			idx = i
			break
		}
	}
	target := idx + delta
	if target < 0 || target >= len(statuses) {
		return m, nil
	}
	return m, m.setStatusCmd(task.ID, statuses[target])
}

// Store mutations run as commands so failures surface through actionMsg.

func (m Model) toggleTaskCmd(id string) tea.Cmd {
	return func() tea.Msg {
		task, err := m.svc.ToggleTask(context.Background(), id)
		if err != nil {
			return actionMsg{err: err}
		}
		if task.Completed {
			return actionMsg{status: "completed: " + task.Title}
		}
		return actionMsg{status: "reopened: " + task.Title}
	}
}

func (m Model) cycleStatusCmd(id string) tea.Cmd {
	return func() tea.Msg {
		task, err := m.svc.CycleTaskStatus(context.Background(), id)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: statusLabels[task.Status] + ": " + task.Title}
	}
}

func (m Model) setStatusCmd(id string, status domain.Status) tea.Cmd {
	return func() tea.Msg {
		task, err := m.svc.UpdateTaskStatus(context.Background(), id, status)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: statusLabels[task.Status] + ": " + task.Title}
	}
}

func (m Model) deleteTaskCmd(id string) tea.Cmd {
	return func() tea.Msg {
		if err := m.svc.DeleteTask(context.Background(), id); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "task deleted"}
	}
}

func (m Model) deleteCategoryCmd(id string) tea.Cmd {
	return func() tea.Msg {
		if err := m.svc.DeleteCategory(context.Background(), id); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "category deleted"}
	}
}

// newModalInput builds one form text input.
func newModalInput(prompt, placeholder, value string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = prompt
	in.Placeholder = placeholder
	in.CharLimit = limit
	if value != "" {
		in.SetValue(value)
	}
	return in
}

// startTaskForm starts task form. A nil task opens the create dialog.
func (m *Model) startTaskForm(task *domain.Task) tea.Cmd {
	m.formFocus = 0
	m.priorityIdx = 0
	m.categoryIdx = 0
	m.formInputs = []textinput.Model{
		newModalInput("", "task title (required)", "", 120),
		newModalInput("", "details (markdown ok)", "", 480),
		newModalInput("", "YYYY-MM-DD[THH:MM] or -", "", 32),
		newModalInput("", "e.g. 09:00-10:30", "", 32),
	}
	if task != nil {
		m.mode = modeEditTask
		m.editingTaskID = task.ID
		m.status = "edit task"
		m.formInputs[taskFieldTitle].SetValue(task.Title)
		m.formInputs[taskFieldDescription].SetValue(task.Description)
		if task.DueDate != nil {
			m.formInputs[taskFieldDue].SetValue(formatDueValue(task.DueDate))
		}
		m.formInputs[taskFieldTimeRange].SetValue(task.TimeRange)
		m.priorityIdx = priorityIndex(task.Priority)
		m.categoryIdx = m.categoryOptionIndex(task.CategoryID)
	} else {
		m.mode = modeAddTask
		m.editingTaskID = ""
		m.status = "new task"
		if m.selection.CategoryID() != "" && m.selection.CategoryID() != view.UncategorizedID {
			// Creating from a category tab pre-selects that category.
			m.categoryIdx = m.categoryOptionIndex(m.selection.CategoryID())
		}
	}
	return m.focusTaskFormField(0)
}

// focusTaskFormField focuses task form field. Cycle fields have no input to
// focus.
func (m *Model) focusTaskFormField(idx int) tea.Cmd {
	idx = clamp(idx, 0, taskFieldCount-1)
	m.formFocus = idx
	for i := range m.formInputs {
		m.formInputs[i].Blur()
	}
	if idx >= len(m.formInputs) {
		return nil
	}
	return m.formInputs[idx].Focus()
}

// categoryOptionIndex maps a category id to its cycle position; 0 is "none".
func (m Model) categoryOptionIndex(categoryID string) int {
	for i, c := range m.categories {
		if c.ID == categoryID {
			return i + 1
		}
	}
	return 0
}

// categoryOptionID maps a cycle position back to a category id.
func (m Model) categoryOptionID(idx int) string {
	if idx <= 0 || idx > len(m.categories) {
		return ""
	}
	return m.categories[idx-1].ID
}

// priorityIndex returns the cycle position of a priority value.
func priorityIndex(priority domain.Priority) int {
	for i, p := range priorityOptions {
		if p == priority {
			return i
		}
	}
	return 0
}

// startCategoryForm starts category form. A nil category opens the create
// dialog.
func (m *Model) startCategoryForm(cat *domain.Category) tea.Cmd {
	m.categoryFocus = 0
	m.categoryInputs = []textinput.Model{
		newModalInput("", "category name (required)", "", 60),
		newModalInput("", "emoji or short glyph", "", 8),
		newModalInput("", "accent color (e.g. #f97316)", "", 16),
	}
	if cat != nil {
		m.mode = modeEditCategory
		m.editingCategoryID = cat.ID
		m.status = "edit category"
		m.categoryInputs[categoryFieldName].SetValue(cat.Name)
		m.categoryInputs[categoryFieldIcon].SetValue(cat.Icon)
		m.categoryInputs[categoryFieldColor].SetValue(cat.Color)
	} else {
		m.mode = modeAddCategory
		m.editingCategoryID = ""
		m.status = "new category"
	}
	return m.focusCategoryFormField(0)
}

// focusCategoryFormField focuses category form field.
func (m *Model) focusCategoryFormField(idx int) tea.Cmd {
	if len(m.categoryInputs) == 0 {
		return nil
	}
	idx = clamp(idx, 0, len(m.categoryInputs)-1)
	m.categoryFocus = idx
	for i := range m.categoryInputs {
		m.categoryInputs[i].Blur()
	}
	return m.categoryInputs[idx].Focus()
}

// handleInputModeKey handles keys while a dialog is open.
func (m Model) handleInputModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeTaskInfo:
		switch msg.String() {
		case "esc", "q", "enter", "i":
			m.mode = modeNone
			m.infoTaskID = ""
			m.status = "ready"
		}
		return m, nil

	case modeConfirmDelete:
		switch msg.String() {
		case "y", "enter":
			target := m.pendingConfirm
			m.mode = modeNone
			m.pendingConfirm = confirmTarget{}
			if target.Kind == "category" {
				return m, m.deleteCategoryCmd(target.ID)
			}
			return m, m.deleteTaskCmd(target.ID)
		case "n", "esc":
			m.mode = modeNone
			m.pendingConfirm = confirmTarget{}
			m.status = "cancelled"
		}
		return m, nil

	case modeAddTask, modeEditTask:
		return m.handleTaskFormKey(msg)

	case modeAddCategory, modeEditCategory:
		return m.handleCategoryFormKey(msg)
	}
	return m, nil
}

// handleTaskFormKey routes keys inside the task dialog.
func (m Model) handleTaskFormKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeNone
		m.status = "cancelled"
		return m, nil
	case "enter":
		return m.submitTaskForm()
	case "tab", "down":
		return m, m.focusTaskFormField((m.formFocus + 1) % taskFieldCount)
	case "shift+tab", "up":
		return m, m.focusTaskFormField((m.formFocus - 1 + taskFieldCount) % taskFieldCount)
	}

	switch m.formFocus {
	case taskFieldPriority:
		switch msg.String() {
		case "left", "h":
			m.priorityIdx = (m.priorityIdx - 1 + len(priorityOptions)) % len(priorityOptions)
		case "right", "l", " ", "space":
			m.priorityIdx = (m.priorityIdx + 1) % len(priorityOptions)
		}
		return m, nil
	case taskFieldCategory:
		total := len(m.categories) + 1
		switch msg.String() {
		case "left", "h":
			m.categoryIdx = (m.categoryIdx - 1 + total) % total
		case "right", "l", " ", "space":
			m.categoryIdx = (m.categoryIdx + 1) % total
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.formInputs[m.formFocus], cmd = m.formInputs[m.formFocus].Update(msg)
	return m, cmd
}

// submitTaskForm validates and issues the create or edit mutation.
func (m Model) submitTaskForm() (tea.Model, tea.Cmd) {
	title := strings.TrimSpace(m.formInputs[taskFieldTitle].Value())
	if title == "" {
		m.status = "title required"
		return m, nil
	}
	due, err := parseDueInput(m.formInputs[taskFieldDue].Value())
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	description := strings.TrimSpace(m.formInputs[taskFieldDescription].Value())
	timeRange := strings.TrimSpace(m.formInputs[taskFieldTimeRange].Value())
	priority := priorityOptions[m.priorityIdx]
	categoryID := m.categoryOptionID(m.categoryIdx)

	if m.mode == modeEditTask {
		id := m.editingTaskID
		patch := domain.TaskPatch{
			Title:       &title,
			Description: &description,
			TimeRange:   &timeRange,
			Priority:    &priority,
			CategoryID:  &categoryID,
		}
		// The due input always submits: "-" or blank clears via the zero
		// time, anything else replaces.
		cleared := time.Time{}
		if due == nil {
			patch.DueDate = &cleared
		} else {
			patch.DueDate = due
		}
		m.mode = modeNone
		return m, func() tea.Msg {
			task, err := m.svc.EditTask(context.Background(), id, patch)
			if err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{status: "updated: " + task.Title}
		}
	}

	in := store.CreateTaskInput{
		Title:       title,
		Description: description,
		DueDate:     due,
		CategoryID:  categoryID,
		Priority:    priority,
		TimeRange:   timeRange,
	}
	m.mode = modeNone
	return m, func() tea.Msg {
		task, err := m.svc.AddTask(context.Background(), in)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "created: " + task.Title}
	}
}

// handleCategoryFormKey routes keys inside the category dialog.
func (m Model) handleCategoryFormKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeNone
		m.status = "cancelled"
		return m, nil
	case "enter":
		return m.submitCategoryForm()
	case "tab", "down":
		return m, m.focusCategoryFormField((m.categoryFocus + 1) % len(m.categoryInputs))
	case "shift+tab", "up":
		return m, m.focusCategoryFormField((m.categoryFocus - 1 + len(m.categoryInputs)) % len(m.categoryInputs))
	}

	var cmd tea.Cmd
	m.categoryInputs[m.categoryFocus], cmd = m.categoryInputs[m.categoryFocus].Update(msg)
	return m, cmd
}

// submitCategoryForm validates and issues the create or edit mutation.
func (m Model) submitCategoryForm() (tea.Model, tea.Cmd) {
	name := strings.TrimSpace(m.categoryInputs[categoryFieldName].Value())
	if name == "" {
		m.status = "name required"
		return m, nil
	}
	icon := strings.TrimSpace(m.categoryInputs[categoryFieldIcon].Value())
	color := strings.TrimSpace(m.categoryInputs[categoryFieldColor].Value())

	if m.mode == modeEditCategory {
		id := m.editingCategoryID
		patch := domain.CategoryPatch{Name: &name, Icon: &icon, Color: &color}
		m.mode = modeNone
		return m, func() tea.Msg {
			cat, err := m.svc.UpdateCategory(context.Background(), id, patch)
			if err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{status: "updated: " + cat.Name}
		}
	}

	in := store.CreateCategoryInput{Name: name, Icon: icon, Color: color}
	m.mode = modeNone
	return m, func() tea.Msg {
		cat, err := m.svc.AddCategory(context.Background(), in)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "created: " + cat.Name}
	}
}

// parseDueInput parses the due form value. Blank or "-" means no due date.
func parseDueInput(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "-" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			utc := ts.UTC()
			return &utc, nil
		}
	}
	return nil, fmt.Errorf("invalid due date %q (want YYYY-MM-DD[THH:MM])", raw)
}

// formatDueValue formats a due date for the form input.
func formatDueValue(due *time.Time) string {
	if due == nil {
		return ""
	}
	d := due.UTC()
	if d.Hour() == 0 && d.Minute() == 0 {
		return d.Format("2006-01-02")
	}
	return d.Format("2006-01-02T15:04")
}

// handleMouseWheel handles mouse wheel.
func (m Model) handleMouseWheel(msg tea.MouseWheelMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeNone {
		return m, nil
	}
	switch msg.Button {
	case tea.MouseWheelUp:
		if m.screen == screenBoard {
			if m.selectedTask > 0 {
				m.selectedTask--
			}
		} else if m.selectedIdx > 0 {
			m.selectedIdx--
		}
	case tea.MouseWheelDown:
		if m.screen == screenBoard {
			col := m.columnTasks(domain.Statuses()[m.selectedColumn])
			if m.selectedTask < len(col)-1 {
				m.selectedTask++
			}
		} else if m.selectedIdx < len(m.flattenedTasks())-1 {
			m.selectedIdx++
		}
	}
	return m, nil
}

// handleMousePress starts a board drag interaction on the pressed card.
func (m Model) handleMousePress(msg tea.MouseClickMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeNone || m.screen != screenBoard || msg.Button != tea.MouseLeft {
		return m, nil
	}
	target := m.boardTargetAt(msg.X, msg.Y)
	if target.TaskID == "" {
		return m, nil
	}
	// Move the keyboard cursor to the pressed card as well.
	m.focusBoardTask(target.TaskID)
	m.drag.Press(target.TaskID, msg.X, msg.Y)
	return m, nil
}

// handleMouseMotion feeds pointer movement into the drag engine.
func (m Model) handleMouseMotion(msg tea.MouseMotionMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeNone || m.screen != screenBoard {
		return m, nil
	}
	if _, ok := m.drag.Pressed(); !ok {
		return m, nil
	}
	m.drag.Motion(msg.X, msg.Y)
	m.drag.Over(m.boardTargetAt(msg.X, msg.Y))
	return m, nil
}

// handleMouseRelease completes the drag: a click opens the edit dialog, a
// cross-column drop moves the task.
func (m Model) handleMouseRelease(msg tea.MouseReleaseMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeNone || m.screen != screenBoard {
		return m, nil
	}
	outcome, move := m.drag.Release(m.boardTargetAt(msg.X, msg.Y))
	switch outcome {
	case board.OutcomeClick:
		task, ok := m.taskByID(move.TaskID)
		if !ok {
			return m, nil
		}
		return m, m.startTaskForm(&task)
	case board.OutcomeMove:
		return m, m.setStatusCmd(move.TaskID, move.To)
	}
	return m, nil
}

// focusBoardTask points the board cursor at a task id.
func (m *Model) focusBoardTask(taskID string) {
	statuses := domain.Statuses()
	for colIdx, status := range statuses {
		for taskIdx, task := range m.columnTasks(status) {
			if task.ID == taskID {
				m.selectedColumn = colIdx
				m.selectedTask = taskIdx
				return
			}
		}
	}
}

// Board geometry. Cards render with a fixed row span so mouse hit testing
// stays in lockstep with rendering.

const cardSpan = 3

// boardTop returns the first board row: header, tab line, spacer.
func (m Model) boardTop() int {
	return 3
}

// columnWidth returns the inner card width for the three columns.
func (m Model) columnWidth() int {
	w := 28
	if m.width > 0 {
		// Per-column overhead: border (2), padding (2), margin-right (1).
		const colOverhead = 5
		candidate := (m.width - 3*colOverhead) / 3
		if candidate > 0 {
			w = candidate
		}
	}
	return clamp(w, 20, 44)
}

// boardTargetAt maps a terminal coordinate to a drop target: a task card
// when the pointer is on one, otherwise the column surface, otherwise
// nothing.
func (m Model) boardTargetAt(x, y int) board.Target {
	const colOverhead = 5
	colSpan := m.columnWidth() + colOverhead
	if colSpan <= 0 {
		return board.Target{}
	}
	colIdx := x / colSpan
	statuses := domain.Statuses()
	if colIdx < 0 || colIdx >= len(statuses) {
		return board.Target{}
	}
	status := statuses[colIdx]

	row := y - m.boardTop() - 2 // column title + divider
	if row >= 0 {
		tasks := m.columnTasks(status)
		taskIdx := row / cardSpan
		if taskIdx >= 0 && taskIdx < len(tasks) {
			return board.Target{Column: status, TaskID: tasks[taskIdx].ID}
		}
	}
	return board.Target{Column: status}
}

// View handles view.
func (m Model) View() tea.View {
	if m.err != nil {
		v := tea.NewView("error: " + m.err.Error() + "\n\npress r to retry • q quit\n")
		v.MouseMode = tea.MouseModeCellMotion
		v.AltScreen = true
		return v
	}
	if !m.ready {
		v := tea.NewView("loading...")
		v.MouseMode = tea.MouseModeCellMotion
		v.AltScreen = true
		return v
	}

	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	accent := lipgloss.Color("62")

	header := m.renderHeader(accent, muted)
	var body string
	if m.screen == screenBoard {
		body = m.renderBoard(accent, muted, dim)
	} else {
		body = m.renderList(accent, muted, dim)
	}
	statusLine := lipgloss.NewStyle().Foreground(dim).Render(m.status)

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))

	content := header + "\n" + body
	if m.height > 0 {
		footerHeight := lipgloss.Height(statusLine) + lipgloss.Height(helpLine)
		content = fitLines(content, max(0, m.height-footerHeight))
	}
	full := content + "\n" + statusLine + "\n" + helpLine

	if overlay := m.renderOverlay(accent, muted, dim); overlay != "" {
		height := lipgloss.Height(full)
		if m.height > 0 {
			height = m.height
		}
		full = overlayOnContent(full, overlay, max(1, m.width), max(1, height))
	}

	v := tea.NewView(full)
	v.MouseMode = tea.MouseModeCellMotion
	v.AltScreen = true
	return v
}

// renderHeader renders the title row and the filter/category tab row.
func (m Model) renderHeader(accent, muted color.Color) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	activeTab := lipgloss.NewStyle().Bold(true).Foreground(accent)
	tabStyle := lipgloss.NewStyle().Foreground(muted)

	title := titleStyle.Render("syssla")
	if m.userLabel != "" {
		title += tabStyle.Render("  •  " + m.userLabel)
	}
	if m.screen == screenBoard {
		title += tabStyle.Render("  •  board")
	}

	tabs := make([]string, 0, len(view.Filters())+len(m.categories)+1)
	for _, f := range view.Filters() {
		label := string(f)
		if f == m.selection.Filter() && m.selection.CategoryID() == "" {
			tabs = append(tabs, activeTab.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	tabs = append(tabs, tabStyle.Render("|"))
	for _, c := range m.categories {
		label := c.DisplayIcon() + " " + c.Name
		if c.ID == m.selection.CategoryID() {
			tabs = append(tabs, activeTab.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	if m.selection.CategoryID() == view.UncategorizedID {
		tabs = append(tabs, activeTab.Render("📝 Uncategorized"))
	}
	return title + "\n" + strings.Join(tabs, "  ") + "\n"
}

// renderList renders the grouped category sections.
func (m Model) renderList(accent, muted, dim color.Color) string {
	groups := m.visibleGroups()
	if len(groups) == 0 {
		return lipgloss.NewStyle().Foreground(muted).Render("nothing here · press n to add a task")
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	countStyle := lipgloss.NewStyle().Foreground(dim)
	selectedStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Background(lipgloss.Color("237"))
	doneStyle := lipgloss.NewStyle().Foreground(dim).Strikethrough(true)
	metaStyle := lipgloss.NewStyle().Foreground(muted)

	var b strings.Builder
	flatIdx := 0
	for gi, g := range groups {
		if gi > 0 {
			b.WriteString("\n")
		}
		b.WriteString(headerStyle.Render(g.Icon+" "+g.Name) + " " + countStyle.Render(fmt.Sprintf("(%d pending)", g.PendingCount())) + "\n")
		for _, task := range g.Tasks {
			line := statusGlyphs[task.Status] + " " + task.Title
			if meta := m.taskMeta(task); meta != "" {
				line += " " + metaStyle.Render(meta)
			}
			switch {
			case flatIdx == m.selectedIdx:
				line = selectedStyle.Render("› " + line)
			case task.Completed:
				line = "  " + doneStyle.Render(line)
			default:
				line = "  " + line
			}
			b.WriteString(line + "\n")
			flatIdx++
		}
	}
	return b.String()
}

// taskMeta builds the secondary field summary for a task row or card.
func (m Model) taskMeta(task domain.Task) string {
	parts := make([]string, 0, 3)
	if m.taskFields.ShowPriority && task.Priority != "" {
		parts = append(parts, string(task.Priority))
	}
	if m.taskFields.ShowDueDate && task.DueDate != nil {
		label := task.DueDate.UTC().Format("01-02")
		if task.DueToday(time.Now().UTC()) {
			label = "today"
		}
		parts = append(parts, label)
	}
	if m.taskFields.ShowTimeRange && task.TimeRange != "" {
		parts = append(parts, task.TimeRange)
	}
	if len(parts) == 0 {
		return ""
	}
	return "· " + strings.Join(parts, " · ")
}

// renderBoard renders the three status columns side by side.
func (m Model) renderBoard(accent, muted, dim color.Color) string {
	statuses := domain.Statuses()
	colWidth := m.columnWidth()
	dragID, dragging := m.drag.Active()
	hover, hoverSet := m.drag.Hover()

	columns := make([]string, 0, len(statuses))
	for colIdx, status := range statuses {
		tasks := m.columnTasks(status)

		titleStyle := lipgloss.NewStyle().Bold(true).Foreground(muted)
		borderColor := dim
		if colIdx == m.selectedColumn {
			titleStyle = titleStyle.Foreground(accent)
		}
		if hoverSet && hover == status && dragging {
			borderColor = accent
		}

		var cards strings.Builder
		cards.WriteString(titleStyle.Render(fmt.Sprintf("%s (%d)", statusLabels[status], len(tasks))) + "\n")
		cards.WriteString(lipgloss.NewStyle().Foreground(dim).Render(strings.Repeat("─", colWidth)) + "\n")
		for taskIdx, task := range tasks {
			cards.WriteString(m.renderCard(task, colWidth, colIdx == m.selectedColumn && taskIdx == m.selectedTask, dragging && task.ID == dragID, muted, dim))
		}
		if len(tasks) == 0 {
			cards.WriteString(lipgloss.NewStyle().Foreground(dim).Render("empty") + "\n")
		}

		col := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1).
			Width(colWidth + 2).
			MarginRight(1).
			Render(cards.String())
		columns = append(columns, col)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, columns...)
}

// renderCard renders one board card with the fixed cardSpan row count.
func (m Model) renderCard(task domain.Task, width int, selected, dragged bool, muted, dim color.Color) string {
	titleStyle := lipgloss.NewStyle()
	switch {
	case dragged:
		titleStyle = titleStyle.Bold(true).Foreground(lipgloss.Color("229"))
	case selected:
		titleStyle = titleStyle.Bold(true).Foreground(lipgloss.Color("252")).Background(lipgloss.Color("237"))
	case task.Completed:
		titleStyle = titleStyle.Foreground(dim).Strikethrough(true)
	}

	prefix := "  "
	if selected {
		prefix = "› "
	}
	if dragged {
		prefix = "≡ "
	}
	title := titleStyle.Render(truncate(prefix+task.Title, width))

	meta := m.taskMeta(task)
	if cat, ok := m.categoryByID(task.CategoryID); ok {
		if meta == "" {
			meta = "· " + cat.DisplayIcon() + " " + cat.Name
		} else {
			meta += " · " + cat.DisplayIcon() + " " + cat.Name
		}
	}
	metaLine := lipgloss.NewStyle().Foreground(muted).Render(truncate("  "+meta, width))

	return title + "\n" + metaLine + "\n" + "\n"
}

// renderOverlay renders the active dialog, if any.
func (m Model) renderOverlay(accent, muted, dim color.Color) string {
	switch m.mode {
	case modeAddTask, modeEditTask:
		return m.renderTaskForm(accent, muted, dim)
	case modeAddCategory, modeEditCategory:
		return m.renderCategoryForm(accent, muted, dim)
	case modeConfirmDelete:
		return m.renderConfirm(accent, muted, dim)
	case modeTaskInfo:
		return m.renderTaskInfo(accent, muted, dim)
	}
	return ""
}

// dialogStyle builds the shared modal frame.
func dialogStyle(accent color.Color, width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(1, 2).
		Width(width)
}

// renderTaskForm renders the create/edit task dialog.
func (m Model) renderTaskForm(accent, muted, dim color.Color) string {
	title := "New Task"
	if m.mode == modeEditTask {
		title = "Edit Task"
	}
	labels := []string{"Title", "Details", "Due", "Time"}
	focusStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	labelStyle := lipgloss.NewStyle().Foreground(muted)

	rows := make([]string, 0, taskFieldCount+3)
	rows = append(rows, lipgloss.NewStyle().Bold(true).Render(title), "")
	for i, in := range m.formInputs {
		label := labelStyle.Render(labels[i])
		if i == m.formFocus {
			label = focusStyle.Render(labels[i])
		}
		rows = append(rows, label+"  "+in.View())
	}

	priorityLabel := "-"
	if priorityOptions[m.priorityIdx] != "" {
		priorityLabel = string(priorityOptions[m.priorityIdx])
	}
	pr := labelStyle.Render("Priority") + "  ‹ " + priorityLabel + " ›"
	if m.formFocus == taskFieldPriority {
		pr = focusStyle.Render("Priority") + "  ‹ " + priorityLabel + " ›"
	}
	rows = append(rows, pr)

	categoryLabel := "none"
	if id := m.categoryOptionID(m.categoryIdx); id != "" {
		if cat, ok := m.categoryByID(id); ok {
			categoryLabel = cat.DisplayIcon() + " " + cat.Name
		}
	}
	cr := labelStyle.Render("Category") + "  ‹ " + categoryLabel + " ›"
	if m.formFocus == taskFieldCategory {
		cr = focusStyle.Render("Category") + "  ‹ " + categoryLabel + " ›"
	}
	rows = append(rows, cr)

	rows = append(rows, "", lipgloss.NewStyle().Foreground(dim).Render("tab next · enter save · esc cancel"))
	return dialogStyle(accent, min(72, max(40, m.width-8))).Render(strings.Join(rows, "\n"))
}

// renderCategoryForm renders the create/edit category dialog.
func (m Model) renderCategoryForm(accent, muted, dim color.Color) string {
	title := "New Category"
	if m.mode == modeEditCategory {
		title = "Edit Category"
	}
	labels := []string{"Name", "Icon", "Color"}
	focusStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	labelStyle := lipgloss.NewStyle().Foreground(muted)

	rows := make([]string, 0, len(m.categoryInputs)+3)
	rows = append(rows, lipgloss.NewStyle().Bold(true).Render(title), "")
	for i, in := range m.categoryInputs {
		label := labelStyle.Render(labels[i])
		if i == m.categoryFocus {
			label = focusStyle.Render(labels[i])
		}
		rows = append(rows, label+"  "+in.View())
	}
	rows = append(rows, "", lipgloss.NewStyle().Foreground(dim).Render("tab next · enter save · esc cancel"))
	return dialogStyle(accent, min(60, max(36, m.width-8))).Render(strings.Join(rows, "\n"))
}

// renderConfirm renders the delete confirmation dialog.
func (m Model) renderConfirm(accent, muted, dim color.Color) string {
	rows := []string{
		lipgloss.NewStyle().Bold(true).Render("Delete " + m.pendingConfirm.Kind + "?"),
		"",
		truncate(m.pendingConfirm.Label, 56),
	}
	if m.pendingConfirm.Kind == "category" {
		rows = append(rows, lipgloss.NewStyle().Foreground(muted).Render("its tasks stay and regroup as uncategorized"))
	}
	rows = append(rows, "", lipgloss.NewStyle().Foreground(dim).Render("y confirm · n cancel"))
	return dialogStyle(accent, min(64, max(32, m.width-8))).Render(strings.Join(rows, "\n"))
}

// renderTaskInfo renders the read-only task detail dialog with the
// description as markdown.
func (m *Model) renderTaskInfo(accent, muted, dim color.Color) string {
	task, ok := m.taskByID(m.infoTaskID)
	if !ok {
		return ""
	}
	width := min(76, max(44, m.width-8))

	rows := []string{
		lipgloss.NewStyle().Bold(true).Render(statusGlyphs[task.Status] + " " + task.Title),
	}
	facts := make([]string, 0, 4)
	facts = append(facts, statusLabels[task.Status])
	if task.Priority != "" {
		facts = append(facts, string(task.Priority))
	}
	if task.DueDate != nil {
		facts = append(facts, "due "+task.DueDate.UTC().Format("2006-01-02"))
	}
	if task.TimeRange != "" {
		facts = append(facts, task.TimeRange)
	}
	if cat, ok := m.categoryByID(task.CategoryID); ok {
		facts = append(facts, cat.DisplayIcon()+" "+cat.Name)
	}
	rows = append(rows, lipgloss.NewStyle().Foreground(muted).Render(strings.Join(facts, " · ")))

	if desc := m.markdown.render(task.Description, width-6); desc != "" {
		rows = append(rows, "", desc)
	}
	rows = append(rows, "", lipgloss.NewStyle().Foreground(dim).Render("esc close"))
	return dialogStyle(accent, width).Render(strings.Join(rows, "\n"))
}

// clamp clamps the requested operation.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// fitLines fits lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		padding := make([]string, maxLines-len(lines))
		lines = append(lines, padding...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent overlays on content.
func overlayOnContent(base, overlay string, width, height int) string {
	if width <= 0 || height <= 0 {
		if strings.TrimSpace(overlay) == "" {
			return base
		}
		return overlay + "\n\n" + base
	}

	base = fitLines(base, height)
	canvas := lipgloss.NewCanvas(width, height)
	baseLayer := lipgloss.NewLayer(base).X(0).Y(0).Z(0)
	centeredOverlay := lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		overlay,
	)
	overlayLayer := lipgloss.NewLayer(centeredOverlay).X(0).Y(0).Z(10)

	canvas.Compose(baseLayer)
	canvas.Compose(overlayLayer)
	return canvas.Render()
}

// truncate truncates the requested operation.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}
