package domain

import (
	"slices"
	"strings"
	"time"
)

type Priority string

const (
	PriorityHigh Priority = "High"
	PriorityMid  Priority = "Mid"
	PriorityLow  Priority = "Low"
)

var validPriorities = []Priority{PriorityHigh, PriorityMid, PriorityLow}

// Task is a user-owned unit of work. Completed is kept for the older
// two-state model and must always equal Status == StatusDone; every mutation
// path reconciles the pair.
type Task struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Status      Status
	Completed   bool
	DueDate     *time.Time
	CategoryID  string
	Priority    Priority
	TimeRange   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type TaskInput struct {
	ID          string
	UserID      string
	Title       string
	Description string
	DueDate     *time.Time
	CategoryID  string
	Priority    Priority
	TimeRange   string
}

// NewTask validates input and constructs a fresh task in the todo state.
func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.UserID = strings.TrimSpace(in.UserID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.CategoryID = strings.TrimSpace(in.CategoryID)
	in.TimeRange = strings.TrimSpace(in.TimeRange)

	if in.ID == "" {
		return Task{}, ErrInvalidID
	}
	if in.UserID == "" {
		return Task{}, ErrInvalidID
	}
	if in.Title == "" {
		return Task{}, ErrInvalidTitle
	}
	if in.Priority != "" && !slices.Contains(validPriorities, in.Priority) {
		return Task{}, ErrInvalidPriority
	}

	return Task{
		ID:          in.ID,
		UserID:      in.UserID,
		Title:       in.Title,
		Description: in.Description,
		Status:      StatusTodo,
		Completed:   false,
		DueDate:     normalizeDueDate(in.DueDate),
		CategoryID:  in.CategoryID,
		Priority:    in.Priority,
		TimeRange:   in.TimeRange,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// TaskPatch carries replacement values for an edit. A nil field means "leave
// unchanged"; a non-nil field replaces the stored value wholesale, and a
// non-nil zero value ("" or the zero time) clears it. One rule for every
// mutation path.
type TaskPatch struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	CategoryID  *string
	Priority    *Priority
	TimeRange   *string
	Status      *Status
	Completed   *bool
}

// Apply merges the patch into the task, reconciling Completed and Status so
// the pair never disagrees.
func (t *Task) Apply(p TaskPatch, now time.Time) error {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return ErrInvalidTitle
		}
		t.Title = title
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.DueDate != nil {
		if p.DueDate.IsZero() {
			t.DueDate = nil
		} else {
			t.DueDate = normalizeDueDate(p.DueDate)
		}
	}
	if p.CategoryID != nil {
		t.CategoryID = strings.TrimSpace(*p.CategoryID)
	}
	if p.Priority != nil {
		if *p.Priority != "" && !slices.Contains(validPriorities, *p.Priority) {
			return ErrInvalidPriority
		}
		t.Priority = *p.Priority
	}
	if p.TimeRange != nil {
		t.TimeRange = strings.TrimSpace(*p.TimeRange)
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return ErrInvalidStatus
		}
		t.Status = *p.Status
		t.Completed = *p.Status == StatusDone
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
		if *p.Completed {
			t.Status = StatusDone
		} else if t.Status == StatusDone {
			t.Status = StatusTodo
		}
	}
	t.UpdatedAt = now.UTC()
	return nil
}

// SetStatus moves the task to a lifecycle state and reconciles Completed.
func (t *Task) SetStatus(status Status, now time.Time) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	t.Status = status
	t.Completed = status == StatusDone
	t.UpdatedAt = now.UTC()
	return nil
}

// Toggle flips the coarse two-state completion used outside the board.
func (t *Task) Toggle(now time.Time) {
	if t.Completed {
		t.Completed = false
		t.Status = StatusTodo
	} else {
		t.Completed = true
		t.Status = StatusDone
	}
	t.UpdatedAt = now.UTC()
}

// DueToday reports whether the due date falls on the given calendar day.
func (t Task) DueToday(now time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	y1, m1, d1 := t.DueDate.Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func normalizeDueDate(due *time.Time) *time.Time {
	if due == nil || due.IsZero() {
		return nil
	}
	ts := due.UTC().Truncate(time.Second)
	return &ts
}
