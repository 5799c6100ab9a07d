package domain

import "slices"

// Status is the authoritative task lifecycle state. The board's three columns
// are a projection of it; there is no separate column concept.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// statusCycle is the fixed click-through order used by the list view.
var statusCycle = []Status{StatusTodo, StatusInProgress, StatusDone}

// Statuses returns the lifecycle states in board-column order.
func Statuses() []Status {
	return slices.Clone(statusCycle)
}

// Valid reports whether s is one of the three lifecycle states.
func (s Status) Valid() bool {
	return slices.Contains(statusCycle, s)
}

// Next advances one step in the cycle, wrapping done back to todo.
func (s Status) Next() Status {
	idx := slices.Index(statusCycle, s)
	if idx < 0 {
		return StatusTodo
	}
	return statusCycle[(idx+1)%len(statusCycle)]
}

// ParseStatus normalizes raw storage values into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}
