// Package board implements the drag state machine behind the three-column
// status board. A task's column is a projection of its status; the engine's
// only job is to turn pointer gestures into status transitions.
package board

import "github.com/hylla/syssla/internal/domain"

// DefaultActivationDistance is how many cells the pointer must travel before
// a press becomes a drag. Activation is purely distance-based; there is no
// elapsed-time heuristic.
const DefaultActivationDistance = 1

// Target is what the pointer is currently over: a column surface, a task
// card, or (both zero) nothing droppable.
type Target struct {
	Column domain.Status
	TaskID string
}

// Move is the status transition implied by a completed drop.
type Move struct {
	TaskID string
	To     domain.Status
}

// Outcome classifies a released pointer gesture.
type Outcome int

const (
	// OutcomeNone: nothing to do. No active press, unresolvable drop
	// target, or a drop back into the task's own column.
	OutcomeNone Outcome = iota
	// OutcomeClick: the press never activated into a drag; the UI opens
	// the edit dialog for the pressed task.
	OutcomeClick
	// OutcomeMove: a cross-column drop; the UI applies the Move.
	OutcomeMove
)

// StatusResolver looks up a task's current status by id.
type StatusResolver func(taskID string) (domain.Status, bool)

// Engine tracks one pointer interaction at a time. It never mutates tasks;
// it reports the transition for the caller to apply through the store.
type Engine struct {
	resolve    StatusResolver
	activation int

	pressedID string
	pressX    int
	pressY    int
	dragging  bool
	hover     domain.Status
	hoverSet  bool
}

// NewEngine constructs an engine over a status lookup. activation <= 0 uses
// the default distance.
func NewEngine(resolve StatusResolver, activation int) *Engine {
	if activation <= 0 {
		activation = DefaultActivationDistance
	}
	return &Engine{resolve: resolve, activation: activation}
}

// Active returns the id of the task being dragged, if a drag has activated.
func (e *Engine) Active() (string, bool) {
	if !e.dragging {
		return "", false
	}
	return e.pressedID, true
}

// Pressed returns the id of the pressed task, drag-activated or not.
func (e *Engine) Pressed() (string, bool) {
	if e.pressedID == "" {
		return "", false
	}
	return e.pressedID, true
}

// Hover returns the column currently highlighted as the drop target.
func (e *Engine) Hover() (domain.Status, bool) {
	return e.hover, e.hoverSet
}

// Press records a pointer-down on a task card. No state mutation happens
// until release.
func (e *Engine) Press(taskID string, x, y int) {
	e.pressedID = taskID
	e.pressX = x
	e.pressY = y
	e.dragging = false
	e.hover = ""
	e.hoverSet = false
}

// Motion promotes the press to an active drag once the pointer travels the
// activation distance. Smaller wiggles still count as a click at release.
func (e *Engine) Motion(x, y int) {
	if e.pressedID == "" || e.dragging {
		return
	}
	if maxAbs(x-e.pressX, y-e.pressY) >= e.activation {
		e.dragging = true
	}
}

// Over records the hover column for visual feedback only.
func (e *Engine) Over(target Target) {
	if !e.dragging {
		return
	}
	col, ok := e.resolveTarget(target)
	e.hover = col
	e.hoverSet = ok
}

// Release completes the interaction. Bookkeeping resets unconditionally,
// whether or not a transition occurred.
func (e *Engine) Release(target Target) (Outcome, Move) {
	pressedID := e.pressedID
	dragging := e.dragging
	e.pressedID = ""
	e.dragging = false
	e.hover = ""
	e.hoverSet = false

	if pressedID == "" {
		return OutcomeNone, Move{}
	}
	if !dragging {
		return OutcomeClick, Move{TaskID: pressedID}
	}

	current, ok := e.resolve(pressedID)
	if !ok {
		return OutcomeNone, Move{}
	}
	to, ok := e.resolveTarget(target)
	if !ok {
		// Drop outside any valid zone: silently ignored.
		return OutcomeNone, Move{}
	}
	if to == current {
		// Dropping back into the same column changes nothing.
		return OutcomeNone, Move{}
	}
	return OutcomeMove, Move{TaskID: pressedID, To: to}
}

// resolveTarget maps a drop target to a column: the column directly under
// the pointer, or the hovered task's own column.
func (e *Engine) resolveTarget(target Target) (domain.Status, bool) {
	if target.Column.Valid() {
		return target.Column, true
	}
	if target.TaskID != "" {
		if status, ok := e.resolve(target.TaskID); ok {
			return status, true
		}
	}
	return "", false
}

func maxAbs(a, b int) int {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	if a > b {
		return a
	}
	return b
}
