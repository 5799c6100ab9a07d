// Package view derives what the renderers show from the store's collections.
// Everything here is a pure function of its inputs: same tasks, filter, and
// category always yield the same result.
package view

import (
	"github.com/hylla/syssla/internal/domain"
)

// Filter is the status-tab selection. It filters strictly on the completed
// boolean, so an in-progress task counts as pending.
type Filter string

const (
	FilterAll       Filter = "All"
	FilterPending   Filter = "Pending"
	FilterCompleted Filter = "Completed"
)

// Filters returns the tabs in display order.
func Filters() []Filter {
	return []Filter{FilterAll, FilterPending, FilterCompleted}
}

// UncategorizedID is the synthetic group key for tasks whose category
// reference is absent or unresolvable. It is never a persisted category.
const UncategorizedID = "uncategorized"

// Selection holds the active filter and category tab. The two are mutually
// exclusive: picking one resets the other to its neutral value.
type Selection struct {
	filter     Filter
	categoryID string
}

// NewSelection starts at the neutral state (All, no category).
func NewSelection() Selection {
	return Selection{filter: FilterAll}
}

func (s Selection) Filter() Filter     { return s.filter }
func (s Selection) CategoryID() string { return s.categoryID }

// SetFilter activates a status tab and clears the category tab.
func (s Selection) SetFilter(f Filter) Selection {
	return Selection{filter: f}
}

// SetCategory activates a category tab and resets the filter to All. An empty
// id returns to the neutral state.
func (s Selection) SetCategory(categoryID string) Selection {
	return Selection{filter: FilterAll, categoryID: categoryID}
}

// FilterTasks returns the tasks visible under the filter and category
// restriction, preserving input order.
func FilterTasks(tasks []domain.Task, filter Filter, categoryID string) []domain.Task {
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		switch filter {
		case FilterPending:
			if t.Completed {
				continue
			}
		case FilterCompleted:
			if !t.Completed {
				continue
			}
		}
		if categoryID != "" && t.CategoryID != categoryID {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Group is one rendered category section.
type Group struct {
	CategoryID string
	Name       string
	Icon       string
	Tasks      []domain.Task
}

// PendingCount is the section-header counter: member tasks not yet completed.
func (g Group) PendingCount() int {
	n := 0
	for _, t := range g.Tasks {
		if !t.Completed {
			n++
		}
	}
	return n
}

// GroupByCategory partitions the filtered tasks into category sections,
// preserving category creation order, with a synthetic uncategorized section
// last for tasks whose category id is absent or resolves to no known
// category. Sections with zero tasks are omitted, so a brand-new empty
// category is invisible until it has a task.
func GroupByCategory(tasks []domain.Task, categories []domain.Category) []Group {
	known := make(map[string]int, len(categories))
	groups := make([]Group, 0, len(categories)+1)
	for _, c := range categories {
		known[c.ID] = len(groups)
		groups = append(groups, Group{CategoryID: c.ID, Name: c.Name, Icon: c.DisplayIcon()})
	}
	uncategorized := Group{CategoryID: UncategorizedID, Name: "Uncategorized", Icon: "📝"}

	for _, t := range tasks {
		if idx, ok := known[t.CategoryID]; ok && t.CategoryID != "" {
			groups[idx].Tasks = append(groups[idx].Tasks, t)
			continue
		}
		uncategorized.Tasks = append(uncategorized.Tasks, t)
	}

	out := make([]Group, 0, len(groups)+1)
	for _, g := range groups {
		if len(g.Tasks) == 0 {
			continue
		}
		out = append(out, g)
	}
	if len(uncategorized.Tasks) > 0 {
		out = append(out, uncategorized)
	}
	return out
}

// TasksByStatus projects the task list into the three board columns.
func TasksByStatus(tasks []domain.Task) map[domain.Status][]domain.Task {
	out := map[domain.Status][]domain.Task{}
	for _, t := range tasks {
		out[t.Status] = append(out[t.Status], t)
	}
	return out
}
