package tui

import "charm.land/bubbles/v2/key"

// keyMap represents key map data used by this package.
type keyMap struct {
	quit           key.Binding
	reload         key.Binding
	toggleHelp     key.Binding
	toggleScreen   key.Binding
	moveUp         key.Binding
	moveDown       key.Binding
	moveLeft       key.Binding
	moveRight      key.Binding
	filterTab      key.Binding
	categoryTab    key.Binding
	addTask        key.Binding
	editTask       key.Binding
	taskInfo       key.Binding
	toggleDone     key.Binding
	cycleStatus    key.Binding
	deleteTask     key.Binding
	moveTaskLeft   key.Binding
	moveTaskRight  key.Binding
	addCategory    key.Binding
	editCategory   key.Binding
	deleteCategory key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:           key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:         key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		toggleScreen:   key.NewBinding(key.WithKeys("b", "tab"), key.WithHelp("b/tab", "list ↔ board")),
		moveUp:         key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "task up")),
		moveDown:       key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "task down")),
		moveLeft:       key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "column left")),
		moveRight:      key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "column right")),
		filterTab:      key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "cycle filter")),
		categoryTab:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cycle category")),
		addTask:        key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new task")),
		editTask:       key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit task")),
		taskInfo:       key.NewBinding(key.WithKeys("i", "enter"), key.WithHelp("i/enter", "task info")),
		toggleDone:     key.NewBinding(key.WithKeys(" ", "space", "x"), key.WithHelp("space/x", "toggle done")),
		cycleStatus:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "cycle status")),
		deleteTask:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete task")),
		moveTaskLeft:   key.NewBinding(key.WithKeys("["), key.WithHelp("[", "move task left")),
		moveTaskRight:  key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "move task right")),
		addCategory:    key.NewBinding(key.WithKeys("N"), key.WithHelp("N", "new category")),
		editCategory:   key.NewBinding(key.WithKeys("E"), key.WithHelp("E", "edit category")),
		deleteCategory: key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "delete category")),
	}
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.addTask, k.editTask, k.toggleDone, k.cycleStatus, k.toggleScreen, k.filterTab, k.categoryTab, k.quit,
	}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.addTask, k.editTask, k.taskInfo, k.deleteTask, k.toggleDone, k.cycleStatus, k.toggleHelp, k.reload, k.quit},
		{k.moveUp, k.moveDown, k.moveLeft, k.moveRight, k.moveTaskLeft, k.moveTaskRight, k.toggleScreen},
		{k.filterTab, k.categoryTab, k.addCategory, k.editCategory, k.deleteCategory},
	}
}
