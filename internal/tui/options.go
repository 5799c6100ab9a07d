package tui

// TaskFieldConfig controls which secondary task fields the views render.
type TaskFieldConfig struct {
	ShowPriority    bool
	ShowDueDate     bool
	ShowTimeRange   bool
	ShowDescription bool
}

type Option func(*Model)

func DefaultTaskFieldConfig() TaskFieldConfig {
	return TaskFieldConfig{
		ShowPriority:    true,
		ShowDueDate:     true,
		ShowTimeRange:   false,
		ShowDescription: false,
	}
}

func WithTaskFieldConfig(cfg TaskFieldConfig) Option {
	return func(m *Model) {
		m.taskFields = cfg
	}
}

// WithUserLabel sets the header label for the signed-in user.
func WithUserLabel(label string) Option {
	return func(m *Model) {
		m.userLabel = label
	}
}
