package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// maxIconRunes caps category icons at a short glyph. Four runes is enough for
// common multi-codepoint emoji while keeping tab labels narrow.
const maxIconRunes = 4

// Category is a named grouping bucket for tasks. Tasks reference it strictly
// by id; names may be renamed freely.
type Category struct {
	ID        string
	UserID    string
	Name      string
	Icon      string
	Color     string
	CreatedAt time.Time
}

// NewCategory validates input and constructs a category.
func NewCategory(id, userID, name, icon, color string, now time.Time) (Category, error) {
	id = strings.TrimSpace(id)
	userID = strings.TrimSpace(userID)
	name = strings.TrimSpace(name)
	icon = strings.TrimSpace(icon)
	color = strings.TrimSpace(color)

	if id == "" {
		return Category{}, ErrInvalidID
	}
	if userID == "" {
		return Category{}, ErrInvalidID
	}
	if name == "" {
		return Category{}, ErrInvalidName
	}
	if utf8.RuneCountInString(icon) > maxIconRunes {
		return Category{}, ErrInvalidIcon
	}

	return Category{
		ID:        id,
		UserID:    userID,
		Name:      name,
		Icon:      icon,
		Color:     color,
		CreatedAt: now.UTC(),
	}, nil
}

// CategoryPatch carries replacement values for a category edit, with the same
// nil / non-nil-zero rules as TaskPatch.
type CategoryPatch struct {
	Name  *string
	Icon  *string
	Color *string
}

// Apply merges the patch into the category.
func (c *Category) Apply(p CategoryPatch) error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return ErrInvalidName
		}
		c.Name = name
	}
	if p.Icon != nil {
		icon := strings.TrimSpace(*p.Icon)
		if utf8.RuneCountInString(icon) > maxIconRunes {
			return ErrInvalidIcon
		}
		c.Icon = icon
	}
	if p.Color != nil {
		c.Color = strings.TrimSpace(*p.Color)
	}
	return nil
}

// DisplayIcon returns the icon with a fallback glyph for bare categories.
func (c Category) DisplayIcon() string {
	if c.Icon == "" {
		return "📁"
	}
	return c.Icon
}
