package model

import "time"

// Timestamps is embedded by every persisted entity.
type Timestamps struct {
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// BasicView is the reduced projection handed to roles with basic access.
type BasicView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

// Page selects a window of a list result. Number is 1-based.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps the requested values into the allowed range.
func NewPage(number, size, maxSize int) Page {
	if maxSize <= 0 {
		maxSize = MaxPageSize
	}
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > maxSize {
		size = maxSize
	}
	return Page{Number: number, Size: size}
}

func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

func (p Page) Limit() int {
	if p.Size < 1 {
		return DefaultPageSize
	}
	return p.Size
}

func fullName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}
