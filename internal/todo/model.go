package todo

import (
	"errors"
	"strings"
)

// Todo is a single stored to-do item.
type Todo struct {
	ID        uint64 `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Patch carries the fields of an update. Nil fields are left unchanged.
type Patch struct {
	Title     *string
	Completed *bool
}

// ErrTitleEmpty is returned by ValidateTitle for blank titles.
var ErrTitleEmpty = errors.New("title cannot be empty")

// ValidateTitle rejects titles that are blank after trimming whitespace.
// The title itself is stored untrimmed.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrTitleEmpty
	}
	return nil
}
