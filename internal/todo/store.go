package todo

import "errors"

// ErrNotFound is returned when no todo exists for an id.
var ErrNotFound = errors.New("todo not found")

// Store holds todos. Implementations must be safe for concurrent use.
type Store interface {
	// List returns a snapshot of every todo. Callers must not rely on the order.
	List() []Todo
	Get(id uint64) (Todo, error)
	// Create assigns the next id and stores a new, not completed todo.
	// The title is expected to be validated by the caller.
	Create(title string) Todo
	Update(id uint64, p Patch) (Todo, error)
	Delete(id uint64) error
	Len() int
}
