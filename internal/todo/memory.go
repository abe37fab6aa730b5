package todo

import (
	"cmp"
	"slices"
	"sync"
)

// MemoryStore is an in-memory Store. A single mutex serializes every call,
// so all operations are linearizable with respect to each other.
type MemoryStore struct {
	mu    sync.Mutex
	todos map[uint64]Todo
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{todos: make(map[uint64]Todo)}
}

// List returns the todos sorted by id.
func (s *MemoryStore) List() []Todo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Todo, 0, len(s.todos))
	for _, t := range s.todos {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b Todo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *MemoryStore) Get(id uint64) (Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.todos[id]
	if !ok {
		return Todo{}, ErrNotFound
	}
	return t, nil
}

// Create uses len+1 as the new id. Once a todo has been deleted this can
// collide with a live id, in which case the live todo is replaced.
func (s *MemoryStore) Create(title string) Todo {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := Todo{
		ID:    uint64(len(s.todos)) + 1,
		Title: title,
	}
	s.todos[t.ID] = t
	return t
}

func (s *MemoryStore) Update(id uint64, p Patch) (Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.todos[id]
	if !ok {
		return Todo{}, ErrNotFound
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	s.todos[id] = t
	return t, nil
}

func (s *MemoryStore) Delete(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.todos[id]; !ok {
		return ErrNotFound
	}
	delete(s.todos, id)
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.todos)
}
