// Package diag records one human-readable line per rejected or failed request.
//
// Recording is fire-and-forget: a sink that cannot persist a line logs the
// failure and drops it, it never reports back to the caller.
package diag

import (
	"io"
	"sync"

	"go.uber.org/multierr"
)

// Sink is an append-only destination for diagnostic lines.
type Sink interface {
	Record(msg string)
}

// Discard drops every line.
type Discard struct{}

func (Discard) Record(string) {}

// Memory keeps lines in memory. The zero value is ready to use.
type Memory struct {
	mu    sync.Mutex
	lines []string
}

func (m *Memory) Record(msg string) {
	m.mu.Lock()
	m.lines = append(m.lines, msg)
	m.mu.Unlock()
}

// Lines returns a copy of the recorded lines in order.
func (m *Memory) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.lines))
	copy(out, m.lines)
	return out
}

// Multi fans every line out to each of its sinks in order.
type Multi []Sink

func (m Multi) Record(msg string) {
	for _, s := range m {
		s.Record(msg)
	}
}

// Close closes every sink that implements io.Closer and returns the combined error.
func (m Multi) Close() error {
	var err error
	for _, s := range m {
		if c, ok := s.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}
