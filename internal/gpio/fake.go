package gpio

import (
	"errors"
	"sync"
	"time"
)

// FakeSource is a test double that delivers scripted edges.
type FakeSource struct {
	mu sync.Mutex

	// levels holds the current raw level per line, updated by Emit.
	levels map[int]bool

	handler Handler

	// Started tracks if Start was called
	Started bool

	// Closed tracks if Close was called
	Closed bool

	// StartError, if set, will be returned by Start()
	StartError error

	// LevelsError, if set, will be returned by Levels()
	LevelsError error

	// Now stamps emitted edges. Defaults to time.Now.
	Now func() time.Time
}

// NewFakeSource creates a FakeSource with the given initial levels.
func NewFakeSource(levels map[int]bool) *FakeSource {
	l := make(map[int]bool, len(levels))
	for k, v := range levels {
		l[k] = v
	}
	return &FakeSource{levels: l, Now: time.Now}
}

// Start records the handler.
func (f *FakeSource) Start(h Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartError != nil {
		return f.StartError
	}
	if h == nil {
		return errors.New("gpio: nil handler")
	}
	f.handler = h
	f.Started = true
	return nil
}

// Emit sets the level of line and delivers an edge synchronously.
// Returns false if the source is not started or already closed.
func (f *FakeSource) Emit(line int, level bool) bool {
	f.mu.Lock()
	f.levels[line] = level
	h := f.handler
	deliver := f.Started && !f.Closed && h != nil
	now := f.Now
	f.mu.Unlock()

	if !deliver {
		return false
	}
	h(Edge{Line: line, Level: level, Time: now()})
	return true
}

// Levels returns the current scripted levels.
func (f *FakeSource) Levels() (map[int]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LevelsError != nil {
		return nil, f.LevelsError
	}
	out := make(map[int]bool, len(f.levels))
	for k, v := range f.levels {
		out[k] = v
	}
	return out, nil
}

// Close marks the source as closed; later Emit calls are not delivered.
func (f *FakeSource) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// IsClosed reports whether Close was called.
func (f *FakeSource) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Closed
}
