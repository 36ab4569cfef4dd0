package logic

import (
	"fmt"
	"sync"
	"time"
)

// Tracker holds the current level of every channel.
// HandleEdge may be called from the GPIO event goroutine while other
// goroutines call Snapshot; all access goes through mu.
type Tracker struct {
	mu     sync.RWMutex
	lines  map[int]Channel
	byChan [NumChannels]int
	wired  [NumChannels]bool
	state  State
	counts Counts
}

// NewTracker creates a Tracker with every channel LOW and no lines registered.
func NewTracker() *Tracker {
	return &Tracker{lines: make(map[int]Channel, NumChannels)}
}

// NewTrackerWithLines creates a Tracker and registers every entry of lines.
// Registration happens in channel order so errors are deterministic.
func NewTrackerWithLines(lines map[Channel]int) (*Tracker, error) {
	for c := range lines {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: unknown channel %d", ErrConfiguration, int(c))
		}
	}

	t := NewTracker()
	for _, c := range Channels {
		line, ok := lines[c]
		if !ok {
			continue
		}
		if err := t.Register(c, line); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Register associates channel c with GPIO line offset line.
func (t *Tracker) Register(c Channel, line int) error {
	if !c.Valid() {
		return fmt.Errorf("%w: unknown channel %d", ErrConfiguration, int(c))
	}
	if line < 0 {
		return fmt.Errorf("%w: %s: invalid line %d", ErrConfiguration, c, line)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if owner, ok := t.lines[line]; ok {
		return fmt.Errorf("%w: line %d already registered to %s", ErrConfiguration, line, owner)
	}
	if t.wired[c] {
		return fmt.Errorf("%w: %s already registered to line %d", ErrConfiguration, c, t.byChan[c])
	}

	t.lines[line] = c
	t.byChan[c] = line
	t.wired[c] = true
	return nil
}

// HandleEdge sets the level of the channel wired to line and returns the
// previous level. Setting a channel to its current level is a no-op.
// Returns ErrUnknownLine, without touching state, if line is not registered.
func (t *Tracker) HandleEdge(line int, level bool) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.lines[line]
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrUnknownLine, line)
	}

	prev := t.state[c]
	t.state[c] = level

	switch {
	case prev == level:
		t.counts[c].Duplicates++
	case level:
		t.counts[c].Asserts++
	default:
		t.counts[c].Deasserts++
	}
	return prev, nil
}

// Snapshot returns a copy of the current levels.
func (t *Tracker) Snapshot() State {
	t.mu.RLock()
	s := t.state
	t.mu.RUnlock()
	return s
}

// SampleInto appends the current levels to h at ts.
// The caller owns the clock so the tracker stays free of wall time.
func (t *Tracker) SampleInto(h *History, ts time.Time) {
	h.Append(ts, t.Snapshot())
}

// Lookup returns the channel wired to line.
func (t *Tracker) Lookup(line int) (Channel, bool) {
	t.mu.RLock()
	c, ok := t.lines[line]
	t.mu.RUnlock()
	return c, ok
}

// Lines returns the registered wiring keyed by channel.
func (t *Tracker) Lines() map[Channel]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[Channel]int, len(t.lines))
	for line, c := range t.lines {
		out[c] = line
	}
	return out
}

// Offsets returns the registered line offsets in channel order.
func (t *Tracker) Offsets() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []int
	for _, c := range Channels {
		if t.wired[c] {
			out = append(out, t.byChan[c])
		}
	}
	return out
}

// Counts returns a copy of the per-channel edge counters.
func (t *Tracker) Counts() Counts {
	t.mu.RLock()
	c := t.counts
	t.mu.RUnlock()
	return c
}
