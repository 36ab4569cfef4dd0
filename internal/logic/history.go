package logic

import (
	"iter"
	"sync"
	"time"
)

// Sample is one timestamped copy of every channel level.
type Sample struct {
	Time  time.Time
	State State
}

// History is an append-only, time-ordered log of samples.
// One writer may append while other goroutines read.
type History struct {
	mu      sync.RWMutex
	samples []Sample
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{}
}

// Append adds a sample. A timestamp earlier than the last sample is raised
// to the last sample's timestamp so the log never goes backwards.
func (h *History) Append(ts time.Time, s State) {
	h.mu.Lock()
	if n := len(h.samples); n > 0 && ts.Before(h.samples[n-1].Time) {
		ts = h.samples[n-1].Time
	}
	h.samples = append(h.samples, Sample{Time: ts, State: s})
	h.mu.Unlock()
}

// Len returns the number of samples appended so far.
func (h *History) Len() int {
	h.mu.RLock()
	n := len(h.samples)
	h.mu.RUnlock()
	return n
}

// First returns the oldest sample, if any.
func (h *History) First() (Sample, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.samples) == 0 {
		return Sample{}, false
	}
	return h.samples[0], true
}

// Last returns the most recent sample, if any.
func (h *History) Last() (Sample, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.samples) == 0 {
		return Sample{}, false
	}
	return h.samples[len(h.samples)-1], true
}

// Samples returns a copy of every sample in insertion order.
func (h *History) Samples() []Sample {
	view := h.view()
	out := make([]Sample, len(view))
	copy(out, view)
	return out
}

// Series yields (timestamp, level) for channel c in insertion order.
// The sequence covers the samples present when Series was called and can be
// ranged over any number of times with the same result.
func (h *History) Series(c Channel) iter.Seq2[time.Time, bool] {
	view := h.view()
	return func(yield func(time.Time, bool) bool) {
		for _, s := range view {
			if !yield(s.Time, s.State.Level(c)) {
				return
			}
		}
	}
}

// view returns the current samples without copying. Elements are never
// rewritten after Append, so the slice stays valid as the log grows.
func (h *History) view() []Sample {
	h.mu.RLock()
	v := h.samples[:len(h.samples):len(h.samples)]
	h.mu.RUnlock()
	return v
}
