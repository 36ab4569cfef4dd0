package logic

import "time"

// LevelChange is a debounced level reported for one line.
type LevelChange struct {
	Line  int
	Level bool
	Time  time.Time
}

// lineState tracks debounce state for a single line.
type lineState struct {
	// Current stable (debounced) level
	stable bool
	// Pending level during debounce
	pending bool
	// Whether a pending level is being observed
	hasPending bool
	// Time when pending level was first observed
	pendingSince time.Time
	// Whether we have established a baseline
	baselined bool
}

// Debouncer turns raw polled levels into debounced level changes.
// A level is reported only once a line has held it for the debounce period.
// The first stable level of each line is its baseline and is reported too,
// so consumers learn the startup level.
// Not safe for concurrent use.
type Debouncer struct {
	period time.Duration
	lines  map[int]*lineState
}

// NewDebouncer creates a Debouncer with the given stability period.
func NewDebouncer(period time.Duration) *Debouncer {
	return &Debouncer{
		period: period,
		lines:  make(map[int]*lineState),
	}
}

// Process takes one raw reading of a line and returns the debounced change,
// if this reading completes one.
func (d *Debouncer) Process(line int, level bool, now time.Time) (LevelChange, bool) {
	ls, ok := d.lines[line]
	if !ok {
		ls = &lineState{}
		d.lines[line] = ls
	}

	// First time seeing this line
	if !ls.baselined {
		if !ls.hasPending || ls.pending != level {
			// Start observing, or restart after a change during baseline
			ls.pending = level
			ls.hasPending = true
			ls.pendingSince = now
		}
		if now.Sub(ls.pendingSince) >= d.period {
			ls.stable = level
			ls.baselined = true
			ls.hasPending = false
			return LevelChange{Line: line, Level: level, Time: now}, true
		}
		return LevelChange{}, false
	}

	// Already baselined - detect transitions
	if level == ls.stable {
		// Bounced back, clear any pending
		ls.hasPending = false
		return LevelChange{}, false
	}

	if !ls.hasPending || ls.pending != level {
		ls.pending = level
		ls.hasPending = true
		ls.pendingSince = now
	}

	if now.Sub(ls.pendingSince) >= d.period {
		ls.stable = level
		ls.hasPending = false
		return LevelChange{Line: line, Level: level, Time: now}, true
	}
	return LevelChange{}, false
}

// Stable returns the debounced level of line and whether it is baselined.
func (d *Debouncer) Stable(line int) (level, baselined bool) {
	ls, ok := d.lines[line]
	if !ok {
		return false, false
	}
	return ls.stable, ls.baselined
}

// Baselined reports whether every line seen so far has a stable level.
func (d *Debouncer) Baselined() bool {
	if len(d.lines) == 0 {
		return false
	}
	for _, ls := range d.lines {
		if !ls.baselined {
			return false
		}
	}
	return true
}
