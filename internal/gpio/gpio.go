// Package gpio delivers debounced edge events from GPIO input lines.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"fmt"
	"log/slog"
	"time"
)

// Edge is a debounced level change on one line.
type Edge struct {
	Line  int
	Level bool // true = HIGH (after any active-low inversion)
	Time  time.Time
}

// Handler receives edges. It may be called from a goroutine owned by the
// Source, concurrently with the rest of the program.
type Handler func(Edge)

// Source watches a fixed set of input lines.
type Source interface {
	// Start begins delivering edges to h. Edges seen before Start are dropped.
	Start(h Handler) error

	// Levels reads the current level of every requested line.
	Levels() (map[int]bool, error)

	// Close stops delivery and releases the lines.
	Close() error
}

// Default line offsets (BCM numbering) of the RX480E-4 wiring.
const (
	DefaultPinNorth  = 23
	DefaultPinSouth  = 24
	DefaultPinEast   = 25
	DefaultPinWest   = 12
	DefaultPinCommon = 16
)

// DefaultChip is the GPIO controller of the Raspberry Pi header.
const DefaultChip = "gpiochip0"

// DefaultDebounce is the minimum time a line must hold a level.
const DefaultDebounce = 20 * time.Millisecond

// Bias selects the input pull resistor.
type Bias string

const (
	BiasPullDown Bias = "pull-down"
	BiasPullUp   Bias = "pull-up"
	BiasDisabled Bias = "disabled"
)

// Options configures a real Source.
type Options struct {
	Chip      string
	Lines     []int
	Debounce  time.Duration
	Bias      Bias
	ActiveLow bool

	// Poll > 0 reads lines on this interval and debounces in software,
	// for kernels without edge debounce support.
	Poll time.Duration

	Logger *slog.Logger
}

func (o Options) validate() error {
	if len(o.Lines) == 0 {
		return fmt.Errorf("gpio: no lines requested")
	}
	switch o.Bias {
	case BiasPullDown, BiasPullUp, BiasDisabled, "":
	default:
		return fmt.Errorf("gpio: unknown bias %q", o.Bias)
	}
	if o.Debounce < 0 {
		return fmt.Errorf("gpio: negative debounce %v", o.Debounce)
	}
	return nil
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
