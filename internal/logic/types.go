// Package logic contains the pure channel-tracking logic for the RF receiver.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"errors"
	"fmt"
	"strings"
)

// Channel identifies one output of the RX480E-4 receiver module.
type Channel int

const (
	North Channel = iota
	South
	East
	West
	Common

	// NumChannels is the number of channels tracked.
	NumChannels = 5
)

var channelNames = [NumChannels]string{
	North:  "North",
	South:  "South",
	East:   "East",
	West:   "West",
	Common: "Common",
}

// Channels lists every channel in display order.
var Channels = [NumChannels]Channel{North, South, East, West, Common}

func (c Channel) String() string {
	if c.Valid() {
		return channelNames[c]
	}
	return fmt.Sprintf("Channel(%d)", int(c))
}

// Valid reports whether c is one of the known channels.
func (c Channel) Valid() bool {
	return c >= North && c <= Common
}

// Directional reports whether c is one of N/S/E/W.
// Common is the receiver's reference rail and is observed on its own.
func (c Channel) Directional() bool {
	return c.Valid() && c != Common
}

// Key returns the lowercase name used in config files, JSON and metric labels.
func (c Channel) Key() string {
	return strings.ToLower(c.String())
}

// ParseChannel resolves a channel by name, case-insensitively.
func ParseChannel(s string) (Channel, error) {
	for _, c := range Channels {
		if strings.EqualFold(s, channelNames[c]) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown channel %q", ErrConfiguration, s)
}

var (
	// ErrConfiguration reports an invalid channel/line wiring. Fatal at startup.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnknownLine reports an edge on a line that was never registered.
	ErrUnknownLine = errors.New("unknown line")
)

// State holds the level of every channel. true = asserted (HIGH).
// It is a value type; copies are independent.
type State [NumChannels]bool

// Level returns the level of c. Unknown channels read as false.
func (s State) Level(c Channel) bool {
	if !c.Valid() {
		return false
	}
	return s[c]
}

// Map returns the state keyed by channel.
func (s State) Map() map[Channel]bool {
	m := make(map[Channel]bool, NumChannels)
	for _, c := range Channels {
		m[c] = s[c]
	}
	return m
}

// LevelString renders a level the way the receiver logs it.
func LevelString(high bool) string {
	if high {
		return "HIGH"
	}
	return "LOW"
}

// ChannelCounts tracks edge activity for one channel since startup.
type ChannelCounts struct {
	Asserts    int // LOW -> HIGH
	Deasserts  int // HIGH -> LOW
	Duplicates int // same-level deliveries
}

// Counts holds ChannelCounts for every channel.
type Counts [NumChannels]ChannelCounts

// Transitions returns the total number of level changes on c.
func (c Counts) Transitions(ch Channel) int {
	if !ch.Valid() {
		return 0
	}
	return c[ch].Asserts + c[ch].Deasserts
}
