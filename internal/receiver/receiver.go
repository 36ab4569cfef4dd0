// Package receiver feeds debounced GPIO edges into the channel tracker.
package receiver

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sweeney/rf-receiver/internal/gpio"
	"github.com/sweeney/rf-receiver/internal/logic"
	"github.com/sweeney/rf-receiver/internal/metrics"
)

// SampleMode selects what grows the history.
type SampleMode string

const (
	// SampleTick appends a snapshot on every sampler tick of the main loop.
	SampleTick SampleMode = "tick"
	// SampleEdge appends a snapshot after every level change.
	SampleEdge SampleMode = "edge"
)

// ParseSampleMode validates a sample mode name.
func ParseSampleMode(s string) (SampleMode, error) {
	switch m := SampleMode(s); m {
	case SampleTick, SampleEdge:
		return m, nil
	}
	return "", fmt.Errorf("unknown sample mode %q", s)
}

// DefaultQueueSize bounds the transitions waiting for the main loop.
const DefaultQueueSize = 64

// Transition is a level change applied to a channel.
type Transition struct {
	Time    time.Time
	Channel logic.Channel
	Line    int
	Level   bool
	State   logic.State // all levels right after the change
}

// Options configures a Receiver.
type Options struct {
	History   *logic.History // required for SampleEdge
	Mode      SampleMode
	Now       func() time.Time
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	QueueSize int
}

// Receiver applies edges to a tracker. HandleEdge is safe to call from the
// GPIO event goroutine.
type Receiver struct {
	tracker *logic.Tracker
	history *logic.History
	mode    SampleMode
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics

	out     chan Transition
	stopped atomic.Bool
}

// New creates a Receiver for tracker.
func New(tracker *logic.Tracker, opts Options) *Receiver {
	if opts.Mode == "" {
		opts.Mode = SampleTick
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	return &Receiver{
		tracker: tracker,
		history: opts.History,
		mode:    opts.Mode,
		now:     opts.Now,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		out:     make(chan Transition, opts.QueueSize),
	}
}

// HandleEdge applies e to the tracker. Edges arriving after Stop are ignored.
// Unknown lines are logged and dropped.
func (r *Receiver) HandleEdge(e gpio.Edge) {
	if r.stopped.Load() {
		return
	}

	prev, err := r.tracker.HandleEdge(e.Line, e.Level)
	if err != nil {
		if errors.Is(err, logic.ErrUnknownLine) {
			r.metrics.ObserveUnknownLine()
			r.logger.Warn("receiver: edge on unregistered line",
				slog.Int("line", e.Line),
				slog.String("level", logic.LevelString(e.Level)))
			return
		}
		r.logger.Error("receiver: handle edge", slog.String("error", err.Error()))
		return
	}

	c, _ := r.tracker.Lookup(e.Line)
	r.metrics.ObserveEdge(c, prev, e.Level)

	if prev == e.Level {
		r.logger.Debug("receiver: duplicate edge",
			slog.String("channel", c.String()),
			slog.String("level", logic.LevelString(e.Level)))
		return
	}

	r.logger.Info(fmt.Sprintf("%s %s", c, logic.LevelString(e.Level)),
		slog.String("channel", c.Key()),
		slog.Int("line", e.Line))

	now := r.now()
	state := r.tracker.Snapshot()
	if r.mode == SampleEdge && r.history != nil {
		r.history.Append(now, state)
		r.metrics.SetHistorySamples(r.history.Len())
	}

	t := Transition{Time: now, Channel: c, Line: e.Line, Level: e.Level, State: state}
	select {
	case r.out <- t:
	default:
		r.metrics.ObserveDropped()
		r.logger.Warn("receiver: transition queue full, dropping",
			slog.String("channel", c.Key()))
	}
}

// Transitions delivers applied level changes to the main loop.
// The channel is never closed.
func (r *Receiver) Transitions() <-chan Transition {
	return r.out
}

// Stop makes HandleEdge ignore further edges.
func (r *Receiver) Stop() {
	r.stopped.Store(true)
}

// Stopped reports whether Stop was called.
func (r *Receiver) Stopped() bool {
	return r.stopped.Load()
}

// Mode returns the sampling mode.
func (r *Receiver) Mode() SampleMode {
	return r.mode
}
