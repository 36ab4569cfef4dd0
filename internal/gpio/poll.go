package gpio

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sweeney/rf-receiver/internal/logic"
)

// Poller reads line levels on a fixed interval and reports an edge once a
// line has held a new level for the debounce period. The first stable level
// of each line is reported as well.
type Poller struct {
	read      func() (map[int]bool, error)
	debouncer *logic.Debouncer
	logger    *slog.Logger

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	failing bool
}

// NewPoller creates a Poller that reads levels with read.
func NewPoller(read func() (map[int]bool, error), debounce time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		read:      read,
		debouncer: logic.NewDebouncer(debounce),
		logger:    logger,
	}
}

// Step takes one reading at now and returns the debounced edges it completes,
// in ascending line order.
func (p *Poller) Step(now time.Time) []Edge {
	levels, err := p.read()
	if err != nil {
		if !p.failing {
			p.logger.Warn("gpio: poll read failed", slog.String("error", err.Error()))
			p.failing = true
		}
		return nil
	}
	if p.failing {
		p.logger.Info("gpio: poll read recovered")
		p.failing = false
	}

	lines := make([]int, 0, len(levels))
	for line := range levels {
		lines = append(lines, line)
	}
	slices.Sort(lines)

	var edges []Edge
	for _, line := range lines {
		if change, ok := p.debouncer.Process(line, levels[line], now); ok {
			edges = append(edges, Edge{Line: change.Line, Level: change.Level, Time: change.Time})
		}
	}
	return edges
}

// Start runs Step every interval on its own goroutine, passing edges to h.
func (p *Poller) Start(interval time.Duration, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})

	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case t := <-ticker.C:
				for _, e := range p.Step(t) {
					h(e)
				}
			}
		}
	}(p.stop, p.done)
}

// Stop halts the polling goroutine and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}
