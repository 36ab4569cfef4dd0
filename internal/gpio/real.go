//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// consumer labels the lines in gpioinfo output.
const consumer = "rf-receiver"

// RealSource reads lines from actual hardware using the Linux GPIO character device.
type RealSource struct {
	opts    Options
	logger  *slog.Logger
	chip    *gpiocdev.Chip
	lines   *gpiocdev.Lines
	handler atomic.Pointer[Handler]
	poller  *Poller

	closeOnce sync.Once
	closeErr  error
}

// NewRealSource opens the chip and requests every line as an input.
// In edge mode the kernel detects both edges and debounces them.
func NewRealSource(opts Options) (*RealSource, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	chip, err := gpiocdev.NewChip(opts.Chip, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", opts.Chip, err)
	}

	s := &RealSource{
		opts:   opts,
		logger: opts.logger(),
		chip:   chip,
	}

	reqOpts := []gpiocdev.LineReqOption{gpiocdev.AsInput, biasOption(opts.Bias)}
	if opts.ActiveLow {
		reqOpts = append(reqOpts, gpiocdev.AsActiveLow)
	}
	if opts.Poll <= 0 {
		reqOpts = append(reqOpts,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(s.onEvent),
		)
		if opts.Debounce > 0 {
			reqOpts = append(reqOpts, gpiocdev.WithDebounce(opts.Debounce))
		}
	}

	lines, err := chip.RequestLines(opts.Lines, reqOpts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request lines %v: %w", opts.Lines, err)
	}
	s.lines = lines

	if opts.Poll > 0 {
		s.poller = NewPoller(s.Levels, opts.Debounce, s.logger)
	}
	return s, nil
}

func biasOption(b Bias) gpiocdev.LineBias {
	switch b {
	case BiasPullUp:
		return gpiocdev.WithPullUp
	case BiasDisabled:
		return gpiocdev.WithBiasDisabled
	default:
		// Matches the Pi boot default for these pins.
		return gpiocdev.WithPullDown
	}
}

// Start begins delivering edges to h.
func (s *RealSource) Start(h Handler) error {
	if h == nil {
		return errors.New("gpio: nil handler")
	}
	s.handler.Store(&h)
	if s.poller != nil {
		s.poller.Start(s.opts.Poll, h)
	}
	s.logger.Info("gpio: started",
		slog.String("chip", s.opts.Chip),
		slog.Any("lines", s.opts.Lines),
		slog.Duration("debounce", s.opts.Debounce),
		slog.Duration("poll", s.opts.Poll))
	return nil
}

// onEvent runs on the gpiocdev watcher goroutine.
func (s *RealSource) onEvent(evt gpiocdev.LineEvent) {
	hp := s.handler.Load()
	if hp == nil {
		return
	}
	(*hp)(Edge{
		Line:  evt.Offset,
		Level: evt.Type == gpiocdev.LineEventRisingEdge,
		Time:  time.Now(),
	})
}

// Levels reads the current logical level of every line.
func (s *RealSource) Levels() (map[int]bool, error) {
	vals := make([]int, len(s.opts.Lines))
	if err := s.lines.Values(vals); err != nil {
		return nil, fmt.Errorf("read lines: %w", err)
	}
	out := make(map[int]bool, len(vals))
	for i, offset := range s.opts.Lines {
		out[offset] = vals[i] == 1
	}
	return out, nil
}

// Close stops delivery and releases GPIO resources.
// Reconfigures lines to input with pull-down (matching Pi boot defaults)
// before closing so the header is left in a clean state.
func (s *RealSource) Close() error {
	s.closeOnce.Do(func() {
		s.handler.Store(nil)
		if s.poller != nil {
			s.poller.Stop()
		}

		var errs []error
		if s.lines != nil {
			if err := s.lines.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
				errs = append(errs, fmt.Errorf("reconfigure lines: %w", err))
			}
			if err := s.lines.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close lines: %w", err))
			}
		}
		if s.chip != nil {
			if err := s.chip.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close chip: %w", err))
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
