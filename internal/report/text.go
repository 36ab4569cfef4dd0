package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sweeney/rf-receiver/internal/logic"
)

// Text renders a per-channel summary followed by an ASCII strip chart.
// Directional channels come first; Common is listed on its own.
type Text struct {
	w     io.Writer
	width int
}

// NewText creates a Text renderer. width is the strip chart width.
func NewText(w io.Writer, width int) *Text {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Text{w: w, width: width}
}

// Summary describes one channel over the whole history.
type Summary struct {
	Channel     logic.Channel
	Samples     int
	High        time.Duration
	Transitions int
	Chart       string
}

// Duty returns the fraction of span the channel spent HIGH.
func (s Summary) Duty(span time.Duration) float64 {
	if span <= 0 {
		return 0
	}
	return float64(s.High) / float64(span)
}

// Render writes the report.
func (t *Text) Render(h *logic.History) error {
	first, ok := h.First()
	if !ok {
		_, err := fmt.Fprintln(t.w, "no samples recorded")
		return err
	}
	last, _ := h.Last()
	span := last.Time.Sub(first.Time)

	var b strings.Builder
	fmt.Fprintf(&b, "%d samples over %s (%s to %s)\n\n",
		h.Len(), span,
		first.Time.UTC().Format(time.RFC3339Nano),
		last.Time.UTC().Format(time.RFC3339Nano))

	var directional, common []Summary
	for _, c := range logic.Channels {
		s := Summarize(h, c, first.Time, span, t.width)
		if c.Directional() {
			directional = append(directional, s)
		} else {
			common = append(common, s)
		}
	}

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Channel\tSamples\tHigh\tDuty\tTransitions")
	for _, s := range directional {
		writeRow(tw, s, span)
	}
	if len(common) > 0 {
		fmt.Fprintln(tw, "\t\t\t\t")
		for _, s := range common {
			writeRow(tw, s, span)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	b.WriteString("\n")
	for _, s := range directional {
		fmt.Fprintf(&b, "%-6s |%s|\n", s.Channel, s.Chart)
	}
	for _, s := range common {
		fmt.Fprintf(&b, "%-6s |%s|\n", s.Channel, s.Chart)
	}

	_, err := io.WriteString(t.w, b.String())
	return err
}

func writeRow(w io.Writer, s Summary, span time.Duration) {
	fmt.Fprintf(w, "%s\t%d\t%s\t%.1f%%\t%d\n",
		s.Channel, s.Samples, s.High.Round(time.Millisecond), 100*s.Duty(span), s.Transitions)
}

// Chart glyphs.
const (
	glyphHigh  = '#'
	glyphLow   = '_'
	glyphMixed = '|'
)

// Summarize computes the summary of channel c. The chart splits
// [start, start+span] into width columns; a column that saw both levels is
// drawn as a bar, and a column with no samples repeats the previous level.
func Summarize(h *logic.History, c logic.Channel, start time.Time, span time.Duration, width int) Summary {
	s := Summary{Channel: c}

	type column struct {
		high, low bool
		last      bool // level of the column's final sample
	}
	cols := make([]column, width)

	var prevTime time.Time
	var prevLevel bool
	for ts, level := range h.Series(c) {
		if s.Samples > 0 {
			if prevLevel {
				s.High += ts.Sub(prevTime)
			}
			if level != prevLevel {
				s.Transitions++
			}
		}
		s.Samples++
		prevTime, prevLevel = ts, level

		col := &cols[columnOf(ts.Sub(start), span, width)]
		if level {
			col.high = true
		} else {
			col.low = true
		}
		col.last = level
	}

	chart := make([]byte, width)
	carry := false
	for i, col := range cols {
		switch {
		case col.high && col.low:
			chart[i] = glyphMixed
		case col.high:
			chart[i] = glyphHigh
		case col.low:
			chart[i] = glyphLow
		case carry:
			chart[i] = glyphHigh
		default:
			chart[i] = glyphLow
		}
		if col.high || col.low {
			carry = col.last
		}
	}
	s.Chart = string(chart)
	return s
}

func columnOf(offset, span time.Duration, width int) int {
	if span <= 0 || offset <= 0 {
		return 0
	}
	i := int(int64(offset) * int64(width) / int64(span))
	if i >= width {
		i = width - 1
	}
	return i
}
