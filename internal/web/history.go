package web

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/rf-receiver/internal/logic"
)

// HistoryJSON is the JSON representation of the sample history.
type HistoryJSON struct {
	Channels []string     `json:"channels"`
	Samples  []SampleJSON `json:"samples"`
}

// SampleJSON is one sample. Levels are in Channels order.
type SampleJSON struct {
	Timestamp string `json:"timestamp"`
	Levels    []bool `json:"levels"`
}

func formatHistoryJSON(samples []logic.Sample) []byte {
	hj := HistoryJSON{
		Channels: make([]string, 0, logic.NumChannels),
		Samples:  make([]SampleJSON, 0, len(samples)),
	}
	for _, c := range logic.Channels {
		hj.Channels = append(hj.Channels, c.Key())
	}
	for _, s := range samples {
		levels := make([]bool, 0, logic.NumChannels)
		for _, c := range logic.Channels {
			levels = append(levels, s.State.Level(c))
		}
		hj.Samples = append(hj.Samples, SampleJSON{
			Timestamp: s.Time.UTC().Format(time.RFC3339Nano),
			Levels:    levels,
		})
	}
	data, _ := json.Marshal(hj)
	return data
}

// Timing diagram geometry.
const (
	svgMaxSamples = 2000
	svgWidth      = 600
	svgLabelWidth = 60
	svgRowHeight  = 30
	svgPad        = 6
)

// timingSVG draws one square-wave row per channel. Only level changes
// produce vertices, so long flat stretches cost nothing.
func timingSVG(samples []logic.Sample) string {
	height := svgRowHeight * logic.NumChannels
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" class="timing">`,
		svgWidth, height, svgWidth, height)

	plotW := float64(svgWidth - svgLabelWidth - svgPad)
	var t0 time.Time
	var span time.Duration
	if len(samples) > 0 {
		t0 = samples[0].Time
		span = samples[len(samples)-1].Time.Sub(t0)
	}
	x := func(t time.Time) float64 {
		if span <= 0 {
			return svgLabelWidth
		}
		return svgLabelWidth + plotW*float64(t.Sub(t0))/float64(span)
	}

	for i, c := range logic.Channels {
		top := i * svgRowHeight
		yHigh := top + svgPad
		yLow := top + svgRowHeight - svgPad
		y := func(high bool) int {
			if high {
				return yHigh
			}
			return yLow
		}

		fmt.Fprintf(&b, `<text x="4" y="%d" font-size="12">%s</text>`, top+svgRowHeight/2+4, c)
		if len(samples) == 0 {
			continue
		}

		level := samples[0].State.Level(c)
		points := []string{fmt.Sprintf("%d,%d", svgLabelWidth, y(level))}
		for _, s := range samples[1:] {
			next := s.State.Level(c)
			if next == level {
				continue
			}
			px := x(s.Time)
			points = append(points,
				fmt.Sprintf("%.1f,%d", px, y(level)),
				fmt.Sprintf("%.1f,%d", px, y(next)))
			level = next
		}
		points = append(points, fmt.Sprintf("%d,%d", svgWidth-svgPad, y(level)))

		fmt.Fprintf(&b, `<polyline class="%s" fill="none" stroke="currentColor" points="%s"/>`,
			c.Key(), strings.Join(points, " "))
	}
	b.WriteString(`</svg>`)
	return b.String()
}
