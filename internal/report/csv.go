package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/sweeney/rf-receiver/internal/logic"
)

// CSV writes one row per sample: Unix milliseconds then 1/0 per channel.
type CSV struct {
	w io.Writer
}

// NewCSV creates a CSV renderer.
func NewCSV(w io.Writer) *CSV {
	return &CSV{w: w}
}

// Render writes the header and every sample.
func (c *CSV) Render(h *logic.History) error {
	cw := csv.NewWriter(c.w)

	header := []string{"timestamp_ms"}
	for _, ch := range logic.Channels {
		header = append(header, ch.Key())
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, 1+logic.NumChannels)
	for _, s := range h.Samples() {
		row[0] = strconv.FormatInt(s.Time.UnixMilli(), 10)
		for i, ch := range logic.Channels {
			if s.State.Level(ch) {
				row[i+1] = "1"
			} else {
				row[i+1] = "0"
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
