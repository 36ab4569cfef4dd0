// Package report renders the sample history when the receiver exits.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/sweeney/rf-receiver/internal/logic"
)

// Renderer turns a completed history into a report.
type Renderer interface {
	Render(h *logic.History) error
}

// Formats.
const (
	FormatText = "text"
	FormatCSV  = "csv"
	FormatNone = "none"
)

// DefaultWidth is the strip chart width in columns.
const DefaultWidth = 72

// New returns the renderer for format writing to w.
func New(format string, w io.Writer, width int) (Renderer, error) {
	switch format {
	case FormatText, "":
		return NewText(w, width), nil
	case FormatCSV:
		return NewCSV(w), nil
	case FormatNone:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("report: unknown format %q", format)
	}
}

// Nop discards the history.
type Nop struct{}

// Render does nothing.
func (Nop) Render(*logic.History) error { return nil }

// Open returns the destination for a report: stdout for "" or "-",
// otherwise a newly created file.
func Open(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
