package receiver

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sweeney/rf-receiver/internal/gpio"
	"github.com/sweeney/rf-receiver/internal/logic"
	"github.com/sweeney/rf-receiver/internal/metrics"
)

// fakeClock returns start, start+step, start+2*step, ... on successive calls.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	tracker *logic.Tracker
	history *logic.History
	source  *gpio.FakeSource
	metrics *metrics.Metrics
	rx      *Receiver
}

func newFixture(t *testing.T, mode SampleMode, logger *slog.Logger) *fixture {
	t.Helper()
	tr, err := logic.NewTrackerWithLines(map[logic.Channel]int{
		logic.North:  23,
		logic.South:  24,
		logic.East:   25,
		logic.West:   12,
		logic.Common: 16,
	})
	if err != nil {
		t.Fatalf("NewTrackerWithLines: %v", err)
	}
	if logger == nil {
		logger = discardLogger()
	}

	f := &fixture{
		tracker: tr,
		history: logic.NewHistory(),
		source:  gpio.NewFakeSource(nil),
		metrics: metrics.New(),
	}
	f.rx = New(tr, Options{
		History: f.history,
		Mode:    mode,
		Now:     fakeClock(time.Date(2026, 4, 21, 12, 0, 0, 0, time.UTC), 10*time.Millisecond),
		Logger:  logger,
		Metrics: f.metrics,
	})
	if err := f.source.Start(f.rx.HandleEdge); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return f
}

func drain(rx *Receiver) []Transition {
	var out []Transition
	for {
		select {
		case tr := <-rx.Transitions():
			out = append(out, tr)
		default:
			return out
		}
	}
}

func TestEndToEndSnapshot(t *testing.T) {
	f := newFixture(t, SampleTick, nil)

	f.source.Emit(23, true)
	f.source.Emit(24, false)

	want := logic.State{logic.North: true}
	if got := f.tracker.Snapshot(); got != want {
		t.Errorf("snapshot: got %v, want %v", got, want)
	}
}

func TestUnknownLineDropped(t *testing.T) {
	f := newFixture(t, SampleTick, nil)
	f.source.Emit(23, true)
	before := f.tracker.Snapshot()

	f.source.Emit(99, true)

	if got := f.tracker.Snapshot(); got != before {
		t.Errorf("snapshot changed: got %v, want %v", got, before)
	}
	if got := testutil.ToFloat64(f.metrics.UnknownLines); got != 1 {
		t.Errorf("unknown line counter: got %v, want 1", got)
	}
	if n := len(drain(f.rx)); n != 1 {
		t.Errorf("expected only the North transition, got %d", n)
	}
}

func TestTransitionsForwarded(t *testing.T) {
	f := newFixture(t, SampleTick, nil)

	f.source.Emit(25, true)
	f.source.Emit(16, true)
	f.source.Emit(25, false)

	got := drain(f.rx)
	if len(got) != 3 {
		t.Fatalf("expected 3 transitions, got %d", len(got))
	}

	if got[0].Channel != logic.East || !got[0].Level || got[0].Line != 25 {
		t.Errorf("transition 0: unexpected %+v", got[0])
	}
	if got[1].Channel != logic.Common || !got[1].Level {
		t.Errorf("transition 1: unexpected %+v", got[1])
	}
	if !got[1].State.Level(logic.East) || !got[1].State.Level(logic.Common) {
		t.Errorf("transition 1: state should carry East and Common HIGH, got %v", got[1].State)
	}
	if got[2].Channel != logic.East || got[2].Level {
		t.Errorf("transition 2: unexpected %+v", got[2])
	}
	for i := 1; i < len(got); i++ {
		if got[i].Time.Before(got[i-1].Time) {
			t.Errorf("transition %d went backwards", i)
		}
	}
}

func TestDuplicateNotForwarded(t *testing.T) {
	f := newFixture(t, SampleEdge, nil)

	f.source.Emit(12, true)
	f.source.Emit(12, true)
	f.source.Emit(12, true)

	if n := len(drain(f.rx)); n != 1 {
		t.Errorf("expected 1 transition, got %d", n)
	}
	if f.history.Len() != 1 {
		t.Errorf("expected 1 history sample, got %d", f.history.Len())
	}
	if got := testutil.ToFloat64(f.metrics.Duplicates.WithLabelValues("west")); got != 2 {
		t.Errorf("west duplicates: got %v, want 2", got)
	}
	if !f.tracker.Snapshot().Level(logic.West) {
		t.Error("West should be HIGH")
	}
}

func TestEdgeModeAppendsHistory(t *testing.T) {
	f := newFixture(t, SampleEdge, nil)

	f.source.Emit(23, true)
	f.source.Emit(23, false)
	f.source.Emit(24, true)

	samples := f.history.Samples()
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}
	if !samples[0].State.Level(logic.North) {
		t.Error("sample 0: expected North HIGH")
	}
	if samples[1].State.Level(logic.North) {
		t.Error("sample 1: expected North LOW")
	}
	if !samples[2].State.Level(logic.South) {
		t.Error("sample 2: expected South HIGH")
	}
	if got := testutil.ToFloat64(f.metrics.HistorySamples); got != 3 {
		t.Errorf("history gauge: got %v, want 3", got)
	}
}

func TestTickModeDoesNotAppendHistory(t *testing.T) {
	f := newFixture(t, SampleTick, nil)
	f.source.Emit(23, true)

	if f.history.Len() != 0 {
		t.Errorf("tick mode should leave history to the sampler, got %d samples", f.history.Len())
	}
}

func TestStopIgnoresEdges(t *testing.T) {
	f := newFixture(t, SampleEdge, nil)
	f.source.Emit(23, true)

	f.rx.Stop()
	if !f.rx.Stopped() {
		t.Fatal("expected Stopped() after Stop")
	}

	f.source.Emit(23, false)
	f.source.Emit(24, true)

	if got := f.tracker.Snapshot(); got != (logic.State{logic.North: true}) {
		t.Errorf("edges after Stop changed state: %v", got)
	}
	if f.history.Len() != 1 {
		t.Errorf("edges after Stop grew history: %d", f.history.Len())
	}
}

func TestQueueFullDrops(t *testing.T) {
	tr, _ := logic.NewTrackerWithLines(map[logic.Channel]int{logic.North: 23})
	m := metrics.New()
	rx := New(tr, Options{QueueSize: 2, Logger: discardLogger(), Metrics: m})

	for i := 0; i < 5; i++ {
		rx.HandleEdge(gpio.Edge{Line: 23, Level: i%2 == 0})
	}

	if n := len(drain(rx)); n != 2 {
		t.Errorf("expected 2 queued transitions, got %d", n)
	}
	if got := testutil.ToFloat64(m.Dropped); got != 3 {
		t.Errorf("dropped: got %v, want 3", got)
	}
	// Tracker still saw every edge
	if tr.Counts().Transitions(logic.North) != 5 {
		t.Errorf("tracker transitions: got %d, want 5", tr.Counts().Transitions(logic.North))
	}
}

func TestTransitionLogLine(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	f := newFixture(t, SampleTick, logger)

	f.source.Emit(23, true)
	f.source.Emit(23, false)

	out := buf.String()
	if !strings.Contains(out, `msg="North HIGH"`) {
		t.Errorf("missing North HIGH log line in %q", out)
	}
	if !strings.Contains(out, `msg="North LOW"`) {
		t.Errorf("missing North LOW log line in %q", out)
	}
}

func TestNewDefaults(t *testing.T) {
	rx := New(logic.NewTracker(), Options{})
	if rx.Mode() != SampleTick {
		t.Errorf("default mode: got %q, want tick", rx.Mode())
	}
	if cap(rx.out) != DefaultQueueSize {
		t.Errorf("default queue size: got %d, want %d", cap(rx.out), DefaultQueueSize)
	}
}

func TestParseSampleMode(t *testing.T) {
	for _, s := range []string{"tick", "edge"} {
		if _, err := ParseSampleMode(s); err != nil {
			t.Errorf("ParseSampleMode(%q): %v", s, err)
		}
	}
	if _, err := ParseSampleMode("often"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
