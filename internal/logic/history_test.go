package logic

import (
	"sync"
	"testing"
	"time"
)

// testTime returns a fixed base time plus ms milliseconds.
func testTime(ms int) time.Time {
	return time.Date(2026, 4, 21, 12, 0, 0, 0, time.UTC).Add(time.Duration(ms) * time.Millisecond)
}

func TestHistoryEmpty(t *testing.T) {
	h := NewHistory()
	if h.Len() != 0 {
		t.Errorf("Len: got %d, want 0", h.Len())
	}
	if _, ok := h.Last(); ok {
		t.Error("Last should report no sample")
	}
	if _, ok := h.First(); ok {
		t.Error("First should report no sample")
	}
	n := 0
	for range h.Series(North) {
		n++
	}
	if n != 0 {
		t.Errorf("expected empty series, got %d items", n)
	}
}

func TestHistoryAppendOrder(t *testing.T) {
	h := NewHistory()
	for i := 0; i < 5; i++ {
		h.Append(testTime(i*50), State{North: i%2 == 1})
	}

	samples := h.Samples()
	if len(samples) != 5 {
		t.Fatalf("expected 5 samples, got %d", len(samples))
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].Time.Before(samples[i-1].Time) {
			t.Errorf("sample %d (%v) before sample %d (%v)", i, samples[i].Time, i-1, samples[i-1].Time)
		}
	}

	last, ok := h.Last()
	if !ok {
		t.Fatal("expected a last sample")
	}
	if !last.Time.Equal(testTime(200)) {
		t.Errorf("Last time: got %v, want %v", last.Time, testTime(200))
	}
	first, ok := h.First()
	if !ok || !first.Time.Equal(testTime(0)) {
		t.Errorf("First time: got %v, want %v", first.Time, testTime(0))
	}
}

func TestHistoryOutOfOrderTimestampClamped(t *testing.T) {
	h := NewHistory()
	h.Append(testTime(100), State{})
	h.Append(testTime(50), State{East: true})

	samples := h.Samples()
	if !samples[1].Time.Equal(testTime(100)) {
		t.Errorf("expected clamped timestamp %v, got %v", testTime(100), samples[1].Time)
	}
	if !samples[1].State.Level(East) {
		t.Error("clamped sample should keep its state")
	}
}

func TestHistoryEqualTimestampsAllowed(t *testing.T) {
	h := NewHistory()
	h.Append(testTime(10), State{})
	h.Append(testTime(10), State{West: true})

	if h.Len() != 2 {
		t.Fatalf("expected 2 samples, got %d", h.Len())
	}
}

func TestHistorySeries(t *testing.T) {
	h := NewHistory()
	levels := []bool{false, true, true, false}
	for i, level := range levels {
		h.Append(testTime(i*50), State{South: level, North: !level})
	}

	i := 0
	for ts, level := range h.Series(South) {
		if !ts.Equal(testTime(i * 50)) {
			t.Errorf("item %d: time got %v, want %v", i, ts, testTime(i*50))
		}
		if level != levels[i] {
			t.Errorf("item %d: level got %v, want %v", i, level, levels[i])
		}
		i++
	}
	if i != len(levels) {
		t.Errorf("series length: got %d, want %d", i, len(levels))
	}
}

func TestHistorySeriesRestartable(t *testing.T) {
	h := NewHistory()
	for i := 0; i < 7; i++ {
		h.Append(testTime(i), State{Common: true})
	}

	seq := h.Series(Common)
	for pass := 0; pass < 3; pass++ {
		n := 0
		for _, level := range seq {
			if !level {
				t.Errorf("pass %d: expected Common HIGH", pass)
			}
			n++
		}
		if n != 7 {
			t.Errorf("pass %d: got %d items, want 7", pass, n)
		}
	}
}

func TestHistorySeriesEarlyBreak(t *testing.T) {
	h := NewHistory()
	for i := 0; i < 10; i++ {
		h.Append(testTime(i), State{})
	}

	n := 0
	for range h.Series(West) {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Errorf("expected to stop after 3 items, got %d", n)
	}
}

func TestHistorySeriesIsPointInTime(t *testing.T) {
	h := NewHistory()
	h.Append(testTime(0), State{})
	h.Append(testTime(1), State{})

	seq := h.Series(North)
	h.Append(testTime(2), State{North: true})

	n := 0
	for range seq {
		n++
	}
	if n != 2 {
		t.Errorf("series taken before append: got %d items, want 2", n)
	}

	n = 0
	for range h.Series(North) {
		n++
	}
	if n != 3 {
		t.Errorf("fresh series: got %d items, want 3", n)
	}
}

func TestHistorySamplesIsCopy(t *testing.T) {
	h := NewHistory()
	h.Append(testTime(0), State{North: true})

	samples := h.Samples()
	samples[0].State[North] = false

	if !h.Samples()[0].State.Level(North) {
		t.Error("modifying returned samples should not affect history")
	}
}

func TestHistoryConcurrentAppendAndRead(t *testing.T) {
	h := NewHistory()
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			h.Append(testTime(i), State{North: i%2 == 0})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			var prev time.Time
			for ts := range h.Series(North) {
				if ts.Before(prev) {
					t.Errorf("series went backwards: %v after %v", ts, prev)
					return
				}
				prev = ts
			}
		}
	}()
	wg.Wait()

	if h.Len() != 1000 {
		t.Errorf("Len: got %d, want 1000", h.Len())
	}
}
