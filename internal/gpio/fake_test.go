package gpio

import (
	"errors"
	"testing"
	"time"
)

func TestFakeSourceEmit(t *testing.T) {
	f := NewFakeSource(map[int]bool{23: false, 24: false})
	fixed := time.Date(2026, 4, 21, 12, 0, 0, 0, time.UTC)
	f.Now = func() time.Time { return fixed }

	var got []Edge
	if err := f.Start(func(e Edge) { got = append(got, e) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !f.Emit(23, true) {
		t.Fatal("expected edge to be delivered")
	}
	f.Emit(24, false)

	if len(got) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(got))
	}
	if got[0].Line != 23 || !got[0].Level {
		t.Errorf("edge 0: expected (23, HIGH), got (%d, %v)", got[0].Line, got[0].Level)
	}
	if !got[0].Time.Equal(fixed) {
		t.Errorf("edge 0: unexpected time %v", got[0].Time)
	}
	if got[1].Line != 24 || got[1].Level {
		t.Errorf("edge 1: expected (24, LOW), got (%d, %v)", got[1].Line, got[1].Level)
	}
}

func TestFakeSourceEmitBeforeStart(t *testing.T) {
	f := NewFakeSource(nil)
	if f.Emit(23, true) {
		t.Error("edge should not be delivered before Start")
	}

	// Level is still recorded
	levels, err := f.Levels()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !levels[23] {
		t.Error("expected line 23 HIGH")
	}
}

func TestFakeSourceEmitAfterClose(t *testing.T) {
	f := NewFakeSource(nil)
	calls := 0
	f.Start(func(Edge) { calls++ })

	f.Close()
	if f.Emit(23, true) {
		t.Error("edge should not be delivered after Close")
	}
	if calls != 0 {
		t.Errorf("handler called %d times after Close", calls)
	}
	if !f.IsClosed() {
		t.Error("should be closed after Close()")
	}
}

func TestFakeSourceStartError(t *testing.T) {
	f := NewFakeSource(nil)
	f.StartError = errors.New("simulated error")

	err := f.Start(func(Edge) {})
	if err == nil || err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
	if f.Started {
		t.Error("should not be started after error")
	}
}

func TestFakeSourceNilHandler(t *testing.T) {
	f := NewFakeSource(nil)
	if err := f.Start(nil); err == nil {
		t.Error("expected error for nil handler")
	}
}

func TestFakeSourceLevelsError(t *testing.T) {
	f := NewFakeSource(map[int]bool{23: true})
	f.LevelsError = errors.New("simulated error")

	if _, err := f.Levels(); err == nil {
		t.Error("expected error to be returned")
	}
}

func TestFakeSourceLevelsIsCopy(t *testing.T) {
	initial := map[int]bool{23: true}
	f := NewFakeSource(initial)
	initial[23] = false

	levels, _ := f.Levels()
	if !levels[23] {
		t.Error("source should not alias the initial map")
	}

	levels[23] = false
	again, _ := f.Levels()
	if !again[23] {
		t.Error("Levels should return a copy")
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"valid", Options{Lines: []int{23}, Bias: BiasPullDown}, false},
		{"default bias", Options{Lines: []int{23}}, false},
		{"no lines", Options{}, true},
		{"bad bias", Options{Lines: []int{23}, Bias: "floating"}, true},
		{"negative debounce", Options{Lines: []int{23}, Debounce: -time.Millisecond}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate: got %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
