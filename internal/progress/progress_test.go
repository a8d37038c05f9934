package progress

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
)

func quiet(buf *bytes.Buffer) []Option {
	return []Option{WithWriter(buf), WithVisible(false)}
}

func TestNewTracker(t *testing.T) {
	tests := []struct {
		name  string
		label string
		total int
	}{
		{name: "standard tracker", label: "Rewriting projects", total: 100},
		{name: "zero total", label: "Empty task", total: 0},
		{name: "single item", label: "One project", total: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tracker := NewTracker(tt.label, tt.total, quiet(&buf)...)

			if tracker == nil {
				t.Fatal("NewTracker() returned nil")
			}
			if tracker.bar == nil {
				t.Error("tracker.bar should not be nil")
			}
			if tracker.label != tt.label {
				t.Errorf("tracker.label = %q, want %q", tracker.label, tt.label)
			}
		})
	}
}

func TestNewSpinner(t *testing.T) {
	var buf bytes.Buffer
	spinner := NewSpinner("Scanning", quiet(&buf)...)
	if spinner == nil || spinner.bar == nil {
		t.Fatal("NewSpinner() returned an incomplete tracker")
	}
	spinner.Tick()
	spinner.FinishSuccess()
}

func TestTrackerTickConcurrent(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker("Concurrent", 200, quiet(&buf)...)

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Tick()
		}()
	}
	wg.Wait()

	if got := tracker.bar.State().CurrentNum; got != 200 {
		t.Errorf("ticks = %d, want 200", got)
	}
	tracker.FinishSuccess()
}

func TestTrackerFinishError(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker("Rewrite", 3, quiet(&buf)...)
	tracker.Tick()
	tracker.FinishError(errors.New("disk full"))

	if !strings.Contains(buf.String(), "Rewrite error: disk full") {
		t.Errorf("output = %q, want error message", buf.String())
	}
}

func TestTrackerFinishSuccessMultipleCalls(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker("Twice", 1, quiet(&buf)...)
	tracker.Tick()
	tracker.FinishSuccess()
	tracker.FinishSuccess()
}
