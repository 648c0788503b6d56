package timeutil

import (
	"testing"
	"time"
)

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	start := c.Now()
	if c.Since(start) < 0 {
		t.Error("Since should never be negative")
	}
}

func TestMockClock_SetAndAdvance(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(base)

	if got := c.Now(); !got.Equal(base) {
		t.Fatalf("Now() = %v, want %v", got, base)
	}

	c.Advance(3 * time.Second)
	if got := c.Since(base); got != 3*time.Second {
		t.Errorf("Since = %v, want 3s", got)
	}

	later := base.Add(time.Hour)
	c.Set(later)
	if got := c.Now(); !got.Equal(later) {
		t.Errorf("Now() after Set = %v, want %v", got, later)
	}
}

func TestMockClock_Step(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(base)
	c.SetStep(5 * time.Millisecond)

	start := c.Now()
	if !start.Equal(base) {
		t.Fatalf("first Now() = %v, want %v", start, base)
	}
	if got := c.Since(start); got != 5*time.Millisecond {
		t.Errorf("Since = %v, want 5ms", got)
	}
	if got := c.Now(); !got.Equal(base.Add(5 * time.Millisecond)) {
		t.Errorf("second Now() = %v", got)
	}
}
