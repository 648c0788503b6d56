package sqlite

import (
	"errors"
	"testing"
	"time"
)

func TestIsSQLiteBusy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "database is locked", err: errors.New("database is locked (5) (SQLITE_BUSY)"), expected: true},
		{name: "SQLITE_BUSY", err: errors.New("SQLITE_BUSY"), expected: true},
		{name: "other error", err: errors.New("some other error"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isSQLiteBusy(tt.err); got != tt.expected {
				t.Errorf("isSQLiteBusy(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestRetryOnBusy(t *testing.T) {
	busy := errors.New("database is locked (5) (SQLITE_BUSY)")

	t.Run("success on first try", func(t *testing.T) {
		calls := 0
		if err := retryOnBusy(func() error { calls++; return nil }); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("success after retry", func(t *testing.T) {
		calls := 0
		err := retryOnBusy(func() error {
			calls++
			if calls < 3 {
				return busy
			}
			return nil
		})
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("non-busy error fails immediately", func(t *testing.T) {
		calls := 0
		testErr := errors.New("constraint failed")
		err := retryOnBusy(func() error { calls++; return testErr })
		if err != testErr {
			t.Errorf("expected error %v, got %v", testErr, err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("max retries exceeded", func(t *testing.T) {
		calls := 0
		start := time.Now()
		err := retryOnBusy(func() error { calls++; return busy })
		if err == nil {
			t.Error("expected error, got nil")
		}
		if calls != busyRetries {
			t.Errorf("expected %d calls, got %d", busyRetries, calls)
		}
		// 10+20+40+80ms of backoff between five attempts.
		if elapsed := time.Since(start); elapsed < 140*time.Millisecond {
			t.Errorf("expected at least 140ms of backoff, got %v", elapsed)
		}
	})
}
