package core

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// TestDefaultLogger_WritesThroughSlog verifies level filtering and fields
// Given: A DefaultLogger over a text handler at info level
// When: Debug and Warn are logged
// Then: Only the warning is written, with its fields
func TestDefaultLogger_WritesThroughSlog(t *testing.T) {
	// Arrange
	var buf bytes.Buffer
	l := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	// Act
	l.Debug("hidden", F("k", 1))
	l.Warn("task failed", F("index", 2), F("error", "boom"))

	// Assert
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug entry written at info level: %q", out)
	}
	for _, want := range []string{"level=WARN", "msg=\"task failed\"", "index=2", "error=boom"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}

// TestNoOpLogger verifies the no-op logger accepts calls
func TestNoOpLogger(t *testing.T) {
	l := NewNoOpLogger()
	l.Debug("a")
	l.Info("b", F("x", 1))
	l.Warn("c")
	l.Error("d")
}

// TestRetryPolicy_NewBackOff verifies the schedule follows the policy exactly
// Given: A policy of 3 retries from 100ms doubling up to 300ms
// When: NextBackOff is called repeatedly
// Then: Delays are 100ms, 200ms, 300ms, then Stop
func TestRetryPolicy_NewBackOff(t *testing.T) {
	// Arrange
	p := RetryPolicy{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     300 * time.Millisecond,
		BackoffRatio: 2.0,
	}
	b := p.NewBackOff(context.Background())

	// Act and Assert
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, backoff.Stop}
	for i, w := range want {
		if got := b.NextBackOff(); got != w {
			t.Fatalf("NextBackOff() #%d = %v, want %v", i, got, w)
		}
	}
}

// TestRetryPolicy_NoRetryStopsImmediately verifies NoRetry never waits
func TestRetryPolicy_NoRetryStopsImmediately(t *testing.T) {
	b := NoRetry().NewBackOff(context.Background())
	if got := b.NextBackOff(); got != backoff.Stop {
		t.Fatalf("NextBackOff() = %v, want Stop", got)
	}
}

// TestDefaultRetryPolicy verifies the documented defaults
func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.MaxRetries != 3 || p.InitialDelay != 100*time.Millisecond || p.MaxDelay != 5*time.Second || p.BackoffRatio != 2.0 {
		t.Fatalf("DefaultRetryPolicy() = %+v", p)
	}
}
