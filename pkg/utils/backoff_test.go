package utils

import (
	"testing"
	"time"
)

func TestConstantBackoff(t *testing.T) {
	backoff := &ConstantBackoff{Delay: 100 * time.Millisecond}
	for i := 0; i < 5; i++ {
		if got := backoff.NextDelay(i); got != 100*time.Millisecond {
			t.Errorf("attempt %d: expected 100ms, got %v", i, got)
		}
	}
}

func TestLinearBackoff(t *testing.T) {
	backoff := &LinearBackoff{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{9, time.Second},
		{20, time.Second},
	}
	for _, tt := range tests {
		if got := backoff.NextDelay(tt.attempt); got != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, got)
		}
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
	}
	for _, tt := range tests {
		if got := backoff.NextDelay(tt.attempt); got != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, got)
		}
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	backoff := &ExponentialBackoff{BaseDelay: 100 * time.Millisecond, MaxDelay: 10 * time.Second, Multiplier: 2, Jitter: true}
	for i := 0; i < 50; i++ {
		got := backoff.NextDelay(1)
		if got < 100*time.Millisecond || got > 300*time.Millisecond {
			t.Fatalf("jittered delay out of bounds: %v", got)
		}
	}
}

func TestBackoffFromConfig(t *testing.T) {
	if _, ok := BackoffFromConfig("constant", 10, 0).(*ConstantBackoff); !ok {
		t.Errorf("expected constant backoff")
	}
	if _, ok := BackoffFromConfig("Linear", 10, 100).(*LinearBackoff); !ok {
		t.Errorf("expected linear backoff")
	}
	eb, ok := BackoffFromConfig("whatever", 10, 0).(*ExponentialBackoff)
	if !ok {
		t.Fatalf("expected exponential backoff")
	}
	if eb.MaxDelay != 30*time.Second {
		t.Errorf("expected default max delay 30s, got %v", eb.MaxDelay)
	}
}
