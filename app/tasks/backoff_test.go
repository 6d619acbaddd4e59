package tasks

import (
	"testing"
	"time"
)

func TestNextRetryDelay(t *testing.T) {
	base := 600 * time.Second
	max := 86400 * time.Second

	cases := []struct {
		failures int
		want     time.Duration
	}{
		{1, 600 * time.Second},
		{2, 1200 * time.Second},
		{3, 2400 * time.Second},
		{4, 4800 * time.Second},
		{8, 76800 * time.Second},
		{9, 86400 * time.Second},
		{20, 86400 * time.Second},
		{0, 600 * time.Second},
	}

	for _, tc := range cases {
		if got := NextRetryDelay(base, max, tc.failures); got != tc.want {
			t.Errorf("NextRetryDelay(failures=%d) = %v, want %v", tc.failures, got, tc.want)
		}
	}
}

func TestNextRetryDelayNonDecreasing(t *testing.T) {
	base := 600 * time.Second
	max := 86400 * time.Second

	prev := time.Duration(0)
	for failures := 1; failures <= 30; failures++ {
		delay := NextRetryDelay(base, max, failures)
		if delay < prev {
			t.Fatalf("Delay decreased at failures=%d: %v < %v", failures, delay, prev)
		}
		if delay > max {
			t.Fatalf("Delay exceeded cap at failures=%d: %v", failures, delay)
		}
		prev = delay
	}
}

func TestNextRetryDelayZeroConfig(t *testing.T) {
	if got := NextRetryDelay(0, time.Hour, 3); got != 0 {
		t.Errorf("Expected zero delay for zero base, got: %v", got)
	}
	if got := NextRetryDelay(time.Minute, 0, 3); got != 0 {
		t.Errorf("Expected zero delay for zero max, got: %v", got)
	}
}

func TestWithJitterBounds(t *testing.T) {
	base := 600 * time.Second

	for i := 0; i < 100; i++ {
		jittered := WithJitter(base)
		if jittered < base {
			t.Fatalf("Jitter shortened the delay: %v < %v", jittered, base)
		}
		if jittered > base+base/4 {
			t.Fatalf("Jitter exceeded +25%%: %v > %v", jittered, base+base/4)
		}
	}
}

func TestWithJitterZero(t *testing.T) {
	if got := WithJitter(0); got != 0 {
		t.Errorf("Expected zero delay to pass through, got: %v", got)
	}
}
