package jitter

import (
	"testing"
	"time"
)

func TestDurationStaysInRange(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		got := Duration(base, DefaultJitter)
		if got < base || got > base+base/2 {
			t.Fatalf("Duration(%v) = %v, fora do intervalo", base, got)
		}
	}
}

func TestExponentialBackoffCapsAtMax(t *testing.T) {
	got := ExponentialBackoff(time.Second, 4*time.Second, 10, 0)
	if got != 4*time.Second {
		t.Fatalf("backoff = %v, want 4s", got)
	}

	got = ExponentialBackoff(time.Second, time.Minute, 2, 0)
	if got != 4*time.Second {
		t.Fatalf("backoff tentativa 2 = %v, want 4s", got)
	}
}
