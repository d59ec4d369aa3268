package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWecomStepperAppliesBaseDelayInFirstTier(t *testing.T) {
	w := NewWecomStepper()
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := w.Wait(ctx); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 3*1200*time.Millisecond {
		t.Errorf("expected at least 3.6s of cumulative delay, got %v", elapsed)
	}
}

func TestPerIPLimitersIsolatesByIP(t *testing.T) {
	p := NewPerIPLimiters(60)
	if !p.Allow("1.2.3.4") {
		t.Error("expected first request from a fresh IP to be allowed")
	}
	if !p.Allow("5.6.7.8") {
		t.Error("expected first request from a different IP to be allowed regardless of the first IP's state")
	}
}

func TestWecomStepperRespectsContextCancellation(t *testing.T) {
	w := NewWecomStepper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Wait(ctx); err == nil {
		t.Error("expected cancellation to surface as an error")
	}
}
