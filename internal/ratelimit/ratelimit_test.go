package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNewBucketUnlimitedWhenNonPositive(t *testing.T) {
	b := NewBucket(0)
	if err := b.WaitN(context.Background(), 10<<20); err != nil {
		t.Fatalf("unlimited bucket should never block/error: %v", err)
	}
}

func TestBucketEnforcesCeilingOverWindow(t *testing.T) {
	const bps = 1024
	b := NewBucket(bps)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	const window = 10 * time.Second
	const tolerance = 2 * 1024

	start := time.Now()
	var sent int64
	for time.Since(start) < window {
		if err := b.WaitN(ctx, 512); err != nil {
			t.Fatalf("WaitN: %v", err)
		}
		sent += 512
	}
	elapsed := time.Since(start)

	limit := int64(elapsed.Seconds()*bps) + tolerance
	if sent > limit {
		t.Errorf("sent %d bytes over %v at %d B/s, want <= %d (ceiling + %d byte tolerance)", sent, elapsed, bps, limit, tolerance)
	}
}

func TestSpeedWatchdogTripsAfterSustainedFloorBreach(t *testing.T) {
	w := NewSpeedWatchdog(1000, 2*time.Second)
	now := time.Now()

	if w.Observe(now, 2000) {
		t.Fatal("should not trip while above floor")
	}

	// Feed a long run of near-zero samples so the EMA has time to decay
	// below the floor, then keep feeding until the floor has been
	// breached for at least the configured duration.
	tripped := false
	for i := 1; i <= 10; i++ {
		now = now.Add(1 * time.Second)
		if w.Observe(now, 10) {
			tripped = true
			break
		}
	}
	if !tripped {
		t.Fatal("expected the watchdog to trip after a sustained near-zero run")
	}
}

func TestSpeedWatchdogResetsWhenSpeedRecovers(t *testing.T) {
	w := NewSpeedWatchdog(1000, 2*time.Second)
	now := time.Now()

	w.Observe(now, 2000)
	now = now.Add(1 * time.Second)
	w.Observe(now, 10) // EMA dips, but not yet below floor for long enough
	now = now.Add(1 * time.Second)
	w.Observe(now, 5000) // recovers before the duration elapses

	now = now.Add(2 * time.Second)
	if w.Observe(now, 5000) {
		t.Fatal("a recovered EMA should not trip just because the clock advanced")
	}
}

func TestSpeedWatchdogDisabledWhenFloorNonPositive(t *testing.T) {
	if NewSpeedWatchdog(0, time.Second) != nil {
		t.Fatal("watchdog with floor<=0 should be nil (disabled)")
	}
	var w *SpeedWatchdog
	if w.Observe(time.Now(), 0) {
		t.Fatal("nil watchdog must never trip")
	}
}
