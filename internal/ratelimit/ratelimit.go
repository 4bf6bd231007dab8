// Package ratelimit implements the pool-wide bandwidth envelope: a token
// bucket enforcing a maximum transfer rate shared across every slice
// worker, and an EMA-smoothed watchdog that detects a sustained stall
// below a configured speed floor.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Bucket wraps a pool-wide token bucket. A non-positive bps means
// unlimited: no rate.Limiter is constructed and every wait is a no-op.
type Bucket struct {
	limiter *rate.Limiter
}

const maxBurst = 2 * 1024

// NewBucket builds a Bucket capped at bps bytes/sec, or an unlimited one
// when bps <= 0. The initial burst is capped at maxBurst so a caller
// can't front-load an entire window's allowance into one write at the
// start of a transfer.
func NewBucket(bps int64) *Bucket {
	if bps <= 0 {
		return &Bucket{}
	}
	burst := int(bps)
	if burst > maxBurst {
		burst = maxBurst
	}
	if burst < 1 {
		burst = 1
	}
	return &Bucket{limiter: rate.NewLimiter(rate.Limit(bps), burst)}
}

// WaitN blocks until n bytes' worth of tokens are available or ctx is
// canceled.
func (b *Bucket) WaitN(ctx context.Context, n int) error {
	if b == nil || b.limiter == nil {
		return nil
	}
	// WaitN refuses requests larger than the burst size, so a large
	// write is split into burst-sized chunks.
	burst := b.limiter.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := b.limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// SpeedWatchdog tracks a pool-wide EMA of bytes/sec and reports when it
// has remained below a floor for a configured duration, the trigger for
// aborting a transfer that has stalled below its configured minimum
// speed.
type SpeedWatchdog struct {
	mu        sync.Mutex
	floor     int64
	duration  time.Duration
	ema       float64
	lastTick  time.Time
	belowSnc  time.Time
	hasSample bool
}

// NewSpeedWatchdog returns a disabled watchdog when floor <= 0.
func NewSpeedWatchdog(floor int64, duration time.Duration) *SpeedWatchdog {
	if floor <= 0 {
		return nil
	}
	return &SpeedWatchdog{floor: floor, duration: duration}
}

// Observe folds a new instantaneous bytes/sec sample into the EMA and
// reports whether the floor has now been breached for the configured
// duration.
func (w *SpeedWatchdog) Observe(now time.Time, instantBPS float64) (tripped bool) {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	const alpha = 0.3
	if !w.hasSample {
		w.ema = instantBPS
		w.hasSample = true
	} else {
		w.ema = alpha*instantBPS + (1-alpha)*w.ema
	}
	w.lastTick = now

	if w.ema < float64(w.floor) {
		if w.belowSnc.IsZero() {
			w.belowSnc = now
		}
		return now.Sub(w.belowSnc) >= w.duration
	}
	w.belowSnc = time.Time{}
	return false
}
