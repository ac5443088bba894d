package limiter

import (
	"context"
	"time"
)

// window is how much busy time accumulates before the limiter sleeps.
const window = 10 * time.Millisecond

// CPULimiter throttles one worker to roughly maxPercent of a CPU by sleeping
// in proportion to the time it spent working. Not safe for concurrent use;
// each worker owns its own.
type CPULimiter struct {
	maxPercent float64
	busy       time.Duration
}

// NewCPULimiter returns nil when maxPercent imposes no limit.
func NewCPULimiter(maxPercent float64) *CPULimiter {
	if maxPercent <= 0 || maxPercent >= 100 {
		return nil
	}
	return &CPULimiter{maxPercent: maxPercent}
}

// Throttle records worked and, once a full window of busy time has built
// up, sleeps long enough to bring usage down to maxPercent. A nil limiter
// never sleeps. The sleep ends early if ctx is cancelled.
func (l *CPULimiter) Throttle(ctx context.Context, worked time.Duration) {
	if l == nil {
		return
	}
	l.busy += worked
	if l.busy < window {
		return
	}

	pause := l.Pause()
	l.busy = 0

	t := time.NewTimer(pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Pause is the sleep owed for the busy time accumulated so far.
func (l *CPULimiter) Pause() time.Duration {
	if l == nil {
		return 0
	}
	idle := 100.0 - l.maxPercent
	return time.Duration(float64(l.busy) * idle / l.maxPercent)
}
