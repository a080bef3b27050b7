package x402

import "time"

// Clock supplies the current time. Verification code takes a Clock instead of calling
// time.Now so that time windows can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock time.Time

// Now implements Clock.
func (c FixedClock) Now() time.Time { return time.Time(c) }

// UnixClock returns a FixedClock at the given unix second.
func UnixClock(sec int64) FixedClock {
	return FixedClock(time.Unix(sec, 0))
}
