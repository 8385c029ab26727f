package fsq

import "time"

// Timestamp is the totally-ordered integer the rest of the engine sorts
// and compares on. The engine is unit-agnostic (see NamingScheme's fixed
// width); the default Clock returns milliseconds since epoch.
type Timestamp int64

// TimeSpan is the difference type used by FinalizePolicy/RetryPolicy age
// comparisons.
type TimeSpan int64

// Sub returns the span between two timestamps, clamped so it is never
// negative when b is in the future of a (callers treat that as "no age").
func (a Timestamp) Sub(b Timestamp) TimeSpan {
	if a < b {
		return 0
	}
	return TimeSpan(a - b)
}

// TimeSource is the mockable wall-clock collaborator the engine reads
// timestamps from, so tests can drive it without sleeping.
type TimeSource interface {
	Now() Timestamp
}

// SystemClock is the default TimeSource, returning milliseconds since the
// Unix epoch.
type SystemClock struct{}

func (SystemClock) Now() Timestamp { return Timestamp(time.Now().UnixMilli()) }

// ManualClock is a mockable TimeSource for tests: it never advances on its
// own, so a test can drive the engine through a specific sequence of
// timestamps deterministically.
type ManualClock struct {
	now Timestamp
}

// NewManualClock creates a ManualClock starting at the given timestamp.
func NewManualClock(start Timestamp) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() Timestamp { return c.now }

// Set moves the clock to an arbitrary timestamp, including backwards, to
// exercise RetryPolicy's clock-skew handling.
func (c *ManualClock) Set(ts Timestamp) { c.now = ts }

// Advance moves the clock forward by span.
func (c *ManualClock) Advance(span TimeSpan) { c.now += Timestamp(span) }
