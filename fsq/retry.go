package fsq

import (
	"math"
	"math/rand/v2"
	"sync"
)

// RetryPolicy is the state machine keyed on processor outcomes.
// Implementations must be safe for concurrent use: OnFailureNeedRetry/
// OnUnavailable/OnSuccess/ReadyToProcess/NextWake are called from the
// processor thread while ForceResume (and NewFileArrived, where
// implemented) may be called from PushMessage, ForceProcessing or
// ForceResumeProcessing on a caller thread.
type RetryPolicy interface {
	OnSuccess(now Timestamp)
	OnFailureNeedRetry(now Timestamp)
	OnUnavailable(now Timestamp)
	ReadyToProcess(now Timestamp) bool
	ForceResume()
	// NextWake reports when the processor loop should next wake to
	// re-check readiness, if it should wake on a timer at all.
	NextWake(now Timestamp) (Timestamp, bool)
}

// ExponentialBackoff is the default RetryPolicy: a truncated exponential
// draw around Mean, clamped to [Min, Max].
//
// SuspendUntilForceResume controls what OnUnavailable does: when true (the
// default), the policy suspends until ForceResume is called; when false, a
// newly observed finalized file also clears the suspension (the engine
// treats "a new file arrived" as an implicit resume in that mode).
type ExponentialBackoff struct {
	Mean                     TimeSpan
	Min                      TimeSpan
	Max                      TimeSpan
	SuspendUntilForceResume  bool

	mu              sync.Mutex
	scheduledTime   Timestamp
	lastObservedNow Timestamp
	suspended       bool
	rng             *rand.Rand
}

// NewExponentialBackoff builds a ready-to-use ExponentialBackoff.
func NewExponentialBackoff(mean, min, max TimeSpan) *ExponentialBackoff {
	return &ExponentialBackoff{
		Mean:                    mean,
		Min:                     min,
		Max:                     max,
		SuspendUntilForceResume: true,
		rng:                     rand.New(rand.NewPCG(1, 2)),
	}
}

func (p *ExponentialBackoff) resetClockSkew(now Timestamp) {
	// Clock-skew handling: a backward jump resets both the observed clock
	// and the schedule to now, so the policy never blocks forever waiting
	// for a scheduled time that is now unreachable in the past-relative
	// frame it was computed in.
	if now < p.lastObservedNow {
		p.lastObservedNow = now
		p.scheduledTime = now
	} else {
		p.lastObservedNow = now
	}
}

func (p *ExponentialBackoff) OnSuccess(now Timestamp) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetClockSkew(now)
	p.scheduledTime = now
	p.suspended = false
}

func (p *ExponentialBackoff) OnFailureNeedRetry(now Timestamp) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetClockSkew(now)

	base := now
	if p.scheduledTime > base {
		base = p.scheduledTime
	}
	p.scheduledTime = base + Timestamp(p.draw())
	p.suspended = false
}

func (p *ExponentialBackoff) OnUnavailable(now Timestamp) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetClockSkew(now)
	p.suspended = true
}

func (p *ExponentialBackoff) ReadyToProcess(now Timestamp) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetClockSkew(now)
	if p.suspended {
		return false
	}
	return now >= p.scheduledTime
}

func (p *ExponentialBackoff) ForceResume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.suspended = false
}

// NewFileArrived is consulted by the engine when SuspendUntilForceResume is
// false: a fresh finalized file is treated as an implicit resume signal.
func (p *ExponentialBackoff) NewFileArrived() {
	if p.SuspendUntilForceResume {
		return
	}
	p.ForceResume()
}

func (p *ExponentialBackoff) NextWake(now Timestamp) (Timestamp, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.suspended {
		return 0, false
	}
	if p.scheduledTime <= now {
		return 0, false
	}
	return p.scheduledTime, true
}

// draw samples a truncated exponential distribution with the configured
// mean, clamped to [Min, Max]. When Min == Max the draw is deterministic,
// and when Mean <= 0 it degenerates to Min.
func (p *ExponentialBackoff) draw() TimeSpan {
	if p.Min >= p.Max {
		return p.Min
	}
	if p.Mean <= 0 {
		return p.Min
	}

	u := p.rng.Float64()
	if u >= 1 {
		u = 0.999999
	}
	sample := -float64(p.Mean) * math.Log(1-u)

	if sample < float64(p.Min) {
		sample = float64(p.Min)
	}
	if sample > float64(p.Max) {
		sample = float64(p.Max)
	}
	return TimeSpan(sample)
}
