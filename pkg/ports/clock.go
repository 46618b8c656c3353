package ports

import "time"

// Clock is a monotonic time source.
//
// Values returned by Now must only be compared with each other through
// Sub/Since-style arithmetic so that wall-clock adjustments never leak into
// pacing. time.Now satisfies this because it carries a monotonic reading.
type Clock interface {
	Now() time.Time
}

// Timer is a cancelable one-shot callback.
type Timer interface {
	// Stop cancels the timer. It returns false if the timer already fired
	// or was stopped.
	Stop() bool
}

// Scheduler arms one-shot deadline callbacks.
type Scheduler interface {
	// AfterFunc calls fn once after d has elapsed.
	AfterFunc(d time.Duration, fn func()) Timer
}

// SystemClock implements Clock with time.Now.
type SystemClock struct{}

// Now returns the current time including its monotonic reading.
func (SystemClock) Now() time.Time { return time.Now() }

// SystemScheduler implements Scheduler with time.AfterFunc.
type SystemScheduler struct{}

// AfterFunc arms a runtime timer.
func (SystemScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
