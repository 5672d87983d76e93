package reconcile

import "time"

// Loop schedules reconciler work. Post runs fn on the event loop after the
// current task; Go runs fn on a worker goroutine.
type Loop interface {
	Post(fn func())
	Go(fn func())
}

// Timer is the subset of *time.Timer the reconciler needs.
type Timer interface {
	Stop() bool
}

// Clock creates revert timers and reads the current time.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// SystemClock uses the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Inline runs posted and background work immediately on the caller's
// goroutine. It suits tests and one-shot commands that have no event loop.
type Inline struct{}

func (Inline) Post(fn func()) { fn() }

func (Inline) Go(fn func()) { fn() }
