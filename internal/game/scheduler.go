package game

import "time"

// TimerHandle is an owned, cancellable scheduled callback.
type TimerHandle interface {
	// Stop cancels the callback. It is safe to call more than once and after
	// the callback ran.
	Stop()
}

// Scheduler runs fn after d on the simulation goroutine. Implementations
// must never invoke fn concurrently with other world access.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) TimerHandle
}

// loopTimer is a timer whose callback is delivered through the engine loop.
// stopped is only touched from the loop goroutine.
type loopTimer struct {
	t       *time.Timer
	fn      func()
	stopped bool
}

func (lt *loopTimer) Stop() {
	lt.stopped = true
	lt.t.Stop()
}

// fire runs the callback unless the handle was stopped after the underlying
// timer had already posted it.
func (lt *loopTimer) fire() {
	if lt.stopped {
		return
	}
	lt.stopped = true
	lt.fn()
}

// loopScheduler posts fired timers back into the engine so callbacks run on
// the single simulation goroutine.
type loopScheduler struct {
	fired chan<- *loopTimer
	quit  <-chan struct{}
}

func (s loopScheduler) AfterFunc(d time.Duration, fn func()) TimerHandle {
	lt := &loopTimer{fn: fn}
	lt.t = time.AfterFunc(d, func() {
		select {
		case s.fired <- lt:
		case <-s.quit:
		}
	})
	return lt
}
