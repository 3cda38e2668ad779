package util

import "time"

// Timer measures how long an AI call or batch item took.
type Timer struct {
	start time.Time
	now   func() time.Time
}

func StartTimer() Timer {
	return StartTimerWithClock(time.Now)
}

// StartTimerWithClock starts a timer on a caller-supplied clock.
func StartTimerWithClock(now func() time.Time) Timer {
	if now == nil {
		now = time.Now
	}
	return Timer{start: now(), now: now}
}

// Elapsed is zero for a Timer that was never started.
func (t Timer) Elapsed() time.Duration {
	if t.start.IsZero() || t.now == nil {
		return 0
	}
	if d := t.now().Sub(t.start); d > 0 {
		return d
	}
	return 0
}

func (t Timer) ElapsedMs() int64 {
	return t.Elapsed().Milliseconds()
}

// Started reports when the timer began.
func (t Timer) Started() time.Time {
	return t.start
}
