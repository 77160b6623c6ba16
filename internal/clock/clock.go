package clock

import "time"

// Timer is a pending callback that can be stopped before it fires.
type Timer interface {
	Stop() bool
}

// Scheduler arms one-shot callbacks. Production code uses Real; tests drive a Fake.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func Real() Scheduler {
	return realScheduler{}
}

func (realScheduler) Now() time.Time {
	return time.Now()
}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// StopTimer stops t if non-nil and returns nil so callers can clear their field in one line.
func StopTimer(t Timer) Timer {
	if t != nil {
		t.Stop()
	}
	return nil
}
