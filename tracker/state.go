package tracker

import "time"

type State int32

const (
	StateInitializing State = iota
	StateWaiting
	StateMeasuring
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateWaiting:
		return "waiting"
	case StateMeasuring:
		return "measuring"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Clock is the time source of the control loop.
type Clock interface {
	Now() time.Time
	// After fires once d has elapsed. Non positive durations fire immediately.
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
