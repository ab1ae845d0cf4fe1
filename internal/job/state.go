package job

import "fmt"

// State is a step of the per-job state machine.
type State int

const (
	StateReceived State = iota
	StateRouted
	StateFetching
	StateDetecting
	StateRemapping
	StateResampling
	StateDesaturating
	StateCleaningUp
	StateEncoding
	StateCompleted
	StateFailed
)

var stateNames = [...]string{
	StateReceived:     "received",
	StateRouted:       "routed",
	StateFetching:     "fetching",
	StateDetecting:    "detecting",
	StateRemapping:    "remapping",
	StateResampling:   "resampling",
	StateDesaturating: "desaturating",
	StateCleaningUp:   "cleaning_up",
	StateEncoding:     "encoding",
	StateCompleted:    "completed",
	StateFailed:       "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}
