package retry

import "fmt"

// State of one logical request inside Do.
type State int

const (
	Attempting State = iota
	RetryWait
	Success
	Fatal
)

func (s State) String() string {
	switch s {
	case Attempting:
		return "Attempting"
	case RetryWait:
		return "RetryWait"
	case Success:
		return "Success"
	case Fatal:
		return "Fatal"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var stateTransitions = map[State][]State{
	Attempting: {Success, Fatal, RetryWait},
	RetryWait:  {Attempting, Fatal},
}

func (s State) CanTransitionTo(t State) bool {
	for _, allowed := range stateTransitions[s] {
		if allowed == t {
			return true
		}
	}
	return false
}
