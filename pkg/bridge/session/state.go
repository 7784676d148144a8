package session

import "fmt"

// State is the lifecycle position of one voice session. Transitions are
// driven by the event loop only, so reads outside it must go through
// Session.State().
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateSpeaking   State = "speaking"
	StateClosed     State = "closed"
)

var transitions = map[State][]State{
	StateIdle:       {StateConnecting, StateClosed},
	StateConnecting: {StateListening, StateClosed},
	StateListening:  {StateProcessing, StateClosed},
	StateProcessing: {StateSpeaking, StateListening, StateClosed},
	StateSpeaking:   {StateListening, StateProcessing, StateClosed},
	StateClosed:     {},
}

// CanTransition reports whether from may legally move to to.
func CanTransition(from, to State) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal session transition %s -> %s", from, to)
	}
	return nil
}
