package settlement

// State is a step of settlement processing.
type State string

const (
	StateReceived  State = "received"
	StateVerifying State = "verifying"
	StateVerified  State = "verified"
	StateRejected  State = "rejected"
	StateReleasing State = "releasing"
	StateReleased  State = "released"
	StateFailed    State = "failed"
)

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	StateReceived:  {StateVerifying, StateRejected},
	StateVerifying: {StateVerified, StateRejected},
	StateVerified:  {StateReleasing},
	StateReleasing: {StateReleased, StateFailed},
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// canTransition reports whether to directly follows from.
func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
