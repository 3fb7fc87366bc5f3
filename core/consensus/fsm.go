package consensus

import (
	"github.com/pkg/errors"
)

// State is a collector state.
type State string

const (
	Pending    State = "pending"
	Collecting State = "collecting"
	Resolved   State = "resolved"
	Rejected   State = "rejected"
	TimedOut   State = "timed_out"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Resolved || s == Rejected || s == TimedOut
}

type stateMachine struct {
	currentState State
	transitions  map[State]map[State]struct{}
}

// terminal states have no entry, so nothing leaves them.
var collectorTransitions = map[State]map[State]struct{}{
	Pending: {
		Collecting: struct{}{},
		TimedOut:   struct{}{},
	},
	Collecting: {
		Collecting: struct{}{},
		Resolved:   struct{}{},
		Rejected:   struct{}{},
		TimedOut:   struct{}{},
	},
}

func newStateMachine() *stateMachine {
	return &stateMachine{
		currentState: Pending,
		transitions:  collectorTransitions,
	}
}

func (sm *stateMachine) Transition(nextState State) error {
	if allowedStates, ok := sm.transitions[sm.currentState]; ok {
		if _, ok = allowedStates[nextState]; ok {
			sm.currentState = nextState
			return nil
		}
	}

	return errors.Errorf("invalid state transition %s -> %s", sm.currentState, nextState)
}
