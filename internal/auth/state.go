package auth

import "fmt"

// State is the signed-in status of a session.
type State string

const (
	StateSignedOut State = "signed_out"
	StateSignedIn  State = "signed_in"
)

type Event string

const (
	EventSignIn  Event = "sign_in"
	EventSignOut Event = "sign_out"
)

// Transition is the whole state machine: sign-in moves a signed-out session
// in, sign-out moves a signed-in one out. Every other pair is rejected.
func Transition(from State, ev Event) (State, error) {
	switch {
	case from == StateSignedOut && ev == EventSignIn:
		return StateSignedIn, nil
	case from == StateSignedIn && ev == EventSignOut:
		return StateSignedOut, nil
	default:
		return from, fmt.Errorf("invalid auth transition %s from %s", ev, from)
	}
}

// Machine tracks one session's state. Loading is set from construction until
// Resolved is called, bracketing the initial session lookup.
type Machine struct {
	state   State
	loading bool
}

func NewMachine() *Machine {
	return &Machine{state: StateSignedOut, loading: true}
}

func (m *Machine) Apply(ev Event) error {
	next, err := Transition(m.state, ev)
	if err != nil {
		return err
	}
	m.state = next
	return nil
}

func (m *Machine) Resolved() { m.loading = false }

func (m *Machine) State() State { return m.state }

func (m *Machine) Loading() bool { return m.loading }
