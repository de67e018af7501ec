package workflow

import "fmt"

// StateMachine tracks the lifecycle state of one expense and validates
// transitions. Terminal states permit no triggers, which is what makes
// rejection (and approval) final.
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(trigger Trigger) error
}

type stateMachine struct {
	currentState State
	transitions  map[State]map[Trigger]State
}

// NewExpenseMachine creates a state machine for the expense approval
// lifecycle, starting from the given state.
func NewExpenseMachine(initialState State) (StateMachine, error) {
	if !initialState.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, initialState)
	}

	return &stateMachine{
		currentState: initialState,
		transitions: map[State]map[Trigger]State{
			StatePending: {
				TriggerSatisfy: StateApproved,
				TriggerReject:  StateRejected,
			},
			// APPROVED and REJECTED are terminal, no outgoing transitions
		},
	}, nil
}

// State returns the current state
func (m *stateMachine) State() State {
	return m.currentState
}

// CanFire returns true if the trigger is permitted in the current state
func (m *stateMachine) CanFire(trigger Trigger) bool {
	outgoing, ok := m.transitions[m.currentState]
	if !ok {
		return false
	}
	_, ok = outgoing[trigger]
	return ok
}

// Fire attempts to execute the trigger, transitioning to the new state if allowed
func (m *stateMachine) Fire(trigger Trigger) error {
	outgoing, ok := m.transitions[m.currentState]
	if !ok {
		return fmt.Errorf("%w: cannot fire trigger %s from terminal state %s", ErrInvalidTransition, trigger, m.currentState)
	}

	next, ok := outgoing[trigger]
	if !ok {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, m.currentState)
	}

	m.currentState = next
	return nil
}
