package fsm

import (
	"errors"
	"fmt"
	"sync"
)

// ErrEventRejected is the error returned when the state machine cannot
// process an event in the state that it is in.
var (
	ErrEventRejected        = errors.New("event rejected")
	ErrWaitForStateTimedOut = errors.New(
		"timed out while waiting for event",
	)
	ErrInvalidContextType = errors.New("invalid context")
)

const (
	// EmptyState is the zero value of StateType. A state machine that has
	// never been advanced sits here until its first event.
	EmptyState StateType = ""

	// Default is an alias for EmptyState kept for state maps that spell
	// their entry point explicitly.
	Default = EmptyState

	// NoOp represents a no-op event.
	NoOp EventType = "NoOp"

	// OnError can be used when an action returns a generic error.
	OnError EventType = "OnError"

	// ContextValidationFailed can be used when the passed context is not
	// of the expected type.
	ContextValidationFailed EventType = "ContextValidationFailed"
)

// StateType represents an extensible state type in the state machine.
type StateType string

// EventType represents an extensible event type in the state machine.
type EventType string

// EventContext represents the context to be passed to the action
// implementation.
type EventContext interface{}

// Action represents the action to be executed in a given state.
type Action func(eventCtx EventContext) EventType

// Transitions represents a mapping of events and states.
type Transitions map[EventType]StateType

// State binds a state with an action and a set of events it can handle.
type State struct {
	// EntryFunc is a function that is called when the state is entered.
	EntryFunc func()

	// ExitFunc is a function that is called when the state is exited.
	ExitFunc func()

	// Action is the action to be executed in the state.
	Action Action

	// Transitions is a mapping of events and states.
	Transitions Transitions
}

// States represents a mapping of states and their implementations.
type States map[StateType]State

// Notification represents a notification sent to the state machine's
// observers every time an event is processed, whether or not it moved the
// machine to a new state.
type Notification struct {
	// PreviousState is the state the state machine was in before the
	// event was processed.
	PreviousState StateType

	// NextState is the state the state machine is in after the event was
	// processed.
	NextState StateType

	// Event is the event that was processed.
	Event EventType

	// LastActionError carries the error recorded by HandleError, if the
	// event that produced this notification was OnError.
	LastActionError error
}

// Observer is an interface implemented by types that want to observe a
// state machine's transitions.
type Observer interface {
	Notify(Notification)
}

// StateMachine represents the state machine.
type StateMachine struct {
	// States is the map that defines every reachable state and how it
	// responds to events.
	States States

	// ActionEntryFunc, if set, runs before every action the machine
	// executes, regardless of state.
	ActionEntryFunc func()

	// ActionExitFunc, if set, runs after every action the machine
	// executes, regardless of state.
	ActionExitFunc func()

	// mutex ensures that only one event is processed by the state
	// machine at any given time.
	mutex sync.Mutex

	// LastActionError is the error set by the last action that called
	// HandleError.
	LastActionError error

	previous StateType
	current  StateType

	observers     []Observer
	observerMutex sync.Mutex
}

// NewStateMachine creates a new state machine that starts in EmptyState.
func NewStateMachine(states States) *StateMachine {
	return NewStateMachineWithState(states, EmptyState, 0)
}

// NewStateMachineWithState creates a new state machine that starts in the
// given state, as used when a machine is being resumed from persisted
// storage rather than created fresh. observerBuffer pre-sizes the observer
// slice; it is a hint, not a hard cap.
func NewStateMachineWithState(states States, current StateType,
	observerBuffer int) *StateMachine {

	return &StateMachine{
		States:    states,
		current:   current,
		observers: make([]Observer, 0, observerBuffer),
	}
}

// CurrentState returns the state the machine is currently in.
func (s *StateMachine) CurrentState() StateType {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.current
}

// getNextState returns the next state for the event given the machine's
// current state, or an error if the event can't be handled in the given
// state.
func (s *StateMachine) getNextState(event EventType) (State, error) {
	var (
		state State
		ok    bool
	)

	stateMap := s.States

	if state, ok = stateMap[s.current]; !ok {
		return State{}, NewErrConfigError("current state not found")
	}

	if state.Transitions == nil {
		return State{}, NewErrConfigError(
			"current state has no transitions",
		)
	}

	var next StateType
	if next, ok = state.Transitions[event]; !ok {
		return State{}, NewErrConfigError(
			"event not found in current transitions",
		)
	}

	// Identify the state definition for the next state.
	state, ok = stateMap[next]
	if !ok {
		return State{}, NewErrConfigError("next state not found")
	}

	if state.Action == nil {
		return State{}, NewErrConfigError("next state has no action")
	}

	// Transition over to the next state.
	s.previous = s.current
	s.current = next

	return state, nil
}

// SendEvent sends an event to the state machine. It returns an error if the
// event cannot be processed in the current state. Otherwise it only returns
// once the last action in the chain reports a no-op event.
func (s *StateMachine) SendEvent(event EventType, eventCtx EventContext) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.States == nil {
		return NewErrConfigError("state machine config is nil")
	}

	for {
		// Determine the next state for the event given the machine's
		// current state.
		state, err := s.getNextState(event)
		if err != nil {
			return ErrEventRejected
		}

		// Execute the current state's entry function.
		if state.EntryFunc != nil {
			state.EntryFunc()
		}

		// Execute the state machine's ActionEntryFunc.
		if s.ActionEntryFunc != nil {
			s.ActionEntryFunc()
		}

		// Execute the next state's action and loop over again if the
		// event returned is not a no-op.
		nextEvent := state.Action(eventCtx)

		// Execute the state machine's ActionExitFunc.
		if s.ActionExitFunc != nil {
			s.ActionExitFunc()
		}

		// Execute the current state's exit function.
		if state.ExitFunc != nil {
			state.ExitFunc()
		}

		// Notify the state machine's observers after the action has
		// run, so LastActionError is populated for OnError events.
		s.observerMutex.Lock()
		notification := Notification{
			PreviousState:   s.previous,
			NextState:       s.current,
			Event:           event,
			LastActionError: s.LastActionError,
		}
		for _, observer := range s.observers {
			observer.Notify(notification)
		}
		s.observerMutex.Unlock()

		// If the next event is a no-op, we're done.
		if nextEvent == NoOp {
			return nil
		}

		event = nextEvent
	}
}

// RegisterObserver registers an observer with the state machine.
func (s *StateMachine) RegisterObserver(observer Observer) {
	s.observerMutex.Lock()
	defer s.observerMutex.Unlock()

	if observer != nil {
		s.observers = append(s.observers, observer)
	}
}

// RemoveObserver removes an observer from the state machine. It returns true
// if the observer was found and removed.
func (s *StateMachine) RemoveObserver(observer Observer) bool {
	s.observerMutex.Lock()
	defer s.observerMutex.Unlock()

	for i, o := range s.observers {
		if o == observer {
			s.observers = append(
				s.observers[:i], s.observers[i+1:]...,
			)
			return true
		}
	}

	return false
}

// HandleError is a helper function actions use to record an error and
// signal an OnError transition.
func (s *StateMachine) HandleError(err error) EventType {
	log.Errorf("StateMachine error: %s", err)
	s.LastActionError = err
	return OnError
}

// NoOpAction is a no-op action that can be used by states that don't need to
// execute anything, typically terminal states.
func NoOpAction(_ EventContext) EventType {
	return NoOp
}

// ErrConfigError is an error returned when the state machine is
// misconfigured.
type ErrConfigError error

// NewErrConfigError creates a new ErrConfigError.
func NewErrConfigError(msg string) ErrConfigError {
	return (ErrConfigError)(fmt.Errorf("config error: %s", msg))
}

// ErrWaitingForStateTimeout is an error returned when a caller times out
// waiting for a state machine to reach an expected state.
type ErrWaitingForStateTimeout error

// NewErrWaitingForStateTimeout creates a new ErrWaitingForStateTimeout.
func NewErrWaitingForStateTimeout(expected StateType) ErrWaitingForStateTimeout {
	return (ErrWaitingForStateTimeout)(fmt.Errorf(
		"waiting for state timeout: expected %s", expected,
	))
}
