package trade

import (
	"errors"
	"fmt"
)

type State string

const (
	SignalGenerated     State = "SIGNAL_GENERATED"
	WaitingForExecution State = "WAITING_FOR_EXECUTION"
	Open                State = "OPEN"
	PartialExit         State = "PARTIAL_EXIT"
	Closed              State = "CLOSED"
	Cancelled           State = "CANCELLED"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrAlreadyTerminal   = errors.New("trade already terminal")
)

var transitions = map[State][]State{
	SignalGenerated:     {WaitingForExecution, Cancelled},
	WaitingForExecution: {Open, Cancelled},
	Open:                {PartialExit, Closed},
	PartialExit:         {PartialExit, Closed},
}

func (s State) Terminal() bool { return s == Closed || s == Cancelled }

// Live reports whether the trade holds a position.
func (s State) Live() bool { return s == Open || s == PartialExit }

// Pending reports whether the trade has not been filled yet.
func (s State) Pending() bool { return s == SignalGenerated || s == WaitingForExecution }

func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkTransition returns ErrAlreadyTerminal for moves out of a terminal
// state and ErrInvalidTransition for any other illegal move.
func checkTransition(from, to State) error {
	if CanTransition(from, to) {
		return nil
	}
	if from.Terminal() {
		return fmt.Errorf("%s -> %s: %w", from, to, ErrAlreadyTerminal)
	}
	return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
}
