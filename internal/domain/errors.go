package domain

import (
	"errors"
	"fmt"
)

// Tracker errors. Transition and ledger errors are wrapped in
// *TransitionError and *LedgerError respectively.
var (
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrAlreadyStarted     = errors.New("work already started")
	ErrTerminalState      = errors.New("ticket is in a terminal state")
	ErrSegmentAlreadyOpen = errors.New("segment already open")
	ErrNoOpenSegment      = errors.New("no open segment")
)

// TransitionError reports a command that is not legal in the current state.
type TransitionError struct {
	Kind    error
	State   WorkState
	Command WorkCommand
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: %s not allowed in state %s", e.Kind, e.Command, e.State)
}

func (e *TransitionError) Unwrap() error {
	return e.Kind
}

// LedgerError reports a violated ledger invariant. Reaching one means the
// transition table and the ledger disagree.
type LedgerError struct {
	Kind    error
	Segment SegmentKind
}

func (e *LedgerError) Error() string {
	if e.Segment == "" || e.Segment == SegmentNone {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v (%s)", e.Kind, e.Segment)
}

func (e *LedgerError) Unwrap() error {
	return e.Kind
}
