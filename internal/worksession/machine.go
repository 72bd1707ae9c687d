package worksession

import (
	"time"

	"github.com/spec-kit/worksession-tracker/internal/domain"
)

// transition describes one legal (state, command) pair and its ledger effect.
type transition struct {
	to    domain.WorkState
	close bool
	open  domain.SegmentKind
}

var allowedTransitions = map[domain.WorkState]map[domain.WorkCommand]transition{
	domain.WorkStateAssigned: {
		domain.WorkCommandStart: {to: domain.WorkStateInProgress, open: domain.SegmentActive},
	},
	domain.WorkStateInProgress: {
		domain.WorkCommandPause:    {to: domain.WorkStatePaused, close: true, open: domain.SegmentPause},
		domain.WorkCommandComplete: {to: domain.WorkStateDevCompleted, close: true},
	},
	domain.WorkStatePaused: {
		domain.WorkCommandResume: {to: domain.WorkStateInProgress, close: true, open: domain.SegmentActive},
	},
	domain.WorkStateDevCompleted: {
		domain.WorkCommandSendToSupport: {to: domain.WorkStateDevCompleted},
	},
}

// Machine is the work-session state machine of a single ticket. It owns the
// ticket's ledger. Machine is not safe for concurrent use; the registry
// serializes access.
type Machine struct {
	state  domain.WorkState
	ledger TimeLedger
}

// Outcome describes the effect of an applied command.
type Outcome struct {
	Command     domain.WorkCommand
	From        domain.WorkState
	To          domain.WorkState
	ActiveAdded int64
	PauseAdded  int64
	At          time.Time
}

// NewMachine creates a machine in the Assigned state with an empty ledger.
func NewMachine(ledger TimeLedger) *Machine {
	return &Machine{state: domain.WorkStateAssigned, ledger: ledger}
}

// State returns the current lifecycle state.
func (m *Machine) State() domain.WorkState {
	return m.state
}

// Ledger returns a copy of the machine's ledger.
func (m *Machine) Ledger() TimeLedger {
	return m.ledger
}

// Apply validates cmd against the current state and performs its ledger
// effect. On error neither the state nor the ledger changes.
func (m *Machine) Apply(cmd domain.WorkCommand, at time.Time) (Outcome, error) {
	rule, ok := allowedTransitions[m.state][cmd]
	if !ok {
		return Outcome{}, m.rejection(cmd)
	}

	out := Outcome{Command: cmd, From: m.state, To: rule.to, At: at}
	staged := m.ledger
	if rule.close {
		kind := staged.OpenKind()
		minutes, err := staged.Close(at)
		if err != nil {
			return Outcome{}, err
		}
		switch kind {
		case domain.SegmentActive:
			out.ActiveAdded = minutes
		case domain.SegmentPause:
			out.PauseAdded = minutes
		}
	}
	if rule.open != "" {
		if err := staged.Open(rule.open, at); err != nil {
			return Outcome{}, err
		}
	}

	m.ledger = staged
	m.state = rule.to
	return out, nil
}

func (m *Machine) rejection(cmd domain.WorkCommand) error {
	kind := domain.ErrInvalidTransition
	switch {
	case m.state.IsTerminal():
		kind = domain.ErrTerminalState
	case cmd == domain.WorkCommandStart &&
		(m.state == domain.WorkStateInProgress || m.state == domain.WorkStatePaused):
		kind = domain.ErrAlreadyStarted
	}
	return &domain.TransitionError{Kind: kind, State: m.state, Command: cmd}
}
