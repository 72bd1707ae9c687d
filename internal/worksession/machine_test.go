package worksession

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/worksession-tracker/internal/domain"
)

var allCommands = []domain.WorkCommand{
	domain.WorkCommandStart,
	domain.WorkCommandPause,
	domain.WorkCommandResume,
	domain.WorkCommandComplete,
	domain.WorkCommandSendToSupport,
}

// machineIn drives a fresh machine into the requested state.
func machineIn(t *testing.T, state domain.WorkState) *Machine {
	t.Helper()
	m := NewMachine(NewTimeLedger(nil))
	var path []domain.WorkCommand
	switch state {
	case domain.WorkStateAssigned:
	case domain.WorkStateInProgress:
		path = []domain.WorkCommand{domain.WorkCommandStart}
	case domain.WorkStatePaused:
		path = []domain.WorkCommand{domain.WorkCommandStart, domain.WorkCommandPause}
	case domain.WorkStateDevCompleted:
		path = []domain.WorkCommand{domain.WorkCommandStart, domain.WorkCommandComplete}
	}
	at := t0
	for _, cmd := range path {
		_, err := m.Apply(cmd, at)
		require.NoError(t, err)
		at = at.Add(10 * time.Minute)
	}
	require.Equal(t, state, m.State())
	return m
}

func TestMachineTransitionTable(t *testing.T) {
	tests := []struct {
		from    domain.WorkState
		cmd     domain.WorkCommand
		to      domain.WorkState
		wantErr error
	}{
		{domain.WorkStateAssigned, domain.WorkCommandStart, domain.WorkStateInProgress, nil},
		{domain.WorkStateAssigned, domain.WorkCommandPause, "", domain.ErrInvalidTransition},
		{domain.WorkStateAssigned, domain.WorkCommandResume, "", domain.ErrInvalidTransition},
		{domain.WorkStateAssigned, domain.WorkCommandComplete, "", domain.ErrInvalidTransition},
		{domain.WorkStateAssigned, domain.WorkCommandSendToSupport, "", domain.ErrInvalidTransition},

		{domain.WorkStateInProgress, domain.WorkCommandStart, "", domain.ErrAlreadyStarted},
		{domain.WorkStateInProgress, domain.WorkCommandPause, domain.WorkStatePaused, nil},
		{domain.WorkStateInProgress, domain.WorkCommandResume, "", domain.ErrInvalidTransition},
		{domain.WorkStateInProgress, domain.WorkCommandComplete, domain.WorkStateDevCompleted, nil},
		{domain.WorkStateInProgress, domain.WorkCommandSendToSupport, "", domain.ErrInvalidTransition},

		{domain.WorkStatePaused, domain.WorkCommandStart, "", domain.ErrAlreadyStarted},
		{domain.WorkStatePaused, domain.WorkCommandPause, "", domain.ErrInvalidTransition},
		{domain.WorkStatePaused, domain.WorkCommandResume, domain.WorkStateInProgress, nil},
		{domain.WorkStatePaused, domain.WorkCommandComplete, "", domain.ErrInvalidTransition},
		{domain.WorkStatePaused, domain.WorkCommandSendToSupport, "", domain.ErrInvalidTransition},

		{domain.WorkStateDevCompleted, domain.WorkCommandStart, "", domain.ErrTerminalState},
		{domain.WorkStateDevCompleted, domain.WorkCommandPause, "", domain.ErrTerminalState},
		{domain.WorkStateDevCompleted, domain.WorkCommandResume, "", domain.ErrTerminalState},
		{domain.WorkStateDevCompleted, domain.WorkCommandComplete, "", domain.ErrTerminalState},
		{domain.WorkStateDevCompleted, domain.WorkCommandSendToSupport, domain.WorkStateDevCompleted, nil},
	}
	require.Len(t, tests, 4*len(allCommands))

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.cmd), func(t *testing.T) {
			m := machineIn(t, tt.from)
			before := m.Ledger().Snapshot(t0.Add(time.Hour))

			out, err := m.Apply(tt.cmd, t0.Add(time.Hour))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				var transitionErr *domain.TransitionError
				require.ErrorAs(t, err, &transitionErr)
				assert.Equal(t, tt.from, transitionErr.State)
				assert.Equal(t, tt.cmd, transitionErr.Command)
				assert.Equal(t, tt.from, m.State())
				assert.Equal(t, before, m.Ledger().Snapshot(t0.Add(time.Hour)))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, m.State())
			assert.Equal(t, tt.from, out.From)
			assert.Equal(t, tt.to, out.To)
		})
	}
}

func TestMachineSegmentInvariant(t *testing.T) {
	for _, state := range []domain.WorkState{
		domain.WorkStateAssigned,
		domain.WorkStateInProgress,
		domain.WorkStatePaused,
		domain.WorkStateDevCompleted,
	} {
		m := machineIn(t, state)
		switch state {
		case domain.WorkStateAssigned, domain.WorkStateDevCompleted:
			assert.Equal(t, domain.SegmentNone, m.Ledger().OpenKind(), state)
		case domain.WorkStateInProgress:
			assert.Equal(t, domain.SegmentActive, m.Ledger().OpenKind(), state)
		case domain.WorkStatePaused:
			assert.Equal(t, domain.SegmentPause, m.Ledger().OpenKind(), state)
		}
	}
}

func TestMachineOutcomeReportsMinutesAdded(t *testing.T) {
	m := NewMachine(NewTimeLedger(nil))

	_, err := m.Apply(domain.WorkCommandStart, t0)
	require.NoError(t, err)

	out, err := m.Apply(domain.WorkCommandPause, t0.Add(45*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(45), out.ActiveAdded)
	assert.Zero(t, out.PauseAdded)

	out, err = m.Apply(domain.WorkCommandResume, t0.Add(60*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(15), out.PauseAdded)
	assert.Zero(t, out.ActiveAdded)

	out, err = m.Apply(domain.WorkCommandComplete, t0.Add(61*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.ActiveAdded)

	out, err = m.Apply(domain.WorkCommandSendToSupport, t0.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, out.ActiveAdded)
	assert.Zero(t, out.PauseAdded)

	snap := m.Ledger().Snapshot(t0.Add(5 * time.Hour))
	assert.Equal(t, int64(46), snap.TotalActive())
	assert.Equal(t, int64(15), snap.TotalPause())
}

func TestMachineLedgerFailureLeavesStateUntouched(t *testing.T) {
	// A machine whose ledger already has an open segment while Assigned
	// violates the wiring invariant; Start must be rejected atomically.
	ledger := NewTimeLedger(nil)
	require.NoError(t, ledger.Open(domain.SegmentPause, t0))
	m := NewMachine(ledger)

	_, err := m.Apply(domain.WorkCommandStart, t0.Add(time.Minute))
	require.ErrorIs(t, err, domain.ErrSegmentAlreadyOpen)
	assert.Equal(t, domain.WorkStateAssigned, m.State())
	assert.Equal(t, domain.SegmentPause, m.Ledger().OpenKind())
}

func TestMachineRejectsEveryCommandInUnknownState(t *testing.T) {
	m := NewMachine(NewTimeLedger(nil))
	m.state = domain.WorkState("ARCHIVED")

	for _, cmd := range allCommands {
		_, err := m.Apply(cmd, t0)
		require.ErrorIs(t, err, domain.ErrInvalidTransition, cmd)
		var te *domain.TransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, domain.WorkState("ARCHIVED"), te.State)
	}
	assert.Equal(t, domain.WorkState("ARCHIVED"), m.State())
}
