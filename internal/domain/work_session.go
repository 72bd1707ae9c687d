package domain

// WorkState enumerates the work-session lifecycle of a ticket.
type WorkState string

const (
	WorkStateAssigned     WorkState = "ASSIGNED"
	WorkStateInProgress   WorkState = "IN_PROGRESS"
	WorkStatePaused       WorkState = "PAUSED"
	WorkStateDevCompleted WorkState = "DEV_COMPLETED"
)

// IsTerminal reports whether no further lifecycle transition is possible.
func (s WorkState) IsTerminal() bool {
	return s == WorkStateDevCompleted
}

// Display returns a label for status badges.
func (s WorkState) Display() string {
	switch s {
	case WorkStateAssigned:
		return "Assigned"
	case WorkStateInProgress:
		return "In Progress"
	case WorkStatePaused:
		return "Paused"
	case WorkStateDevCompleted:
		return "Dev Completed"
	default:
		return string(s)
	}
}

// WorkCommand is a caller-issued lifecycle command.
type WorkCommand string

const (
	WorkCommandStart         WorkCommand = "START"
	WorkCommandPause         WorkCommand = "PAUSE"
	WorkCommandResume        WorkCommand = "RESUME"
	WorkCommandComplete      WorkCommand = "COMPLETE"
	WorkCommandSendToSupport WorkCommand = "SEND_TO_SUPPORT"
)

// SegmentKind identifies which ledger bucket a time segment counts toward.
type SegmentKind string

const (
	SegmentNone   SegmentKind = "NONE"
	SegmentActive SegmentKind = "ACTIVE"
	SegmentPause  SegmentKind = "PAUSE"
)
