package events

import (
	"time"

	"github.com/spec-kit/worksession-tracker/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventWorkStarted       EventType = "work_started"
	EventWorkPaused        EventType = "work_paused"
	EventWorkResumed       EventType = "work_resumed"
	EventWorkCompleted     EventType = "work_completed"
	EventWorkSentToSupport EventType = "work_sent_to_support"
	EventTicketAssigned    EventType = "ticket_assigned"
	EventTicketArchived    EventType = "ticket_archived"
)

// WorkEventTypes lists the events emitted for work commands.
var WorkEventTypes = []EventType{
	EventWorkStarted,
	EventWorkPaused,
	EventWorkResumed,
	EventWorkCompleted,
	EventWorkSentToSupport,
}

// ForCommand maps a work command to the event it emits.
func ForCommand(cmd domain.WorkCommand) EventType {
	switch cmd {
	case domain.WorkCommandStart:
		return EventWorkStarted
	case domain.WorkCommandPause:
		return EventWorkPaused
	case domain.WorkCommandResume:
		return EventWorkResumed
	case domain.WorkCommandComplete:
		return EventWorkCompleted
	case domain.WorkCommandSendToSupport:
		return EventWorkSentToSupport
	default:
		return EventType("work_" + string(cmd))
	}
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type domain.SubjectType `json:"type"`
	ID   *string            `json:"id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// WorkTransitionPayload describes an applied work command.
type WorkTransitionPayload struct {
	Command            domain.WorkCommand `json:"command"`
	FromState          domain.WorkState   `json:"from_state"`
	ToState            domain.WorkState   `json:"to_state"`
	ActiveAdded        int64              `json:"active_minutes_added"`
	PauseAdded         int64              `json:"pause_minutes_added"`
	TotalActiveMinutes int64              `json:"total_active_minutes"`
	TotalPauseMinutes  int64              `json:"total_pause_minutes"`
	IsOverdue          bool               `json:"is_overdue"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeStaffID *string               `json:"assignee_staff_id,omitempty"`
	Priority        domain.TicketPriority `json:"priority"`
	ExpectedDate    *time.Time            `json:"expected_date,omitempty"`
}
