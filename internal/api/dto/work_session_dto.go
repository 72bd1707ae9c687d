package dto

import (
	"time"

	"github.com/spec-kit/worksession-tracker/internal/domain"
)

// WorkSnapshotResponse is the read model of a ticket's work session.
type WorkSnapshotResponse struct {
	TicketID           string                `json:"ticket_id"`
	Priority           domain.TicketPriority `json:"priority,omitempty"`
	ExpectedDate       *string               `json:"expected_date"`
	State              domain.WorkState      `json:"state"`
	StateLabel         string                `json:"state_label"`
	TotalActiveMinutes int64                 `json:"total_active_minutes"`
	TotalPauseMinutes  int64                 `json:"total_pause_minutes"`
	TimeSpent          string                `json:"time_spent"`
	TimePaused         string                `json:"time_paused"`
	IsOverdue          bool                  `json:"is_overdue"`
	AsOf               time.Time             `json:"as_of"`
}

// NotificationResponse reports support notification delivery.
type NotificationResponse struct {
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

// SupportHandoffResponse is returned by send-to-support.
type SupportHandoffResponse struct {
	Work         WorkSnapshotResponse `json:"work"`
	Notification NotificationResponse `json:"notification"`
}

// WorkLogEntryResponse is one audit trail entry.
type WorkLogEntryResponse struct {
	ID          string             `json:"id"`
	Command     domain.WorkCommand `json:"command"`
	FromState   domain.WorkState   `json:"from_state"`
	ToState     domain.WorkState   `json:"to_state"`
	ActiveAdded int64              `json:"active_minutes_added"`
	PauseAdded  int64              `json:"pause_minutes_added"`
	ActorType   domain.SubjectType `json:"actor_type"`
	ActorID     *string            `json:"actor_id,omitempty"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

// WorkListQuery captures filters for the work board.
type WorkListQuery struct {
	OverdueOnly bool
}

// PageQuery captures paging parameters.
type PageQuery struct {
	Limit  int
	Offset int
}
