package domain

import "time"

// TicketPriority enumerates ticket urgency. Informational only.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
)

// IsValid reports whether p is a known priority.
func (p TicketPriority) IsValid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	default:
		return false
	}
}

// Ticket holds the scheduling facts the tracker reads. It is owned by the
// ticketing system and never mutated by the tracker.
type Ticket struct {
	ID           string
	Title        string
	Priority     TicketPriority
	AssigneeID   *string
	ExpectedDate time.Time
	CreatedAt    time.Time
}

// HasExpectedDate reports whether a deadline is known for the ticket.
func (t Ticket) HasExpectedDate() bool {
	return !t.ExpectedDate.IsZero()
}
