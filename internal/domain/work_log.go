package domain

import "time"

// WorkLogEntry is an immutable audit record of one applied work command.
type WorkLogEntry struct {
	ID          string
	TicketID    string
	Command     WorkCommand
	FromState   WorkState
	ToState     WorkState
	ActiveAdded int64
	PauseAdded  int64
	ActorType   SubjectType
	ActorID     *string
	OccurredAt  time.Time
	CreatedAt   time.Time
}
