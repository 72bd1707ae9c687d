package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/worksession-tracker/internal/clock"
	"github.com/spec-kit/worksession-tracker/internal/domain"
	"github.com/spec-kit/worksession-tracker/internal/events"
	"github.com/spec-kit/worksession-tracker/internal/observability"
	"github.com/spec-kit/worksession-tracker/internal/repository"
	"github.com/spec-kit/worksession-tracker/internal/worksession"
	apperrors "github.com/spec-kit/worksession-tracker/pkg/util/errorutil"
)

// WorkSessionService applies work commands to tracked tickets and emits the
// resulting events.
type WorkSessionService struct {
	registry   *worksession.Registry
	tickets    repository.TicketRepository
	workLog    repository.WorkLogRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	clock      clock.Clock
	logger     *zap.Logger
}

// WorkSessionDependencies bundles collaborators.
type WorkSessionDependencies struct {
	Registry   *worksession.Registry
	TicketRepo repository.TicketRepository
	WorkLog    repository.WorkLogRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Clock      clock.Clock
	Logger     *zap.Logger
}

// SupportHandoff is the result of SendToSupport. A failed notification does
// not undo the command; it is reported through Delivered and Error.
type SupportHandoff struct {
	Snapshot  worksession.TicketSnapshot
	Delivered bool
	Error     string
}

// NewWorkSessionService creates the service.
func NewWorkSessionService(deps WorkSessionDependencies) *WorkSessionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real(nil)
	}
	registry := deps.Registry
	if registry == nil {
		registry = worksession.NewRegistry(clk, logger)
	}
	return &WorkSessionService{
		registry:   registry,
		tickets:    deps.TicketRepo,
		workLog:    deps.WorkLog,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		clock:      clk,
		logger:     logger,
	}
}

// Preload registers every assigned ticket from the ticket source and returns
// how many were added.
func (s *WorkSessionService) Preload(ctx context.Context, limit int) (int, error) {
	if s.tickets == nil {
		return 0, nil
	}
	tickets, err := s.tickets.ListAssigned(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list assigned tickets: %w", err)
	}
	added := 0
	for _, ticket := range tickets {
		if _, created := s.registry.Register(ticket); created {
			added++
		}
	}
	s.logger.Info("preloaded assigned tickets", zap.Int("loaded", len(tickets)), zap.Int("added", added))
	return added, nil
}

// Assign starts tracking a ticket in ASSIGNED state, or refreshes its
// scheduling facts when already tracked.
func (s *WorkSessionService) Assign(ctx context.Context, actor events.Actor, ticketID string) (worksession.TicketSnapshot, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return worksession.TicketSnapshot{}, err
	}
	snapshot, created := s.registry.Register(*ticket)
	if created {
		s.publish(ctx, actor, events.EventTicketAssigned, ticketID, events.TicketAssignedPayload{
			AssigneeStaffID: ticket.AssigneeID,
			Priority:        ticket.Priority,
			ExpectedDate:    expectedDatePtr(ticket),
		})
	}
	return snapshot, nil
}

// Archive stops tracking a ticket.
func (s *WorkSessionService) Archive(ctx context.Context, actor events.Actor, ticketID string) error {
	if !s.registry.Remove(ticketID) {
		return fmt.Errorf("%w: %s", domain.ErrTicketNotFound, ticketID)
	}
	s.publish(ctx, actor, events.EventTicketArchived, ticketID, nil)
	return nil
}

// Start begins work. The ticket's facts are loaded from the ticket source so
// that an entry created by this call knows its priority and expected date.
func (s *WorkSessionService) Start(ctx context.Context, actor events.Actor, ticketID string) (worksession.TicketSnapshot, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		s.metrics.RecordTransition(string(domain.WorkCommandStart), apperrors.Code(err))
		return worksession.TicketSnapshot{}, err
	}
	t, err := s.record(ctx, actor, ticketID, domain.WorkCommandStart, func() (worksession.Transition, error) {
		return s.registry.StartWith(*ticket)
	})
	return t.Snapshot, err
}

// Pause pauses active work.
func (s *WorkSessionService) Pause(ctx context.Context, actor events.Actor, ticketID string) (worksession.TicketSnapshot, error) {
	t, err := s.apply(ctx, actor, ticketID, domain.WorkCommandPause)
	return t.Snapshot, err
}

// Resume resumes paused work.
func (s *WorkSessionService) Resume(ctx context.Context, actor events.Actor, ticketID string) (worksession.TicketSnapshot, error) {
	t, err := s.apply(ctx, actor, ticketID, domain.WorkCommandResume)
	return t.Snapshot, err
}

// Complete finishes development work.
func (s *WorkSessionService) Complete(ctx context.Context, actor events.Actor, ticketID string) (worksession.TicketSnapshot, error) {
	t, err := s.apply(ctx, actor, ticketID, domain.WorkCommandComplete)
	return t.Snapshot, err
}

// SendToSupport notifies support about completed work.
func (s *WorkSessionService) SendToSupport(ctx context.Context, actor events.Actor, ticketID string) (SupportHandoff, error) {
	t, err := s.registry.Apply(ticketID, domain.WorkCommandSendToSupport)
	if err != nil {
		s.metrics.RecordTransition(string(domain.WorkCommandSendToSupport), apperrors.Code(err))
		return SupportHandoff{}, err
	}
	s.metrics.RecordTransition(string(domain.WorkCommandSendToSupport), "ok")

	handoff := SupportHandoff{Snapshot: t.Snapshot, Delivered: true}
	err = s.publish(ctx, actor, events.EventWorkSentToSupport, ticketID, transitionPayload(t))
	if err == nil && s.dispatcher == nil {
		err = ErrNotificationsNotConfigured
	}
	if err != nil {
		s.logger.Warn("support notification failed", zap.String("ticket_id", ticketID), zap.Error(err))
		handoff.Delivered = false
		handoff.Error = err.Error()
	}
	return handoff, nil
}

// Snapshot returns the current read of one ticket.
func (s *WorkSessionService) Snapshot(ticketID string) (worksession.TicketSnapshot, error) {
	return s.registry.Snapshot(ticketID)
}

// Snapshots returns every tracked ticket, optionally only the overdue ones.
func (s *WorkSessionService) Snapshots(overdueOnly bool) []worksession.TicketSnapshot {
	all := s.registry.Snapshots()
	if !overdueOnly {
		return all
	}
	result := make([]worksession.TicketSnapshot, 0, len(all))
	for _, snap := range all {
		if snap.IsOverdue {
			result = append(result, snap)
		}
	}
	return result
}

// History lists the audit trail of a ticket.
func (s *WorkSessionService) History(ctx context.Context, ticketID string, limit, offset int) ([]domain.WorkLogEntry, error) {
	if s.workLog == nil {
		return []domain.WorkLogEntry{}, nil
	}
	entries, err := s.workLog.ListByTicket(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *WorkSessionService) apply(ctx context.Context, actor events.Actor, ticketID string, cmd domain.WorkCommand) (worksession.Transition, error) {
	return s.record(ctx, actor, ticketID, cmd, func() (worksession.Transition, error) {
		return s.registry.Apply(ticketID, cmd)
	})
}

func (s *WorkSessionService) record(ctx context.Context, actor events.Actor, ticketID string, cmd domain.WorkCommand, run func() (worksession.Transition, error)) (worksession.Transition, error) {
	t, err := run()
	if err != nil {
		s.metrics.RecordTransition(string(cmd), apperrors.Code(err))
		return worksession.Transition{}, err
	}
	s.metrics.RecordTransition(string(cmd), "ok")
	if err := s.publish(ctx, actor, events.ForCommand(cmd), ticketID, transitionPayload(t)); err != nil {
		s.logger.Warn("work event handlers failed",
			zap.String("ticket_id", ticketID),
			zap.String("command", string(cmd)),
			zap.Error(err))
	}
	return t, nil
}

func (s *WorkSessionService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	if s.tickets == nil {
		return &domain.Ticket{ID: ticketID}, nil
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTicketNotFound, ticketID)
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *WorkSessionService) publish(ctx context.Context, actor events.Actor, eventType events.EventType, ticketID string, payload interface{}) error {
	if s.dispatcher == nil {
		return nil
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: s.clock.Now(),
		Payload:   payload,
	}
	return s.dispatcher.Publish(ctx, event)
}

func transitionPayload(t worksession.Transition) events.WorkTransitionPayload {
	return events.WorkTransitionPayload{
		Command:            t.Outcome.Command,
		FromState:          t.Outcome.From,
		ToState:            t.Outcome.To,
		ActiveAdded:        t.Outcome.ActiveAdded,
		PauseAdded:         t.Outcome.PauseAdded,
		TotalActiveMinutes: t.Snapshot.TotalActiveMinutes,
		TotalPauseMinutes:  t.Snapshot.TotalPauseMinutes,
		IsOverdue:          t.Snapshot.IsOverdue,
	}
}

func expectedDatePtr(ticket *domain.Ticket) *time.Time {
	if !ticket.HasExpectedDate() {
		return nil
	}
	d := ticket.ExpectedDate
	return &d
}
