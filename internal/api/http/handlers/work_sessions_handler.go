package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/worksession-tracker/internal/api/dto"
	"github.com/spec-kit/worksession-tracker/internal/auth"
	"github.com/spec-kit/worksession-tracker/internal/domain"
	"github.com/spec-kit/worksession-tracker/internal/events"
	"github.com/spec-kit/worksession-tracker/internal/service"
	"github.com/spec-kit/worksession-tracker/internal/worksession"
	apperrors "github.com/spec-kit/worksession-tracker/pkg/util/errorutil"
)

const dateLayout = "2006-01-02"

// WorkSessionsHandler exposes work session commands and reads.
type WorkSessionsHandler struct {
	service *service.WorkSessionService
}

// NewWorkSessionsHandler constructs handler.
func NewWorkSessionsHandler(workService *service.WorkSessionService) *WorkSessionsHandler {
	return &WorkSessionsHandler{service: workService}
}

type commandFunc func(context.Context, events.Actor, string) (worksession.TicketSnapshot, error)

func (h *WorkSessionsHandler) runCommand(c *fiber.Ctx, fn commandFunc) error {
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	snap, err := fn(c.UserContext(), actorFrom(c), ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workSnapshotResponse(snap)})
}

// Start POST /tickets/:id/work/start.
func (h *WorkSessionsHandler) Start(c *fiber.Ctx) error {
	return h.runCommand(c, h.service.Start)
}

// Pause POST /tickets/:id/work/pause.
func (h *WorkSessionsHandler) Pause(c *fiber.Ctx) error {
	return h.runCommand(c, h.service.Pause)
}

// Resume POST /tickets/:id/work/resume.
func (h *WorkSessionsHandler) Resume(c *fiber.Ctx) error {
	return h.runCommand(c, h.service.Resume)
}

// Complete POST /tickets/:id/work/complete.
func (h *WorkSessionsHandler) Complete(c *fiber.Ctx) error {
	return h.runCommand(c, h.service.Complete)
}

// Assign POST /tickets/:id/work/assign.
func (h *WorkSessionsHandler) Assign(c *fiber.Ctx) error {
	return h.runCommand(c, h.service.Assign)
}

// SendToSupport POST /tickets/:id/work/send-to-support.
func (h *WorkSessionsHandler) SendToSupport(c *fiber.Ctx) error {
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	handoff, err := h.service.SendToSupport(c.UserContext(), actorFrom(c), ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SupportHandoffResponse{
		Work: workSnapshotResponse(handoff.Snapshot),
		Notification: dto.NotificationResponse{
			Delivered: handoff.Delivered,
			Error:     handoff.Error,
		},
	}})
}

// Archive DELETE /tickets/:id/work.
func (h *WorkSessionsHandler) Archive(c *fiber.Ctx) error {
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	if err := h.service.Archive(c.UserContext(), actorFrom(c), ticketID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Get GET /tickets/:id/work.
func (h *WorkSessionsHandler) Get(c *fiber.Ctx) error {
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	snap, err := h.service.Snapshot(ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workSnapshotResponse(snap)})
}

// List GET /tickets/work.
func (h *WorkSessionsHandler) List(c *fiber.Ctx) error {
	query := parseWorkListQuery(c)
	snaps := h.service.Snapshots(query.OverdueOnly)
	items := make([]dto.WorkSnapshotResponse, 0, len(snaps))
	for _, snap := range snaps {
		items = append(items, workSnapshotResponse(snap))
	}
	return c.JSON(fiber.Map{"data": items})
}

// History GET /tickets/:id/work/history.
func (h *WorkSessionsHandler) History(c *fiber.Ctx) error {
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	page, err := parsePageQuery(c)
	if err != nil {
		return err
	}
	entries, err := h.service.History(c.UserContext(), ticketID, page.Limit, page.Offset)
	if err != nil {
		return err
	}
	items := make([]dto.WorkLogEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, workLogEntryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func ticketIDParam(c *fiber.Ctx) (string, error) {
	id := c.Params("id")
	if id == "" {
		return "", apperrors.NewValidationError("ticket id required", nil)
	}
	return id, nil
}

func actorFrom(c *fiber.Ctx) events.Actor {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return events.Actor{Type: domain.SubjectTypeAnonymous}
	}
	return principal.Actor()
}

func parseWorkListQuery(c *fiber.Ctx) dto.WorkListQuery {
	overdue, _ := strconv.ParseBool(c.Query("overdue"))
	return dto.WorkListQuery{OverdueOnly: overdue}
}

func parsePageQuery(c *fiber.Ctx) (dto.PageQuery, error) {
	page := dto.PageQuery{Limit: 100}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > 500 {
			return page, apperrors.NewValidationError("limit must be between 1 and 500", map[string]any{"limit": raw})
		}
		page.Limit = limit
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return page, apperrors.NewValidationError("offset must be a non-negative integer", map[string]any{"offset": raw})
		}
		page.Offset = offset
	}
	return page, nil
}

func workSnapshotResponse(snap worksession.TicketSnapshot) dto.WorkSnapshotResponse {
	var expected *string
	if !snap.ExpectedDate.IsZero() {
		d := snap.ExpectedDate.Format(dateLayout)
		expected = &d
	}
	return dto.WorkSnapshotResponse{
		TicketID:           snap.TicketID,
		Priority:           snap.Priority,
		ExpectedDate:       expected,
		State:              snap.State,
		StateLabel:         snap.State.Display(),
		TotalActiveMinutes: snap.TotalActiveMinutes,
		TotalPauseMinutes:  snap.TotalPauseMinutes,
		TimeSpent:          worksession.FormatMinutes(snap.TotalActiveMinutes),
		TimePaused:         worksession.FormatMinutes(snap.TotalPauseMinutes),
		IsOverdue:          snap.IsOverdue,
		AsOf:               snap.AsOf,
	}
}

func workLogEntryResponse(entry *domain.WorkLogEntry) dto.WorkLogEntryResponse {
	return dto.WorkLogEntryResponse{
		ID:          entry.ID,
		Command:     entry.Command,
		FromState:   entry.FromState,
		ToState:     entry.ToState,
		ActiveAdded: entry.ActiveAdded,
		PauseAdded:  entry.PauseAdded,
		ActorType:   entry.ActorType,
		ActorID:     entry.ActorID,
		OccurredAt:  entry.OccurredAt,
	}
}
