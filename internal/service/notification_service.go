package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/worksession-tracker/internal/config"
	"github.com/spec-kit/worksession-tracker/internal/domain"
	"github.com/spec-kit/worksession-tracker/internal/events"
	"github.com/spec-kit/worksession-tracker/internal/repository"
)

var (
	// ErrSupportQueueNotConfigured reports a support handoff that was only
	// logged because no queue is wired.
	ErrSupportQueueNotConfigured = errors.New("support queue not configured")
	// ErrNotificationsNotConfigured reports a handoff with no dispatcher.
	ErrNotificationsNotConfigured = errors.New("notifications not configured")
)

// QueueClient is the part of the redis client used for notifications.
type QueueClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	workLog    repository.WorkLogRepository
	queue      QueueClient
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NotificationDependencies bundles collaborators. WorkLog and Queue are
// optional.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	WorkLog    repository.WorkLogRepository
	Queue      QueueClient
	Logger     *zap.Logger
	Config     config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		workLog:    deps.WorkLog,
		queue:      deps.Queue,
		logger:     logger,
		cfg:        deps.Config,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.WorkEventTypes {
		n.dispatcher.Subscribe(eventType, n.handleWorkTransition)
	}
	n.dispatcher.Subscribe(events.EventWorkSentToSupport, n.handleSentToSupport)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketArchived, n.handleTicketArchived)
}

// handleWorkTransition records the audit entry and fans the new totals out.
// Failures are logged only; the command has already been applied.
func (n *NotificationService) handleWorkTransition(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.WorkTransitionPayload)
	if !ok {
		n.logger.Warn("unexpected work event payload", zap.String("event_type", string(event.Type)))
		return nil
	}
	n.logger.Info("WorkTransition",
		zap.String("ticket_id", event.TicketID),
		zap.String("command", string(payload.Command)),
		zap.String("from", string(payload.FromState)),
		zap.String("to", string(payload.ToState)))

	if err := n.recordWorkLog(ctx, event, payload); err != nil {
		n.logger.Error("work log write failed", zap.String("ticket_id", event.TicketID), zap.Error(err))
	}
	if err := n.publishSnapshot(ctx, event); err != nil {
		n.logger.Warn("snapshot publish failed", zap.String("ticket_id", event.TicketID), zap.Error(err))
	}
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

// handleSentToSupport delivers the support notification. Its error is
// reported back to the caller of SendToSupport.
func (n *NotificationService) handleSentToSupport(ctx context.Context, event events.Event) error {
	n.sendEmailNotificationStub(ctx, event)
	if n.queue == nil {
		n.logger.Warn("support queue not configured; notification logged only",
			zap.String("ticket_id", event.TicketID))
		return ErrSupportQueueNotConfigured
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode support notification: %w", err)
	}
	if err := n.queue.RPush(ctx, n.cfg.SupportQueue, body).Err(); err != nil {
		return fmt.Errorf("enqueue support notification: %w", err)
	}
	return nil
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketAssigned", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketArchived(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketArchived", zap.String("ticket_id", event.TicketID))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) recordWorkLog(ctx context.Context, event events.Event, payload events.WorkTransitionPayload) error {
	if n.workLog == nil {
		return nil
	}
	return n.workLog.Create(ctx, &domain.WorkLogEntry{
		ID:          uuid.NewString(),
		TicketID:    event.TicketID,
		Command:     payload.Command,
		FromState:   payload.FromState,
		ToState:     payload.ToState,
		ActiveAdded: payload.ActiveAdded,
		PauseAdded:  payload.PauseAdded,
		ActorType:   event.Actor.Type,
		ActorID:     event.Actor.ID,
		OccurredAt:  event.Timestamp,
	})
}

func (n *NotificationService) publishSnapshot(ctx context.Context, event events.Event) error {
	if n.queue == nil || strings.TrimSpace(n.cfg.SnapshotChannel) == "" {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.queue.Publish(ctx, n.cfg.SnapshotChannel, body).Err()
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
