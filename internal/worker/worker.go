package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/worksession-tracker/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// Preloader loads assigned tickets into the tracker.
type Preloader interface {
	Preload(ctx context.Context, limit int) (int, error)
}

// RunPreload registers assigned tickets before the server starts accepting
// commands. A failure is logged and the tracker starts empty; tickets are
// still picked up lazily on their first START.
func RunPreload(ctx context.Context, preloader Preloader, limit int, timeout time.Duration, logger *zap.Logger) int {
	if preloader == nil {
		return 0
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	added, err := preloader.Preload(ctx, limit)
	if err != nil {
		logger.Warn("preload of assigned tickets failed", zap.Error(err))
		return 0
	}
	return added
}
