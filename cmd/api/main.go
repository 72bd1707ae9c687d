package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/worksession-tracker/internal/api/http"
	"github.com/spec-kit/worksession-tracker/internal/api/http/handlers"
	"github.com/spec-kit/worksession-tracker/internal/auth"
	"github.com/spec-kit/worksession-tracker/internal/clock"
	"github.com/spec-kit/worksession-tracker/internal/config"
	"github.com/spec-kit/worksession-tracker/internal/events"
	"github.com/spec-kit/worksession-tracker/internal/observability"
	"github.com/spec-kit/worksession-tracker/internal/persistence"
	"github.com/spec-kit/worksession-tracker/internal/repository"
	"github.com/spec-kit/worksession-tracker/internal/service"
	"github.com/spec-kit/worksession-tracker/internal/worker"
	"github.com/spec-kit/worksession-tracker/internal/worksession"
)

const preloadLimit = 10000

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	ticketRepo, workLogRepo := buildRepositories(pg, logger)

	var queue service.QueueClient
	if redis.Configured() {
		queue = redis.Client
	}

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		WorkLog:    workLogRepo,
		Queue:      queue,
		Logger:     logger,
		Config:     cfg.Notification,
	}))

	loc, err := cfg.Tracker.Location()
	if err != nil {
		logger.Fatal("invalid tracker timezone", zap.Error(err))
	}
	clk := clock.Real(loc)
	metrics := observability.NewMetrics()
	registry := worksession.NewRegistry(clk, logger.Named("worksession"))
	workService := service.NewWorkSessionService(service.WorkSessionDependencies{
		Registry:   registry,
		TicketRepo: ticketRepo,
		WorkLog:    workLogRepo,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Clock:      clk,
		Logger:     logger,
	})

	if cfg.Tracker.PreloadAssigned {
		worker.RunPreload(ctx, workService, preloadLimit, 30*time.Second, logger)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, cfg.Auth.Required)
	if !cfg.Auth.Required {
		logger.Warn("AUTH_REQUIRED=false; work routes are open and actions are recorded as anonymous")
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, registry.Len),
		WorkSessions:   handlers.NewWorkSessionsHandler(workService),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

// buildRepositories uses postgres when a pool is available and falls back to
// in-memory stores otherwise.
func buildRepositories(pg *persistence.Postgres, logger *zap.Logger) (repository.TicketRepository, repository.WorkLogRepository) {
	if pool := pg.PoolHandle(); pool != nil {
		return repository.NewTicketRepository(pool), repository.NewWorkLogRepository(pool)
	}
	logger.Warn("using in-memory ticket source and work log")
	return repository.NewMemoryTicketRepository(), repository.NewMemoryWorkLogRepository()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
