package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/worksession-tracker/internal/api/http/handlers"
	"github.com/spec-kit/worksession-tracker/internal/auth"
	"github.com/spec-kit/worksession-tracker/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	WorkSessions   *handlers.WorkSessionsHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Get)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Get("/work", cfg.WorkSessions.List)
	tickets.Get("/:id/work", cfg.WorkSessions.Get)
	tickets.Get("/:id/work/history", cfg.WorkSessions.History)

	tickets.Post("/:id/work/start", cfg.WorkSessions.Start)
	tickets.Post("/:id/work/pause", cfg.WorkSessions.Pause)
	tickets.Post("/:id/work/resume", cfg.WorkSessions.Resume)
	tickets.Post("/:id/work/complete", cfg.WorkSessions.Complete)
	tickets.Post("/:id/work/send-to-support", cfg.WorkSessions.SendToSupport)

	leads := leadGuard(cfg.AuthMiddleware)
	tickets.Post("/:id/work/assign", leads, cfg.WorkSessions.Assign)
	tickets.Delete("/:id/work", leads, cfg.WorkSessions.Archive)
}

// leadGuard restricts assignment routes to team leads and admins. With
// authentication disabled the routes are open.
func leadGuard(m *auth.AuthMiddleware) fiber.Handler {
	if !m.Required() {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return auth.RequireStaffRole(domain.StaffRoleTeamLead, domain.StaffRoleAdmin)
}
