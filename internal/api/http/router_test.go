package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/worksession-tracker/internal/api/http/handlers"
	"github.com/spec-kit/worksession-tracker/internal/auth"
	"github.com/spec-kit/worksession-tracker/internal/clock"
	"github.com/spec-kit/worksession-tracker/internal/config"
	"github.com/spec-kit/worksession-tracker/internal/domain"
	"github.com/spec-kit/worksession-tracker/internal/events"
	"github.com/spec-kit/worksession-tracker/internal/observability"
	"github.com/spec-kit/worksession-tracker/internal/persistence"
	"github.com/spec-kit/worksession-tracker/internal/repository"
	"github.com/spec-kit/worksession-tracker/internal/service"
)

type testServer struct {
	app     *fiber.App
	clock   *clock.FakeClock
	tokens  *auth.TokenManager
	metrics *observability.Metrics
}

func newTestServer(t *testing.T, authRequired bool) *testServer {
	t.Helper()
	logger := zap.NewNop()
	clk := clock.Fake(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))
	metrics := observability.NewMetrics()
	tickets := repository.NewMemoryTicketRepository(
		domain.Ticket{ID: "T-1", Priority: domain.TicketPriorityHigh, ExpectedDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		domain.Ticket{ID: "T-2", Priority: domain.TicketPriorityLow},
	)
	workLog := repository.NewMemoryWorkLogRepository()
	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		WorkLog:    workLog,
		Logger:     logger,
		Config:     config.NotificationConfig{SupportQueue: "support"},
	}).RegisterHandlers()
	workService := service.NewWorkSessionService(service.WorkSessionDependencies{
		TicketRepo: tickets,
		WorkLog:    workLog,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Clock:      clk,
		Logger:     logger,
	})
	tokens := auth.NewTokenManager("test-secret", 10)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("worksession-tracker", "test", &persistence.Postgres{}, &persistence.Redis{}, nil),
		WorkSessions:   handlers.NewWorkSessionsHandler(workService),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, authRequired),
	})
	return &testServer{app: app, clock: clk, tokens: tokens, metrics: metrics}
}

func (s *testServer) token(t *testing.T, role domain.StaffRole) string {
	t.Helper()
	tok, _, err := s.tokens.GenerateToken("staff-"+string(role), domain.SubjectTypeStaff, &role)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp.StatusCode, body
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "missing data object: %v", body)
	return d
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestWorkSessionFlowOverHTTP(t *testing.T) {
	s := newTestServer(t, false)

	status, body := s.do(t, http.MethodPost, "/tickets/T-1/work/start", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "IN_PROGRESS", data(t, body)["state"])
	assert.Equal(t, "2025-06-01", data(t, body)["expected_date"])
	assert.Equal(t, true, data(t, body)["is_overdue"])

	s.clock.Advance(125 * time.Minute)
	status, body = s.do(t, http.MethodGet, "/tickets/T-1/work", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(125), data(t, body)["total_active_minutes"])
	assert.Equal(t, "2h 05m", data(t, body)["time_spent"])

	status, _ = s.do(t, http.MethodPost, "/tickets/T-1/work/pause", "")
	require.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodPost, "/tickets/T-1/work/send-to-support", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(body))

	s.clock.Advance(10 * time.Minute)
	status, _ = s.do(t, http.MethodPost, "/tickets/T-1/work/resume", "")
	require.Equal(t, http.StatusOK, status)
	status, body = s.do(t, http.MethodPost, "/tickets/T-1/work/complete", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "DEV_COMPLETED", data(t, body)["state"])
	assert.Equal(t, float64(10), data(t, body)["total_pause_minutes"])
	assert.Equal(t, false, data(t, body)["is_overdue"])

	status, body = s.do(t, http.MethodPost, "/tickets/T-1/work/send-to-support", "")
	require.Equal(t, http.StatusOK, status)
	d := data(t, body)
	assert.Equal(t, "DEV_COMPLETED", d["work"].(map[string]any)["state"])
	assert.Equal(t, float64(125), d["work"].(map[string]any)["total_active_minutes"])
	assert.Equal(t, false, d["notification"].(map[string]any)["delivered"])
	assert.Contains(t, d["notification"].(map[string]any)["error"], "support queue not configured")

	status, body = s.do(t, http.MethodGet, "/tickets/T-1/work/history", "")
	require.Equal(t, http.StatusOK, status)
	history, ok := body["data"].([]any)
	require.True(t, ok)
	assert.Len(t, history, 5)
}

func TestWorkSessionErrors(t *testing.T) {
	s := newTestServer(t, false)

	status, body := s.do(t, http.MethodPost, "/tickets/T-9/work/start", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "TICKET_NOT_FOUND", errorCode(body))

	status, body = s.do(t, http.MethodPost, "/tickets/T-2/work/pause", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "TICKET_NOT_FOUND", errorCode(body))

	status, _ = s.do(t, http.MethodPost, "/tickets/T-2/work/start", "")
	require.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodPost, "/tickets/T-2/work/start", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ALREADY_STARTED", errorCode(body))

	status, body = s.do(t, http.MethodPost, "/tickets/T-2/work/resume", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(body))

	status, _ = s.do(t, http.MethodPost, "/tickets/T-2/work/complete", "")
	require.Equal(t, http.StatusOK, status)
	status, body = s.do(t, http.MethodPost, "/tickets/T-2/work/pause", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "TERMINAL_STATE", errorCode(body))

	status, body = s.do(t, http.MethodGet, "/tickets/T-2/work/history?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	transitions := s.metrics.Snapshot().Transitions
	assert.Equal(t, int64(1), transitions["START|ALREADY_STARTED"])
	assert.Equal(t, int64(1), transitions["PAUSE|TERMINAL_STATE"])
}

func TestListAndArchive(t *testing.T) {
	s := newTestServer(t, false)

	for _, path := range []string{"/tickets/T-1/work/assign", "/tickets/T-2/work/assign"} {
		status, body := s.do(t, http.MethodPost, path, "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "ASSIGNED", data(t, body)["state"])
	}

	status, body := s.do(t, http.MethodGet, "/tickets/work", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 2)

	status, body = s.do(t, http.MethodGet, "/tickets/work?overdue=true", "")
	require.Equal(t, http.StatusOK, status)
	items := body["data"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "T-1", items[0].(map[string]any)["ticket_id"])

	status, _ = s.do(t, http.MethodDelete, "/tickets/T-1/work", "")
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = s.do(t, http.MethodGet, "/tickets/T-1/work", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAuthRequiredRoutes(t *testing.T) {
	s := newTestServer(t, true)

	status, body := s.do(t, http.MethodPost, "/tickets/T-1/work/start", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	agent := s.token(t, domain.StaffRoleAgent)
	status, _ = s.do(t, http.MethodPost, "/tickets/T-1/work/start", agent)
	assert.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodPost, "/tickets/T-2/work/assign", agent)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	lead := s.token(t, domain.StaffRoleTeamLead)
	status, _ = s.do(t, http.MethodPost, "/tickets/T-2/work/assign", lead)
	assert.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodGet, "/tickets/T-1/work/history", agent)
	require.Equal(t, http.StatusOK, status)
	entries := body["data"].([]any)
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]any)
	assert.Equal(t, "STAFF", entry["actor_type"])
	assert.Equal(t, "staff-AGENT", entry["actor_id"])
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, false)

	status, body := s.do(t, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, status)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "disabled", deps["postgres"])
	assert.Equal(t, "disabled", deps["redis"])

	status, body = s.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, status)
	requests := data(t, body)["requests"].(map[string]any)
	assert.Equal(t, float64(1), requests["/health/live|GET|200"])
}
