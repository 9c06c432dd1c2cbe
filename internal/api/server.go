// Package api contains the HTTP handlers for the drivehub service.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/driveworks/drivehub/internal/agent"
	"github.com/driveworks/drivehub/internal/auth"
	"github.com/driveworks/drivehub/internal/billing"
	"github.com/driveworks/drivehub/internal/calendar"
	"github.com/driveworks/drivehub/internal/config"
	"github.com/driveworks/drivehub/internal/realtime"
	"github.com/driveworks/drivehub/internal/repository"
	"github.com/driveworks/drivehub/internal/services"
	"github.com/driveworks/drivehub/internal/workflow"
	"github.com/driveworks/drivehub/pkg/models"
)

// Logger is the logging interface the server depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Server holds the dependencies for the API server.
type Server struct {
	Repo    repository.Repository
	Engine  *workflow.Engine
	Runner  *agent.Runner
	Memory  *services.MemoryService
	Billing *billing.Service
	Cal     *calendar.Client
	Syncer  *calendar.Syncer
	Hub     *realtime.Hub
	Auth    *auth.Auth
	Cfg     *config.Config
	Logger  Logger
}

// RegisterRoutes attaches middleware and all routes to the echo instance.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.Use(otelecho.Middleware("drivehub"))
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = s.problemHandler

	e.GET("/healthz", s.HandleHealth)

	e.GET("/login", echo.WrapHandler(http.HandlerFunc(s.Auth.LoginHandler)))
	e.GET("/auth/callback", echo.WrapHandler(http.HandlerFunc(s.Auth.CallbackHandler)))
	e.GET("/logout", echo.WrapHandler(http.HandlerFunc(s.Auth.LogoutHandler)))

	// Stripe calls this with its own signature scheme, not a user credential.
	e.POST("/stripe/webhook", s.HandleStripeWebhook)

	authed := echo.WrapMiddleware(s.Auth.RequireAuth)

	e.GET("/ws", s.HandleWS, authed)

	v1 := e.Group("/api/v1", authed)

	v1.POST("/drives", s.CreateDrive)
	v1.GET("/drives", s.ListDrives)
	v1.GET("/drives/:id", s.GetDrive)
	v1.PUT("/drives/:id", s.UpdateDrive)
	v1.DELETE("/drives/:id", s.DeleteDrive)
	v1.GET("/drives/:id/members", s.ListDriveMembers)
	v1.PUT("/drives/:id/members", s.UpsertDriveMember)
	v1.DELETE("/drives/:id/members/:userID", s.RemoveDriveMember)

	v1.POST("/drives/:id/pages", s.CreatePage)
	v1.GET("/drives/:id/pages", s.ListPages)
	v1.GET("/drives/:id/trash", s.ListTrash)
	v1.GET("/drives/:id/search", s.SearchPages)
	v1.GET("/pages/:id", s.GetPage)
	v1.PUT("/pages/:id/content", s.UpdatePageContent)
	v1.PUT("/pages/:id/rename", s.RenamePage)
	v1.PUT("/pages/:id/move", s.MovePage)
	v1.PUT("/pages/:id/properties", s.UpdatePageProperties)
	v1.POST("/pages/:id/trash", s.TrashPage)
	v1.POST("/pages/:id/restore", s.RestorePage)

	v1.GET("/pages/:id/tasks", s.ListTasks)
	v1.POST("/pages/:id/tasks", s.CreateTask)
	v1.POST("/pages/:id/tasks/batch", s.BatchUpdateTasks)
	v1.PUT("/tasks/:taskID", s.UpdateTask)
	v1.PUT("/tasks/:taskID/status", s.UpdateTaskStatus)
	v1.DELETE("/tasks/:taskID", s.DeleteTask)

	v1.GET("/pages/:id/conversations", s.ListConversations)
	v1.GET("/conversations/:id/messages", s.ListMessages)
	v1.POST("/pages/:id/chat", s.Chat)

	v1.POST("/drives/:id/workflows", s.CreateWorkflowTemplate)
	v1.GET("/drives/:id/workflows", s.ListWorkflowTemplates)
	v1.GET("/workflows/:id", s.GetWorkflowTemplate)
	v1.PUT("/workflows/:id", s.UpdateWorkflowTemplate)
	v1.DELETE("/workflows/:id", s.DeleteWorkflowTemplate)
	v1.POST("/workflows/:id/executions", s.StartExecution)
	v1.GET("/drives/:id/executions", s.ListExecutions)
	v1.GET("/executions/:id", s.GetExecution)
	v1.POST("/executions/:id/input", s.SubmitExecutionInput)
	v1.POST("/executions/:id/cancel", s.CancelExecution)

	v1.GET("/billing/subscription", s.GetSubscription)
	v1.POST("/billing/checkout", s.CreateCheckout)

	v1.GET("/calendar/connect", s.ConnectCalendar)
	v1.GET("/calendar/callback", s.CalendarCallback)
	v1.POST("/calendar/sync", s.SyncCalendar)
	v1.GET("/calendar/events", s.ListCalendarEvents)

	v1.POST("/memories", s.CreateMemory)
	v1.GET("/memories", s.ListMemories)
	v1.GET("/memories/search", s.SearchMemories)
	v1.POST("/memories/:id/feedback", s.MemoryFeedback)

	v1.POST("/tokens", s.CreateToken)
	v1.GET("/tokens", s.ListTokens)
	v1.DELETE("/tokens/:id", s.RevokeToken)
}

// HandleHealth returns basic health status (always returns 200 OK)
func (s *Server) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "drivehub",
		Version:   "1.0.0",
	})
}

// problemHandler renders every error as an RFC 7807 problem document.
func (s *Server) problemHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	title := "Internal Server Error"
	detail := err.Error()

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		title = http.StatusText(he.Code)
		if msg, ok := he.Message.(string); ok {
			detail = msg
		}
	}

	if status >= 500 {
		s.Logger.Error("request failed", "method", c.Request().Method,
			"path", c.Path(), "error", err)
		// Internal details stay in the log.
		detail = "an internal error occurred"
	}

	problem := models.ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	_ = c.JSON(status, problem)
}

// httpError maps domain errors onto HTTP status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	case errors.Is(err, repository.ErrStaleRevision):
		return echo.NewHTTPError(http.StatusConflict, "page was modified by someone else; reload and retry")
	case errors.Is(err, repository.ErrDuplicate):
		return echo.NewHTTPError(http.StatusConflict, "resource already exists")
	case errors.Is(err, repository.ErrActiveExecutions):
		return echo.NewHTTPError(http.StatusConflict, "template has active executions")
	case errors.Is(err, workflow.ErrTemplateEmpty):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, workflow.ErrInputRejected):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, workflow.ErrNotAwaitingInput):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, workflow.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, billing.ErrExecutionLimit):
		return echo.NewHTTPError(http.StatusPaymentRequired, err.Error())
	case errors.Is(err, agent.ErrNotAgent):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}

// identity pulls the authenticated tenant and user out of the request.
func identity(c echo.Context) (tenantID, userID string, err error) {
	ctx := c.Request().Context()
	tenantID = auth.TenantID(ctx)
	userID = auth.UserID(ctx)
	if tenantID == "" || userID == "" {
		return "", "", echo.NewHTTPError(http.StatusUnauthorized, "missing identity")
	}
	return tenantID, userID, nil
}

// memberRole loads the caller's membership in a drive; absence is a 403.
func (s *Server) memberRole(c echo.Context, driveID, userID string) (models.Role, error) {
	member, err := s.Repo.GetDriveMember(c.Request().Context(), driveID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", echo.NewHTTPError(http.StatusForbidden, "not a member of this drive")
		}
		return "", err
	}
	return member.Role, nil
}

// requireEditor ensures the caller can modify drive content.
func (s *Server) requireEditor(c echo.Context, driveID, userID string) error {
	role, err := s.memberRole(c, driveID, userID)
	if err != nil {
		return err
	}
	if !role.CanEdit() {
		return echo.NewHTTPError(http.StatusForbidden, "viewer role cannot modify content")
	}
	return nil
}

// requireManager ensures the caller can administer the drive.
func (s *Server) requireManager(c echo.Context, driveID, userID string) error {
	role, err := s.memberRole(c, driveID, userID)
	if err != nil {
		return err
	}
	if !role.CanManage() {
		return echo.NewHTTPError(http.StatusForbidden, "requires owner or admin role")
	}
	return nil
}

// audit records a mutating action; failures are logged, not surfaced.
func (s *Server) audit(c echo.Context, tenantID, actorID, action, resourceType, resourceID string) {
	entry := &models.AuditEntry{
		TenantID:     tenantID,
		ActorID:      actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
	if err := s.Repo.CreateAudit(c.Request().Context(), entry); err != nil {
		s.Logger.Warn("failed to record audit entry", "action", action, "error", err)
	}
}
