package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/driveworks/drivehub/pkg/models"
)

type workflowStepRequest struct {
	StepOrder         int             `json:"step_order"`
	Name              string          `json:"name"`
	AgentID           string          `json:"agent_id"`
	PromptTemplate    string          `json:"prompt_template"`
	RequiresUserInput bool            `json:"requires_user_input"`
	InputSchema       json.RawMessage `json:"input_schema"`
}

type workflowTemplateRequest struct {
	Name        string                `json:"name"`
	Description *string               `json:"description"`
	Steps       []workflowStepRequest `json:"steps"`
}

// validateSteps enforces the template invariants: at least one step, step
// orders unique and sequential from 0, and every agent a live AI_CHAT page
// in the same drive.
func (s *Server) validateSteps(c echo.Context, tenantID, driveID string, steps []workflowStepRequest) error {
	if len(steps) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "a template needs at least one step")
	}

	seen := make(map[int]bool, len(steps))
	for _, st := range steps {
		if st.StepOrder < 0 || st.StepOrder >= len(steps) || seen[st.StepOrder] {
			return echo.NewHTTPError(http.StatusBadRequest,
				"step orders must be unique and sequential starting at 0")
		}
		seen[st.StepOrder] = true

		if strings.TrimSpace(st.Name) == "" {
			return echo.NewHTTPError(http.StatusBadRequest,
				"step "+strconv.Itoa(st.StepOrder)+" has no name")
		}
		if strings.TrimSpace(st.PromptTemplate) == "" {
			return echo.NewHTTPError(http.StatusBadRequest,
				"step "+strconv.Itoa(st.StepOrder)+" has no prompt template")
		}

		page, err := s.Repo.GetPage(c.Request().Context(), tenantID, st.AgentID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("step %d references unknown agent %q", st.StepOrder, st.AgentID))
		}
		if page.Type != models.PageTypeAIChat || page.DriveID != driveID {
			return echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("step %d agent must be an AI chat page in this drive", st.StepOrder))
		}

		if len(st.InputSchema) > 0 {
			var doc map[string]any
			if err := json.Unmarshal(st.InputSchema, &doc); err != nil {
				return echo.NewHTTPError(http.StatusBadRequest,
					fmt.Sprintf("step %d input schema is not a JSON object", st.StepOrder))
			}
		}
	}
	return nil
}

func buildSteps(reqs []workflowStepRequest) []*models.WorkflowStep {
	steps := make([]*models.WorkflowStep, 0, len(reqs))
	for _, r := range reqs {
		steps = append(steps, &models.WorkflowStep{
			StepOrder:         r.StepOrder,
			Name:              r.Name,
			AgentID:           r.AgentID,
			PromptTemplate:    r.PromptTemplate,
			RequiresUserInput: r.RequiresUserInput,
			InputSchema:       r.InputSchema,
		})
	}
	return steps
}

// CreateWorkflowTemplate creates a template with its steps.
// (POST /api/v1/drives/:id/workflows)
func (s *Server) CreateWorkflowTemplate(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	driveID := c.Param("id")
	if err := s.requireManager(c, driveID, userID); err != nil {
		return err
	}

	var req workflowTemplateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if strings.TrimSpace(req.Name) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if err := s.validateSteps(c, tenantID, driveID, req.Steps); err != nil {
		return err
	}

	tpl := &models.WorkflowTemplate{
		DriveID:     driveID,
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   userID,
		Steps:       buildSteps(req.Steps),
	}
	if err := s.Repo.CreateTemplate(c.Request().Context(), tpl); err != nil {
		return httpError(err)
	}
	s.audit(c, tenantID, userID, "workflow.template.create", "workflow_template", tpl.ID)
	return c.JSON(http.StatusCreated, tpl)
}

// ListWorkflowTemplates lists the templates of a drive.
// (GET /api/v1/drives/:id/workflows)
func (s *Server) ListWorkflowTemplates(c echo.Context) error {
	_, userID, err := identity(c)
	if err != nil {
		return err
	}
	driveID := c.Param("id")
	if _, err := s.memberRole(c, driveID, userID); err != nil {
		return err
	}
	tpls, err := s.Repo.ListTemplates(c.Request().Context(), driveID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tpls)
}

// GetWorkflowTemplate returns a template with its steps.
// (GET /api/v1/workflows/:id)
func (s *Server) GetWorkflowTemplate(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	tpl, err := s.Repo.GetTemplate(c.Request().Context(), tenantID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if _, err := s.memberRole(c, tpl.DriveID, userID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tpl)
}

// UpdateWorkflowTemplate replaces a template's metadata and steps. Running
// executions keep their snapshot.
// (PUT /api/v1/workflows/:id)
func (s *Server) UpdateWorkflowTemplate(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	tpl, err := s.Repo.GetTemplate(c.Request().Context(), tenantID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if err := s.requireManager(c, tpl.DriveID, userID); err != nil {
		return err
	}

	var req workflowTemplateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if strings.TrimSpace(req.Name) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if err := s.validateSteps(c, tenantID, tpl.DriveID, req.Steps); err != nil {
		return err
	}

	tpl.Name = req.Name
	tpl.Description = req.Description
	tpl.Steps = buildSteps(req.Steps)
	if err := s.Repo.UpdateTemplate(c.Request().Context(), tpl); err != nil {
		return httpError(err)
	}
	s.audit(c, tenantID, userID, "workflow.template.update", "workflow_template", tpl.ID)
	return c.JSON(http.StatusOK, tpl)
}

// DeleteWorkflowTemplate deletes a template unless executions are still
// active against it.
// (DELETE /api/v1/workflows/:id)
func (s *Server) DeleteWorkflowTemplate(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	tpl, err := s.Repo.GetTemplate(c.Request().Context(), tenantID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if err := s.requireManager(c, tpl.DriveID, userID); err != nil {
		return err
	}
	if err := s.Repo.DeleteTemplate(c.Request().Context(), tenantID, tpl.ID); err != nil {
		return httpError(err)
	}
	s.audit(c, tenantID, userID, "workflow.template.delete", "workflow_template", tpl.ID)
	return c.NoContent(http.StatusNoContent)
}

type startExecutionRequest struct {
	InitialContext map[string]any `json:"initial_context"`
}

// StartExecution creates and runs an execution of a template. The response
// reflects wherever the run settled: paused, completed, or failed.
// (POST /api/v1/workflows/:id/executions)
func (s *Server) StartExecution(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	tpl, err := s.Repo.GetTemplate(c.Request().Context(), tenantID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if err := s.requireEditor(c, tpl.DriveID, userID); err != nil {
		return err
	}

	var req startExecutionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	state, err := s.Engine.CreateExecution(c.Request().Context(), tenantID, tpl.DriveID,
		tpl.ID, userID, req.InitialContext)
	if err != nil {
		return httpError(err)
	}
	s.audit(c, tenantID, userID, "workflow.execution.start", "workflow_execution", state.Execution.ID)
	return c.JSON(http.StatusCreated, state)
}

// ListExecutions lists recent executions of a drive.
// (GET /api/v1/drives/:id/executions)
func (s *Server) ListExecutions(c echo.Context) error {
	_, userID, err := identity(c)
	if err != nil {
		return err
	}
	driveID := c.Param("id")
	if _, err := s.memberRole(c, driveID, userID); err != nil {
		return err
	}
	execs, err := s.Repo.ListExecutions(c.Request().Context(), driveID, 50)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, execs)
}

// GetExecution returns the full execution state with progress.
// (GET /api/v1/executions/:id)
func (s *Server) GetExecution(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	state, err := s.Engine.GetExecutionState(c.Request().Context(), tenantID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if _, err := s.memberRole(c, state.Execution.DriveID, userID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, state)
}

type executionInputRequest struct {
	Input json.RawMessage `json:"input"`
}

// SubmitExecutionInput provides the input a paused step is waiting for and
// resumes the execution.
// (POST /api/v1/executions/:id/input)
func (s *Server) SubmitExecutionInput(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	state, err := s.Engine.GetExecutionState(c.Request().Context(), tenantID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if err := s.requireEditor(c, state.Execution.DriveID, userID); err != nil {
		return err
	}

	var req executionInputRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if len(req.Input) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "input is required")
	}

	state, err = s.Engine.SubmitUserInput(c.Request().Context(), tenantID, state.Execution.ID, req.Input)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, state)
}

// CancelExecution cancels a running or paused execution.
// (POST /api/v1/executions/:id/cancel)
func (s *Server) CancelExecution(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	state, err := s.Engine.GetExecutionState(c.Request().Context(), tenantID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if err := s.requireEditor(c, state.Execution.DriveID, userID); err != nil {
		return err
	}

	state, err = s.Engine.Cancel(c.Request().Context(), tenantID, state.Execution.ID)
	if err != nil {
		return httpError(err)
	}
	s.audit(c, tenantID, userID, "workflow.execution.cancel", "workflow_execution", state.Execution.ID)
	return c.JSON(http.StatusOK, state)
}
