package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/driveworks/drivehub/pkg/models"
)

// taskListFor resolves the TASK_LIST page and checks drive access.
func (s *Server) taskListFor(c echo.Context, tenantID, userID, pageID string, needEdit bool) (*models.TaskList, *models.Page, error) {
	page, err := s.Repo.GetPage(c.Request().Context(), tenantID, pageID)
	if err != nil {
		return nil, nil, httpError(err)
	}
	if page.Type != models.PageTypeTaskList {
		return nil, nil, echo.NewHTTPError(http.StatusBadRequest, "page is not a task list")
	}
	if needEdit {
		if err := s.requireEditor(c, page.DriveID, userID); err != nil {
			return nil, nil, err
		}
	} else if _, err := s.memberRole(c, page.DriveID, userID); err != nil {
		return nil, nil, err
	}
	list, err := s.Repo.GetTaskListByPage(c.Request().Context(), page.ID)
	if err != nil {
		return nil, nil, httpError(err)
	}
	return list, page, nil
}

// ListTasks returns the items of a task list page.
// (GET /api/v1/pages/:id/tasks)
func (s *Server) ListTasks(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	list, _, err := s.taskListFor(c, tenantID, userID, c.Param("id"), false)
	if err != nil {
		return err
	}
	items, err := s.Repo.ListTaskItems(c.Request().Context(), list.ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

type taskRequest struct {
	Title      string     `json:"title"`
	Status     string     `json:"status"`
	AssigneeID *string    `json:"assignee_id"`
	DueDate    *time.Time `json:"due_date"`
	Position   *float64   `json:"position"`
}

// CreateTask adds an item to a task list page.
// (POST /api/v1/pages/:id/tasks)
func (s *Server) CreateTask(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	list, page, err := s.taskListFor(c, tenantID, userID, c.Param("id"), true)
	if err != nil {
		return err
	}

	var req taskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if strings.TrimSpace(req.Title) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}

	item := &models.TaskItem{
		TaskListID: list.ID,
		Title:      req.Title,
		Status:     models.TaskStatusTodo,
		AssigneeID: req.AssigneeID,
		DueDate:    req.DueDate,
		CreatedBy:  userID,
	}
	if req.Status != "" {
		status := models.TaskStatus(req.Status)
		if !models.ValidTaskStatus(status) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid task status")
		}
		item.Status = status
	}
	if req.Position != nil {
		item.Position = *req.Position
	}

	if err := s.Repo.CreateTaskItem(c.Request().Context(), item); err != nil {
		return httpError(err)
	}
	s.publishPageEvent(page.DriveID, "task.created", page.ID)
	return c.JSON(http.StatusCreated, item)
}

// taskWithAccess loads a task item and checks edit access through its
// task list's page.
func (s *Server) taskWithAccess(c echo.Context, tenantID, userID, taskID string) (*models.TaskItem, error) {
	item, err := s.Repo.GetTaskItem(c.Request().Context(), taskID)
	if err != nil {
		return nil, httpError(err)
	}
	list, err := s.Repo.GetTaskList(c.Request().Context(), item.TaskListID)
	if err != nil {
		return nil, httpError(err)
	}
	page, err := s.Repo.GetPage(c.Request().Context(), tenantID, list.PageID)
	if err != nil {
		return nil, httpError(err)
	}
	if err := s.requireEditor(c, page.DriveID, userID); err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateTask edits a task item's fields.
// (PUT /api/v1/tasks/:taskID)
func (s *Server) UpdateTask(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	item, err := s.taskWithAccess(c, tenantID, userID, c.Param("taskID"))
	if err != nil {
		return err
	}

	var req taskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	if req.Title != "" {
		item.Title = req.Title
	}
	if req.Status != "" {
		status := models.TaskStatus(req.Status)
		if !models.ValidTaskStatus(status) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid task status")
		}
		item.Status = status
	}
	item.AssigneeID = req.AssigneeID
	item.DueDate = req.DueDate
	if req.Position != nil {
		item.Position = *req.Position
	}

	if err := s.Repo.UpdateTaskItem(c.Request().Context(), item); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

type taskStatusRequest struct {
	Status models.TaskStatus `json:"status"`
}

// UpdateTaskStatus transitions a single task's status.
// (PUT /api/v1/tasks/:taskID/status)
func (s *Server) UpdateTaskStatus(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	var req taskStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if !models.ValidTaskStatus(req.Status) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid task status")
	}
	item, err := s.taskWithAccess(c, tenantID, userID, c.Param("taskID"))
	if err != nil {
		return err
	}
	if err := s.Repo.UpdateTaskStatus(c.Request().Context(), item.ID, req.Status); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteTask removes a task item.
// (DELETE /api/v1/tasks/:taskID)
func (s *Server) DeleteTask(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	item, err := s.taskWithAccess(c, tenantID, userID, c.Param("taskID"))
	if err != nil {
		return err
	}
	if err := s.Repo.DeleteTaskItem(c.Request().Context(), item.ID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type batchStatusRequest struct {
	Updates []struct {
		TaskID string            `json:"task_id"`
		Status models.TaskStatus `json:"status"`
	} `json:"updates"`
}

type batchResult struct {
	TaskID string `json:"task_id"`
	Status int    `json:"status"`
	Error  string `json:"error,omitempty"`
}

// BatchUpdateTasks applies status changes to many tasks at once. Partial
// failure returns 207 with a per-item result list.
// (POST /api/v1/pages/:id/tasks/batch)
func (s *Server) BatchUpdateTasks(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	list, _, err := s.taskListFor(c, tenantID, userID, c.Param("id"), true)
	if err != nil {
		return err
	}

	var req batchStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if len(req.Updates) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "updates is empty")
	}

	results := make([]batchResult, 0, len(req.Updates))
	failures := 0
	for _, u := range req.Updates {
		res := batchResult{TaskID: u.TaskID, Status: http.StatusNoContent}
		switch {
		case !models.ValidTaskStatus(u.Status):
			res.Status = http.StatusBadRequest
			res.Error = "invalid task status"
		default:
			item, err := s.Repo.GetTaskItem(c.Request().Context(), u.TaskID)
			switch {
			case err != nil:
				res.Status = http.StatusNotFound
				res.Error = "task not found"
			case item.TaskListID != list.ID:
				res.Status = http.StatusNotFound
				res.Error = "task not in this list"
			default:
				if err := s.Repo.UpdateTaskStatus(c.Request().Context(), u.TaskID, u.Status); err != nil {
					res.Status = http.StatusInternalServerError
					res.Error = "update failed"
				}
			}
		}
		if res.Status >= 400 {
			failures++
		}
		results = append(results, res)
	}

	status := http.StatusOK
	if failures > 0 {
		status = http.StatusMultiStatus
	}
	return c.JSON(status, map[string]any{"results": results})
}
