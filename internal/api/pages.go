package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/driveworks/drivehub/pkg/models"
)

type createPageRequest struct {
	ParentID   *string         `json:"parent_id"`
	Type       models.PageType `json:"type"`
	Title      string          `json:"title"`
	Content    string          `json:"content"`
	Properties json.RawMessage `json:"properties"`
	Position   float64         `json:"position"`
}

// CreatePage creates a page in a drive. TASK_LIST pages get their task
// metadata row in the same transaction.
// (POST /api/v1/drives/:id/pages)
func (s *Server) CreatePage(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	driveID := c.Param("id")
	if err := s.requireEditor(c, driveID, userID); err != nil {
		return err
	}

	var req createPageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if !models.ValidPageType(req.Type) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid page type")
	}
	if strings.TrimSpace(req.Title) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	if req.ParentID != nil {
		parent, err := s.Repo.GetPage(c.Request().Context(), tenantID, *req.ParentID)
		if err != nil {
			return httpError(err)
		}
		if parent.DriveID != driveID {
			return echo.NewHTTPError(http.StatusBadRequest, "parent page belongs to another drive")
		}
	}

	page := &models.Page{
		DriveID:    driveID,
		TenantID:   tenantID,
		ParentID:   req.ParentID,
		Type:       req.Type,
		Title:      req.Title,
		Content:    req.Content,
		Properties: req.Properties,
		Position:   req.Position,
		CreatedBy:  userID,
	}

	ctx := c.Request().Context()
	if req.Type == models.PageTypeTaskList {
		err = s.Repo.CreateTaskListPage(ctx, page, &models.TaskList{})
	} else {
		err = s.Repo.CreatePage(ctx, page)
	}
	if err != nil {
		return httpError(err)
	}

	s.audit(c, tenantID, userID, "page.create", "page", page.ID)
	s.publishPageEvent(driveID, "page.created", page.ID)
	return c.JSON(http.StatusCreated, page)
}

// ListPages lists pages of a drive, optionally filtered by parent and type.
// (GET /api/v1/drives/:id/pages)
func (s *Server) ListPages(c echo.Context) error {
	_, userID, err := identity(c)
	if err != nil {
		return err
	}
	driveID := c.Param("id")
	if _, err := s.memberRole(c, driveID, userID); err != nil {
		return err
	}

	var parentID *string
	if v := c.QueryParam("parent"); v != "" {
		parentID = &v
	}
	var pageType *models.PageType
	if v := c.QueryParam("type"); v != "" {
		pt := models.PageType(v)
		if !models.ValidPageType(pt) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid page type filter")
		}
		pageType = &pt
	}

	pages, err := s.Repo.ListPages(c.Request().Context(), driveID, parentID, pageType)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pages)
}

// GetPage returns one page.
// (GET /api/v1/pages/:id)
func (s *Server) GetPage(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	page, err := s.Repo.GetPage(c.Request().Context(), tenantID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if _, err := s.memberRole(c, page.DriveID, userID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

type updateContentRequest struct {
	Content  string `json:"content"`
	Revision *int   `json:"revision"`
}

// UpdatePageContent applies an edit with optimistic concurrency: the caller
// must send the revision it read. A missing revision is a 428, a stale one
// a 409.
// (PUT /api/v1/pages/:id/content)
func (s *Server) UpdatePageContent(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}

	var req updateContentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if req.Revision == nil {
		return echo.NewHTTPError(http.StatusPreconditionRequired, "revision is required")
	}

	page, err := s.Repo.GetPage(c.Request().Context(), tenantID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if err := s.requireEditor(c, page.DriveID, userID); err != nil {
		return err
	}

	updated, err := s.Repo.UpdatePageContent(c.Request().Context(), tenantID, page.ID, req.Content, *req.Revision)
	if err != nil {
		return httpError(err)
	}

	s.audit(c, tenantID, userID, "page.update", "page", page.ID)
	s.publishPageEvent(page.DriveID, "page.updated", page.ID)
	return c.JSON(http.StatusOK, updated)
}

type renameRequest struct {
	Title string `json:"title"`
}

// RenamePage changes a page title.
// (PUT /api/v1/pages/:id/rename)
func (s *Server) RenamePage(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	var req renameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if strings.TrimSpace(req.Title) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}

	page, err := s.Repo.GetPage(c.Request().Context(), tenantID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if err := s.requireEditor(c, page.DriveID, userID); err != nil {
		return err
	}
	if err := s.Repo.RenamePage(c.Request().Context(), tenantID, page.ID, req.Title); err != nil {
		return httpError(err)
	}

	s.publishPageEvent(page.DriveID, "page.renamed", page.ID)
	return c.NoContent(http.StatusNoContent)
}

type moveRequest struct {
	ParentID *string `json:"parent_id"`
	Position float64 `json:"position"`
}

// MovePage reparents and repositions a page within its drive.
// (PUT /api/v1/pages/:id/move)
func (s *Server) MovePage(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	var req moveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	page, err := s.Repo.GetPage(c.Request().Context(), tenantID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if err := s.requireEditor(c, page.DriveID, userID); err != nil {
		return err
	}

	if req.ParentID != nil {
		if *req.ParentID == page.ID {
			return echo.NewHTTPError(http.StatusBadRequest, "a page cannot be its own parent")
		}
		parent, err := s.Repo.GetPage(c.Request().Context(), tenantID, *req.ParentID)
		if err != nil {
			return httpError(err)
		}
		if parent.DriveID != page.DriveID {
			return echo.NewHTTPError(http.StatusBadRequest, "cannot move across drives")
		}
	}

	if err := s.Repo.MovePage(c.Request().Context(), tenantID, page.ID, req.ParentID, req.Position); err != nil {
		return httpError(err)
	}
	s.publishPageEvent(page.DriveID, "page.moved", page.ID)
	return c.NoContent(http.StatusNoContent)
}

// UpdatePageProperties replaces the page's properties document. For AI_CHAT
// pages this is where the agent configuration lives.
// (PUT /api/v1/pages/:id/properties)
func (s *Server) UpdatePageProperties(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}

	var props json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&props); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid properties document: "+err.Error())
	}

	page, err := s.Repo.GetPage(c.Request().Context(), tenantID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if err := s.requireEditor(c, page.DriveID, userID); err != nil {
		return err
	}

	if page.Type == models.PageTypeAIChat {
		var cfg models.AgentConfig
		if err := json.Unmarshal(props, &cfg); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid agent configuration: "+err.Error())
		}
	}

	if err := s.Repo.UpdatePageProperties(c.Request().Context(), tenantID, page.ID, props); err != nil {
		return httpError(err)
	}
	s.audit(c, tenantID, userID, "page.properties", "page", page.ID)
	return c.NoContent(http.StatusNoContent)
}

// TrashPage soft-deletes a page.
// (POST /api/v1/pages/:id/trash)
func (s *Server) TrashPage(c echo.Context) error {
	return s.setTrashed(c, true)
}

// RestorePage restores a trashed page.
// (POST /api/v1/pages/:id/restore)
func (s *Server) RestorePage(c echo.Context) error {
	return s.setTrashed(c, false)
}

func (s *Server) setTrashed(c echo.Context, trash bool) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	page, err := s.Repo.GetPage(c.Request().Context(), tenantID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if err := s.requireEditor(c, page.DriveID, userID); err != nil {
		return err
	}

	action := "page.trash"
	event := "page.trashed"
	op := s.Repo.TrashPage
	if !trash {
		action = "page.restore"
		event = "page.restored"
		op = s.Repo.RestorePage
	}
	if err := op(c.Request().Context(), tenantID, page.ID); err != nil {
		return httpError(err)
	}
	s.audit(c, tenantID, userID, action, "page", page.ID)
	s.publishPageEvent(page.DriveID, event, page.ID)
	return c.NoContent(http.StatusNoContent)
}

// ListTrash lists trashed pages of a drive.
// (GET /api/v1/drives/:id/trash)
func (s *Server) ListTrash(c echo.Context) error {
	_, userID, err := identity(c)
	if err != nil {
		return err
	}
	driveID := c.Param("id")
	if _, err := s.memberRole(c, driveID, userID); err != nil {
		return err
	}
	pages, err := s.Repo.ListTrash(c.Request().Context(), driveID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pages)
}

// SearchPages searches titles and content within a drive.
// (GET /api/v1/drives/:id/search)
func (s *Server) SearchPages(c echo.Context) error {
	_, userID, err := identity(c)
	if err != nil {
		return err
	}
	driveID := c.Param("id")
	if _, err := s.memberRole(c, driveID, userID); err != nil {
		return err
	}
	query := c.QueryParam("q")
	if strings.TrimSpace(query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	pages, err := s.Repo.SearchPages(c.Request().Context(), driveID, query, 25)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pages)
}

func (s *Server) publishPageEvent(driveID, eventType, pageID string) {
	if s.Hub == nil {
		return
	}
	s.Hub.Publish("drive:"+driveID, map[string]string{
		"type":    eventType,
		"page_id": pageID,
	})
}
