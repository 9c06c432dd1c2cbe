package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type memoryRequest struct {
	Content string `json:"content"`
}

// CreateMemory stores a personalization memory for the caller.
// (POST /api/v1/memories)
func (s *Server) CreateMemory(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	var req memoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if strings.TrimSpace(req.Content) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}

	entry, err := s.Memory.Remember(c.Request().Context(), tenantID, userID, req.Content)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, entry)
}

// ListMemories returns all of the caller's memories.
// (GET /api/v1/memories)
func (s *Server) ListMemories(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	entries, err := s.Memory.List(c.Request().Context(), tenantID, userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

// SearchMemories recalls memories semantically similar to the query.
// (GET /api/v1/memories/search)
func (s *Server) SearchMemories(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	query := c.QueryParam("q")
	if strings.TrimSpace(query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	entries, err := s.Memory.Recall(c.Request().Context(), tenantID, userID, query, 10)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

type feedbackRequest struct {
	Confidence float64 `json:"confidence"`
}

// MemoryFeedback adjusts a memory's confidence.
// (POST /api/v1/memories/:id/feedback)
func (s *Server) MemoryFeedback(c echo.Context) error {
	tenantID, _, err := identity(c)
	if err != nil {
		return err
	}
	var req feedbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "confidence must be between 0 and 1")
	}
	if err := s.Memory.GiveFeedback(c.Request().Context(), tenantID, c.Param("id"), req.Confidence); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
