package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/driveworks/drivehub/pkg/models"
)

// ListConversations returns the non-synthetic conversations of an AI_CHAT
// page.
// (GET /api/v1/pages/:id/conversations)
func (s *Server) ListConversations(c echo.Context) error {
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

	convs, err := s.Repo.ListConversations(c.Request().Context(), page.ID)
	if err != nil {
		return httpError(err)
	}
	visible := make([]*models.Conversation, 0, len(convs))
	for _, conv := range convs {
		if !conv.Synthetic {
			visible = append(visible, conv)
		}
	}
	return c.JSON(http.StatusOK, visible)
}

// ListMessages returns the messages of a conversation.
// (GET /api/v1/conversations/:id/messages)
func (s *Server) ListMessages(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	conv, err := s.Repo.GetConversation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if conv.TenantID != tenantID {
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	}
	page, err := s.Repo.GetPage(c.Request().Context(), tenantID, conv.PageID)
	if err != nil {
		return httpError(err)
	}
	if _, err := s.memberRole(c, page.DriveID, userID); err != nil {
		return err
	}

	msgs, err := s.Repo.ListMessages(c.Request().Context(), conv.ID, 200)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, msgs)
}

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// Chat sends a message to an AI_CHAT page's agent and returns the reply.
// (POST /api/v1/pages/:id/chat)
func (s *Server) Chat(c echo.Context) error {
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

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	result, err := s.Runner.ExecuteChat(c.Request().Context(), tenantID, page.ID,
		req.ConversationID, req.Message, userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}
