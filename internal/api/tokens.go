package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/driveworks/drivehub/internal/auth"
	"github.com/driveworks/drivehub/pkg/models"
)

type createTokenRequest struct {
	Name string `json:"name"`
}

type createTokenResponse struct {
	*models.MCPToken
	// Token is returned exactly once; only the digest is stored.
	Token string `json:"token"`
}

// CreateToken mints an MCP bearer token bound to the caller.
// (POST /api/v1/tokens)
func (s *Server) CreateToken(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	var req createTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if strings.TrimSpace(req.Name) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	raw, digest, err := auth.MintToken()
	if err != nil {
		return err
	}
	token := &models.MCPToken{
		TenantID: tenantID,
		UserID:   userID,
		Name:     req.Name,
		Digest:   digest,
	}
	if err := s.Repo.CreateToken(c.Request().Context(), token); err != nil {
		return httpError(err)
	}

	s.audit(c, tenantID, userID, "token.create", "mcp_token", token.ID)
	return c.JSON(http.StatusCreated, createTokenResponse{MCPToken: token, Token: raw})
}

// ListTokens lists the caller's tokens. The raw token is never recoverable.
// (GET /api/v1/tokens)
func (s *Server) ListTokens(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	tokens, err := s.Repo.ListTokens(c.Request().Context(), tenantID, userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tokens)
}

// RevokeToken revokes a token.
// (DELETE /api/v1/tokens/:id)
func (s *Server) RevokeToken(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	if err := s.Repo.RevokeToken(c.Request().Context(), tenantID, c.Param("id")); err != nil {
		return httpError(err)
	}
	s.audit(c, tenantID, userID, "token.revoke", "mcp_token", c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}
