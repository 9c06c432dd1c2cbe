package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/driveworks/drivehub/pkg/models"
)

type createDriveRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// CreateDrive creates a drive with the caller as owner.
// (POST /api/v1/drives)
func (s *Server) CreateDrive(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}

	var req createDriveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if strings.TrimSpace(req.Name) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if req.Slug == "" {
		req.Slug = slugify(req.Name)
	}

	drive := &models.Drive{
		TenantID: tenantID,
		Name:     req.Name,
		Slug:     req.Slug,
		OwnerID:  userID,
	}
	if err := s.Repo.CreateDrive(c.Request().Context(), drive); err != nil {
		return httpError(err)
	}
	s.audit(c, tenantID, userID, "drive.create", "drive", drive.ID)
	return c.JSON(http.StatusCreated, drive)
}

// ListDrives returns the drives the caller is a member of.
// (GET /api/v1/drives)
func (s *Server) ListDrives(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	drives, err := s.Repo.ListDrives(c.Request().Context(), tenantID, userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, drives)
}

// GetDrive returns one drive.
// (GET /api/v1/drives/:id)
func (s *Server) GetDrive(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	driveID := c.Param("id")
	if _, err := s.memberRole(c, driveID, userID); err != nil {
		return err
	}
	drive, err := s.Repo.GetDrive(c.Request().Context(), tenantID, driveID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, drive)
}

// UpdateDrive renames a drive.
// (PUT /api/v1/drives/:id)
func (s *Server) UpdateDrive(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	driveID := c.Param("id")
	if err := s.requireManager(c, driveID, userID); err != nil {
		return err
	}

	var req createDriveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	drive, err := s.Repo.GetDrive(c.Request().Context(), tenantID, driveID)
	if err != nil {
		return httpError(err)
	}
	if req.Name != "" {
		drive.Name = req.Name
	}
	if req.Slug != "" {
		drive.Slug = req.Slug
	}
	if err := s.Repo.UpdateDrive(c.Request().Context(), drive); err != nil {
		return httpError(err)
	}
	s.audit(c, tenantID, userID, "drive.update", "drive", drive.ID)
	return c.JSON(http.StatusOK, drive)
}

// DeleteDrive soft-deletes a drive.
// (DELETE /api/v1/drives/:id)
func (s *Server) DeleteDrive(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	driveID := c.Param("id")

	role, err := s.memberRole(c, driveID, userID)
	if err != nil {
		return err
	}
	if role != models.RoleOwner {
		return echo.NewHTTPError(http.StatusForbidden, "only the owner can delete a drive")
	}

	if err := s.Repo.DeleteDrive(c.Request().Context(), tenantID, driveID); err != nil {
		return httpError(err)
	}
	s.audit(c, tenantID, userID, "drive.delete", "drive", driveID)
	return c.NoContent(http.StatusNoContent)
}

// ListDriveMembers returns all memberships of a drive.
// (GET /api/v1/drives/:id/members)
func (s *Server) ListDriveMembers(c echo.Context) error {
	_, userID, err := identity(c)
	if err != nil {
		return err
	}
	driveID := c.Param("id")
	if _, err := s.memberRole(c, driveID, userID); err != nil {
		return err
	}
	members, err := s.Repo.ListDriveMembers(c.Request().Context(), driveID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, members)
}

type upsertMemberRequest struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
}

// UpsertDriveMember adds a member or changes their role.
// (PUT /api/v1/drives/:id/members)
func (s *Server) UpsertDriveMember(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	driveID := c.Param("id")
	if err := s.requireManager(c, driveID, userID); err != nil {
		return err
	}

	var req upsertMemberRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	switch req.Role {
	case models.RoleOwner:
		return echo.NewHTTPError(http.StatusBadRequest, "ownership cannot be granted through membership")
	case models.RoleAdmin, models.RoleMember, models.RoleViewer:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "invalid role")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	// The member must exist within the same tenant.
	target, err := s.Repo.GetUser(c.Request().Context(), req.UserID)
	if err != nil {
		return httpError(err)
	}
	if target.TenantID != tenantID {
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	}

	member := &models.DriveMember{DriveID: driveID, UserID: req.UserID, Role: req.Role}
	if err := s.Repo.UpsertDriveMember(c.Request().Context(), member); err != nil {
		return httpError(err)
	}
	s.audit(c, tenantID, userID, "drive.member.upsert", "drive", driveID)
	return c.JSON(http.StatusOK, member)
}

// RemoveDriveMember removes a membership. Owners cannot be removed.
// (DELETE /api/v1/drives/:id/members/:userID)
func (s *Server) RemoveDriveMember(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	driveID := c.Param("id")
	targetID := c.Param("userID")
	if err := s.requireManager(c, driveID, userID); err != nil {
		return err
	}

	member, err := s.Repo.GetDriveMember(c.Request().Context(), driveID, targetID)
	if err != nil {
		return httpError(err)
	}
	if member.Role == models.RoleOwner {
		return echo.NewHTTPError(http.StatusBadRequest, "the owner cannot be removed")
	}

	if err := s.Repo.RemoveDriveMember(c.Request().Context(), driveID, targetID); err != nil {
		return httpError(err)
	}
	s.audit(c, tenantID, userID, "drive.member.remove", "drive", driveID)
	return c.NoContent(http.StatusNoContent)
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		}
		return -1
	}, slug)
	return strings.Trim(slug, "-")
}
