package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/driveworks/drivehub/pkg/models"
)

const (
	calendarProvider    = "google"
	calendarStateCookie = "dh_cal_state"
)

// ConnectCalendar returns the provider consent URL for linking a calendar.
// The OAuth state is a one-time nonce pinned in a cookie and checked on
// callback. (GET /api/v1/calendar/connect)
func (s *Server) ConnectCalendar(c echo.Context) error {
	if _, _, err := identity(c); err != nil {
		return err
	}
	state := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     calendarStateCookie,
		Value:    state,
		Path:     "/api/v1/calendar",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	redirect := c.Scheme() + "://" + c.Request().Host + "/api/v1/calendar/callback"
	url := s.Cal.AuthCodeURL(state, redirect)
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}

// CalendarCallback exchanges the consent code and stores the connection.
// (GET /api/v1/calendar/callback)
func (s *Server) CalendarCallback(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	code := c.QueryParam("code")
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing authorization code")
	}
	cookie, err := c.Cookie(calendarStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != c.QueryParam("state") {
		return echo.NewHTTPError(http.StatusBadRequest, "state mismatch; restart the connect flow")
	}

	redirect := c.Scheme() + "://" + c.Request().Host + "/api/v1/calendar/callback"
	token, err := s.Cal.Exchange(c.Request().Context(), code, redirect)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "code exchange failed")
	}
	if token.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest,
			"provider did not return a refresh token; revoke access and reconnect")
	}

	conn := &models.CalendarConnection{
		TenantID:     tenantID,
		UserID:       userID,
		Provider:     calendarProvider,
		CalendarID:   "primary",
		RefreshToken: token.RefreshToken,
	}
	if err := s.Repo.UpsertConnection(c.Request().Context(), conn); err != nil {
		return httpError(err)
	}
	s.audit(c, tenantID, userID, "calendar.connect", "calendar_connection", conn.ID)
	return c.JSON(http.StatusOK, conn)
}

// SyncCalendar triggers a sync of the caller's connection.
// (POST /api/v1/calendar/sync)
func (s *Server) SyncCalendar(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	conn, err := s.Repo.GetConnection(c.Request().Context(), tenantID, userID, calendarProvider)
	if err != nil {
		return httpError(err)
	}
	if err := s.Syncer.SyncConnection(c.Request().Context(), conn); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "calendar sync failed: "+err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// ListCalendarEvents returns the caller's synced events within a window.
// (GET /api/v1/calendar/events)
func (s *Server) ListCalendarEvents(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}
	conn, err := s.Repo.GetConnection(c.Request().Context(), tenantID, userID, calendarProvider)
	if err != nil {
		return httpError(err)
	}

	from := time.Now().Add(-24 * time.Hour)
	to := time.Now().Add(30 * 24 * time.Hour)
	if v := c.QueryParam("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from must be RFC3339")
		}
	}
	if v := c.QueryParam("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "to must be RFC3339")
		}
	}

	events, err := s.Repo.ListEvents(c.Request().Context(), conn.ID, from, to)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, events)
}
