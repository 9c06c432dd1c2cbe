package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"nhooyr.io/websocket"
)

// HandleWS upgrades to a WebSocket subscribed to one drive's event topic.
// (GET /ws?drive=<id>)
func (s *Server) HandleWS(c echo.Context) error {
	_, userID, err := identity(c)
	if err != nil {
		return err
	}
	driveID := c.QueryParam("drive")
	if driveID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "drive is required")
	}
	if _, err := s.memberRole(c, driveID, userID); err != nil {
		return err
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	// The subscription ends when the client goes away; that is not a
	// handler failure.
	if err := s.Hub.Serve(c.Request().Context(), conn, "drive:"+driveID); err != nil {
		s.Logger.Debug("websocket session ended", "drive_id", driveID, "error", err)
	}
	conn.Close(websocket.StatusNormalClosure, "")
	return nil
}
