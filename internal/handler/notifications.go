package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pulseboard/pulseboard/internal/domain/notify"
)

// listNotifications returns the user's notifications with badge counts.
func (s *Server) listNotifications(c echo.Context) error {
	opts := notify.ListOptions{
		UnreadOnly: c.QueryParam("unread_only") == "true",
		Severity:   notify.Severity(c.QueryParam("severity")),
		Type:       notify.Type(c.QueryParam("source_type")),
		Limit:      50,
	}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return writeError(c, fmt.Errorf("%w: limit must be a positive integer", errInvalidPayload))
		}
		opts.Limit = limit
	}

	result, err := s.notifications.List(c.Request().Context(), requestUser(c), opts)
	if err != nil {
		return writeError(c, err)
	}
	return writeData(c, http.StatusOK, result)
}

func (s *Server) markNotificationRead(c echo.Context) error {
	id, err := notificationID(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := s.notifications.MarkRead(c.Request().Context(), requestUser(c), id); err != nil {
		return writeError(c, err)
	}
	return writeData(c, http.StatusOK, map[string]any{"id": id, "is_read": true})
}

func (s *Server) markAllNotificationsRead(c echo.Context) error {
	n, err := s.notifications.MarkAllRead(c.Request().Context(), requestUser(c))
	if err != nil {
		return writeError(c, err)
	}
	return writeData(c, http.StatusOK, map[string]any{"updated": n})
}

func (s *Server) deleteNotification(c echo.Context) error {
	id, err := notificationID(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := s.notifications.Delete(c.Request().Context(), requestUser(c), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func notificationID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: id must be an integer", errInvalidPayload)
	}
	return id, nil
}
