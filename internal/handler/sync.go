package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pulseboard/pulseboard/internal/domain/activity"
	syncdom "github.com/pulseboard/pulseboard/internal/domain/sync"
)

// getCursor returns the stored cursor for the owner/resource pair. Owner
// defaults to the authenticated user; extension agents pass their own stable
// identity via owner_id.
func (s *Server) getCursor(c echo.Context) error {
	owner := cursorOwner(c)
	resource := c.QueryParam("resource_name")

	cur, err := s.sync.GetCursor(c.Request().Context(), owner, resource)
	if err != nil {
		return writeError(c, err)
	}
	if cur == nil {
		return writeData(c, http.StatusOK, map[string]any{"cursor": nil})
	}
	return writeData(c, http.StatusOK, map[string]any{"cursor": cur})
}

type setCursorRequest struct {
	OwnerID      string     `json:"owner_id,omitempty"`
	ResourceName string     `json:"resource_name" validate:"required"`
	LastSeenID   int64      `json:"last_seen_id" validate:"gte=0"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
}

// setCursor records progress. Regressions are silently ignored; the winning
// cursor is always returned.
func (s *Server) setCursor(c echo.Context) error {
	var req setCursorRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, fmt.Errorf("%w: malformed body", errInvalidPayload))
	}
	if err := c.Validate(&req); err != nil {
		return writeError(c, err)
	}

	owner := req.OwnerID
	if owner == "" {
		owner = requestUser(c)
	}
	lastSeenAt := time.Now()
	if req.LastSeenAt != nil {
		lastSeenAt = *req.LastSeenAt
	}

	cur, err := s.sync.SetCursor(c.Request().Context(), owner, req.ResourceName, req.LastSeenID, lastSeenAt)
	if err != nil {
		return writeError(c, err)
	}
	return writeData(c, http.StatusOK, map[string]any{"cursor": cur})
}

// updatesSinceCursor is the catch-up query for intermittently connected
// clients.
func (s *Server) updatesSinceCursor(c echo.Context) error {
	req := syncdom.UpdatesRequest{
		OwnerID:      cursorOwner(c),
		ResourceName: c.QueryParam("resource_name"),
	}

	if raw := c.QueryParam("since_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 0 {
			return writeError(c, fmt.Errorf("%w: since_id must be a non-negative integer", errInvalidPayload))
		}
		req.SinceID = id
	}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return writeError(c, fmt.Errorf("%w: limit must be a positive integer", errInvalidPayload))
		}
		req.Limit = limit
	}
	if raw := c.QueryParam("focus_files"); raw != "" {
		req.FocusFiles = strings.Split(raw, ",")
	}
	if raw := c.QueryParam("focus_kinds"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			req.FocusKinds = append(req.FocusKinds, activity.Kind(k))
		}
	}

	result, err := s.sync.UpdatesSince(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return writeData(c, http.StatusOK, result)
}

func cursorOwner(c echo.Context) string {
	if owner := c.QueryParam("owner_id"); owner != "" {
		return owner
	}
	return requestUser(c)
}
