package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pulseboard/pulseboard/internal/domain/activity"
)

type appendActivityRequest struct {
	Kind      string     `json:"kind" validate:"required"`
	Summary   string     `json:"summary" validate:"required"`
	Files     []string   `json:"files,omitempty"`
	Embedding []float32  `json:"embedding,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type appendActivityResponse struct {
	EventID       int64 `json:"event_id"`
	IsSignificant bool  `json:"is_significant"`
}

// appendActivity ingests one activity event for the authenticated user.
func (s *Server) appendActivity(c echo.Context) error {
	var req appendActivityRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, fmt.Errorf("%w: malformed body", errInvalidPayload))
	}
	if err := c.Validate(&req); err != nil {
		return writeError(c, err)
	}

	ts := time.Now()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}

	ev := &activity.Event{
		UserID:    requestUser(c),
		Timestamp: ts,
		Kind:      activity.Kind(req.Kind),
		Summary:   req.Summary,
		Files:     req.Files,
		Embedding: req.Embedding,
	}

	id, err := s.activity.Append(c.Request().Context(), ev)
	if err != nil {
		return writeError(c, err)
	}

	return writeData(c, http.StatusCreated, appendActivityResponse{
		EventID:       id,
		IsSignificant: ev.IsSignificant,
	})
}

// findConflicts is the debug/administrative conflict query.
func (s *Server) findConflicts(c echo.Context) error {
	id, err := strconv.ParseInt(c.QueryParam("subject_event_id"), 10, 64)
	if err != nil {
		return writeError(c, fmt.Errorf("%w: subject_event_id must be an integer", errInvalidPayload))
	}

	ev, err := s.activity.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}

	matches, err := s.detector.FindConflicts(c.Request().Context(), ev)
	if err != nil {
		return writeError(c, err)
	}

	return writeData(c, http.StatusOK, map[string]any{"conflicts": matches})
}
