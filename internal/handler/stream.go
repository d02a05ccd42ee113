package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pulseboard/pulseboard/internal/domain/stream"
)

// streamEvents is the long-lived live channel: Server-Sent Events with
// resume via last_event_id (query param or Last-Event-ID header) and a
// periodic heartbeat comment. The client closing the connection is the
// cancellation signal.
func (s *Server) streamEvents(c echo.Context) error {
	workspace := c.QueryParam("workspace_id")
	if workspace == "" {
		workspace = s.workspace
	}

	lastEventID, err := resumeID(c)
	if err != nil {
		return writeError(c, err)
	}

	ctx := c.Request().Context()
	sub, err := s.broker.Subscribe(ctx, workspace, lastEventID)
	if err != nil {
		return writeError(c, err)
	}
	defer sub.Close()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := writeSSEEvent(res, ev); err != nil {
				return nil
			}
			res.Flush()
		case <-heartbeat.C:
			if _, err := io.WriteString(res, ": heartbeat\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

// writeSSEEvent emits one event frame. The id field lets EventSource-style
// clients resume transparently after a drop.
func writeSSEEvent(w io.Writer, ev stream.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s.%s\ndata: %s\n\n", ev.ID, ev.EntityType, ev.Action, data)
	return err
}

func resumeID(c echo.Context) (int64, error) {
	raw := c.QueryParam("last_event_id")
	if raw == "" {
		raw = c.Request().Header.Get("Last-Event-ID")
	}
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: last_event_id must be a non-negative integer", errInvalidPayload)
	}
	return id, nil
}
