package mcp

import (
	"context"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pulseboard/pulseboard/internal/domain/activity"
	"github.com/pulseboard/pulseboard/internal/domain/notify"
	syncdom "github.com/pulseboard/pulseboard/internal/domain/sync"
)

type RecordActivityParams struct {
	Kind      string    `json:"kind" jsonschema:"activity kind: edit, save, commit or chat"`
	Summary   string    `json:"summary" jsonschema:"short free-text description of the work"`
	Files     []string  `json:"files,omitempty" jsonschema:"file paths the work touched"`
	Embedding []float32 `json:"embedding,omitempty" jsonschema:"optional pre-computed embedding vector"`
}

type RecordActivityResult struct {
	EventID       int64 `json:"event_id"`
	IsSignificant bool  `json:"is_significant"`
}

type GetUpdatesParams struct {
	ResourceName string   `json:"resource_name" jsonschema:"resource to paginate, e.g. code_events"`
	SinceID      int64    `json:"since_id,omitempty" jsonschema:"overrides the stored cursor when set"`
	Limit        int      `json:"limit,omitempty"`
	FocusFiles   []string `json:"focus_files,omitempty" jsonschema:"path prefixes to narrow results"`
	FocusKinds   []string `json:"focus_kinds,omitempty"`
}

type SetCursorParams struct {
	ResourceName string `json:"resource_name"`
	LastSeenID   int64  `json:"last_seen_id" jsonschema:"highest event id the agent has processed"`
}

type SetCursorResult struct {
	Cursor *syncdom.Cursor `json:"cursor"`
}

type ListNotificationsParams struct {
	UnreadOnly bool `json:"unread_only,omitempty"`
	Limit      int  `json:"limit,omitempty"`
}

type handlers struct {
	services Services
}

// registerTools wires the awareness tools into the MCP server.
func registerTools(server *sdkmcp.Server, services Services) {
	h := &handlers{services: services}

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "record_activity",
		Description: "Record one unit of work so other collaborators become aware of it",
	}, h.recordActivity)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_updates_since",
		Description: "Fetch activity updates after the agent's cursor, in order, with no gaps",
	}, h.getUpdatesSince)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "set_cursor",
		Description: "Persist the agent's sync progress; older values are ignored",
	}, h.setCursor)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_notifications",
		Description: "List conflict notifications for the current user",
	}, h.listNotifications)
}

func (h *handlers) recordActivity(ctx context.Context, req *sdkmcp.CallToolRequest, in RecordActivityParams) (*sdkmcp.CallToolResult, RecordActivityResult, error) {
	ev := &activity.Event{
		UserID:    requestUser(ctx),
		Timestamp: time.Now(),
		Kind:      activity.Kind(in.Kind),
		Summary:   in.Summary,
		Files:     in.Files,
		Embedding: in.Embedding,
	}
	id, err := h.services.Activity.Append(ctx, ev)
	if err != nil {
		return nil, RecordActivityResult{}, err
	}
	return nil, RecordActivityResult{EventID: id, IsSignificant: ev.IsSignificant}, nil
}

func (h *handlers) getUpdatesSince(ctx context.Context, req *sdkmcp.CallToolRequest, in GetUpdatesParams) (*sdkmcp.CallToolResult, *syncdom.UpdatesResult, error) {
	kinds := make([]activity.Kind, 0, len(in.FocusKinds))
	for _, k := range in.FocusKinds {
		kinds = append(kinds, activity.Kind(k))
	}
	result, err := h.services.Sync.UpdatesSince(ctx, syncdom.UpdatesRequest{
		OwnerID:      requestUser(ctx),
		ResourceName: in.ResourceName,
		SinceID:      in.SinceID,
		Limit:        in.Limit,
		FocusFiles:   in.FocusFiles,
		FocusKinds:   kinds,
	})
	if err != nil {
		return nil, nil, err
	}
	return nil, result, nil
}

func (h *handlers) setCursor(ctx context.Context, req *sdkmcp.CallToolRequest, in SetCursorParams) (*sdkmcp.CallToolResult, SetCursorResult, error) {
	cur, err := h.services.Sync.SetCursor(ctx, requestUser(ctx), in.ResourceName, in.LastSeenID, time.Now())
	if err != nil {
		return nil, SetCursorResult{}, err
	}
	return nil, SetCursorResult{Cursor: cur}, nil
}

func (h *handlers) listNotifications(ctx context.Context, req *sdkmcp.CallToolRequest, in ListNotificationsParams) (*sdkmcp.CallToolResult, *notify.ListResult, error) {
	result, err := h.services.Notifications.List(ctx, requestUser(ctx), notify.ListOptions{
		UnreadOnly: in.UnreadOnly,
		Limit:      in.Limit,
	})
	if err != nil {
		return nil, nil, err
	}
	return nil, result, nil
}
