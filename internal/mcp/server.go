package mcp

import (
	"context"
	"log/slog"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pulseboard/pulseboard/internal/domain/activity"
	"github.com/pulseboard/pulseboard/internal/domain/notify"
	syncdom "github.com/pulseboard/pulseboard/internal/domain/sync"
)

// ActivityService defines activity operations needed by MCP.
type ActivityService interface {
	Append(ctx context.Context, ev *activity.Event) (int64, error)
}

// SyncService defines cursor and delta-sync operations needed by MCP.
type SyncService interface {
	UpdatesSince(ctx context.Context, req syncdom.UpdatesRequest) (*syncdom.UpdatesResult, error)
	SetCursor(ctx context.Context, ownerID, resourceName string, lastSeenID int64, lastSeenAt time.Time) (*syncdom.Cursor, error)
}

// NotificationService defines notification operations needed by MCP.
type NotificationService interface {
	List(ctx context.Context, userID string, opts notify.ListOptions) (*notify.ListResult, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Activity      ActivityService
	Sync          SyncService
	Notifications NotificationService
}

// Config contains server configuration.
type Config struct {
	Services      Services
	Resolver      UserResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server exposing the awareness
// engine to editor-extension agents.
func NewServer(cfg Config) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "pulseboard",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	// Stdio mode is local dev only: no auth, caller declares its identity.
	if cfg.TransportMode == "stdio" || !cfg.AuthEnabled {
		server.AddReceivingMiddleware(noAuthMiddleware("default"))
	} else {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	}

	registerTools(server, cfg.Services)

	return server
}

const serverInstructions = `Pulseboard keeps collaborating agents aware of each other's work.

Typical flow:
1. Call record_activity after each meaningful unit of work (edit, save, commit).
2. On reconnect, call get_updates_since with your stored cursor to catch up,
   then set_cursor once you have processed the page.
3. Call list_notifications to see conflict warnings about overlapping work.`
