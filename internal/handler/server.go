package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pulseboard/pulseboard/internal/domain/activity"
	"github.com/pulseboard/pulseboard/internal/domain/conflict"
	"github.com/pulseboard/pulseboard/internal/domain/notify"
	"github.com/pulseboard/pulseboard/internal/domain/stream"
	syncdom "github.com/pulseboard/pulseboard/internal/domain/sync"
)

// Config bundles the pieces the HTTP layer needs.
type Config struct {
	Activity      *activity.Service
	Detector      *conflict.Detector
	Notifications *notify.Service
	Sync          *syncdom.Service
	Broker        *stream.Broker
	Resolver      UserResolver
	AuthEnabled   bool
	Workspace     string
	Heartbeat     time.Duration
	Logger        *slog.Logger
}

// Server holds the HTTP handlers for the awareness API.
type Server struct {
	activity      *activity.Service
	detector      *conflict.Detector
	notifications *notify.Service
	sync          *syncdom.Service
	broker        *stream.Broker
	workspace     string
	heartbeat     time.Duration
	logger        *slog.Logger
}

// New creates an echo instance with all routes registered.
func New(cfg Config) *echo.Echo {
	s := &Server{
		activity:      cfg.Activity,
		detector:      cfg.Detector,
		notifications: cfg.Notifications,
		sync:          cfg.Sync,
		broker:        cfg.Broker,
		workspace:     cfg.Workspace,
		heartbeat:     cfg.Heartbeat,
		logger:        cfg.Logger,
	}
	if s.heartbeat <= 0 {
		s.heartbeat = 50 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewAppValidator()
	e.Use(RequestLogger(cfg.Logger))

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	api := e.Group("/api", APIKeyAuth(cfg.Resolver, cfg.AuthEnabled))
	api.POST("/activity", s.appendActivity)
	api.GET("/conflicts", s.findConflicts)

	api.GET("/notifications", s.listNotifications)
	api.PATCH("/notifications/:id/read", s.markNotificationRead)
	api.PATCH("/notifications/mark-all-read", s.markAllNotificationsRead)
	api.DELETE("/notifications/:id", s.deleteNotification)

	api.GET("/cursor", s.getCursor)
	api.POST("/cursor", s.setCursor)
	api.GET("/updates-since-cursor", s.updatesSinceCursor)

	api.GET("/events", s.streamEvents)

	return e
}
