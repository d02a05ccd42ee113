package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/domain/activity"
	"github.com/pulseboard/pulseboard/internal/domain/conflict"
	"github.com/pulseboard/pulseboard/internal/domain/notify"
	"github.com/pulseboard/pulseboard/internal/domain/stream"
	syncdom "github.com/pulseboard/pulseboard/internal/domain/sync"
	"github.com/pulseboard/pulseboard/internal/handler"
	"github.com/pulseboard/pulseboard/internal/mcp"
	"github.com/pulseboard/pulseboard/internal/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := os.Stdout
	if cfg.MCP.Mode == "stdio" {
		logWriter = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		logger.Error("failed to prepare database path", "error", err)
		os.Exit(1)
	}

	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	activityRepo := sqlite.NewActivityRepository(db)
	notificationRepo := sqlite.NewNotificationRepository(db)
	cursorRepo := sqlite.NewCursorRepository(db)
	streamRepo := sqlite.NewStreamRepository(db)
	stateRepo := sqlite.NewStateRepository(db)
	apiKeys := sqlite.NewAPIKeyRepository(db)

	activitySvc := activity.NewService(activityRepo, nil, cfg.Activity.DupWindow.Std(), logger)
	detector := conflict.NewDetector(activitySvc, conflict.Config{
		FileWindow:         cfg.Conflict.FileWindow.Std(),
		SemanticWindow:     cfg.Conflict.SemanticWindow.Std(),
		SemanticThreshold:  cfg.Conflict.SemanticThreshold,
		MaxSemanticMatches: cfg.Conflict.MaxSemanticMatches,
	}, logger)
	notificationSvc := notify.NewService(notificationRepo, logger)
	syncSvc := syncdom.NewService(cursorRepo, activitySvc, logger)
	broker := stream.NewBroker(streamRepo, cfg.Stream.Poll.Std(), logger)

	engine := notify.NewEngine(
		activitySvc, detector, notificationRepo, stateRepo, broker, streamRepo,
		notify.EngineConfig{
			Interval:        cfg.Notify.Interval.Std(),
			Cooldown:        cfg.Notify.Cooldown.Std(),
			StreamRetention: cfg.Stream.Retention.Std(),
			WorkspaceID:     cfg.Workspace,
		}, logger)

	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Activity:      activitySvc,
			Sync:          syncSvc,
			Notifications: notificationSvc,
		},
		Resolver:      apiKeys,
		AuthEnabled:   cfg.Auth.Enabled,
		TransportMode: cfg.MCP.Mode,
		Logger:        logger,
	})

	if cfg.MCP.Mode == "stdio" {
		runStdioMode(logger, mcpServer)
		return
	}

	e := handler.New(handler.Config{
		Activity:      activitySvc,
		Detector:      detector,
		Notifications: notificationSvc,
		Sync:          syncSvc,
		Broker:        broker,
		Resolver:      apiKeys,
		AuthEnabled:   cfg.Auth.Enabled,
		Workspace:     cfg.Workspace,
		Heartbeat:     cfg.Stream.Heartbeat.Std(),
		Logger:        logger,
	})

	if cfg.MCP.Mode == "http" {
		mcpHandler := sdkmcp.NewStreamableHTTPHandler(
			func(r *http.Request) *sdkmcp.Server { return mcpServer },
			&sdkmcp.StreamableHTTPOptions{
				Stateless:      false,
				SessionTimeout: 30 * time.Minute,
			},
		)
		e.Any("/mcp", echo.WrapHandler(mcpHandler))
		e.Any("/mcp/*", echo.WrapHandler(mcpHandler))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := engine.Start(); err != nil {
		logger.Error("failed to start notification engine", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		engine.Stop()
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func runStdioMode(logger *slog.Logger, mcpServer *sdkmcp.Server) {
	logger.Info("starting stdio transport", "auth", "disabled")

	transport := &sdkmcp.StdioTransport{}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run blocks until stdin closes or context is canceled
	if err := mcpServer.Run(ctx, transport); err != nil {
		logger.Error("stdio server error", "error", err)
		os.Exit(1)
	}
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
