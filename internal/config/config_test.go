package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "pulseboard.db", cfg.DB.Path)
	require.Equal(t, "info", cfg.Log.Level)
	require.False(t, cfg.Auth.Enabled)
	require.Equal(t, "default", cfg.Workspace)
	require.Equal(t, "http", cfg.MCP.Mode)

	require.Equal(t, 2*time.Minute, cfg.Activity.DupWindow.Std())
	require.Equal(t, 24*time.Hour, cfg.Conflict.FileWindow.Std())
	require.Equal(t, 7*24*time.Hour, cfg.Conflict.SemanticWindow.Std())
	require.Equal(t, 0.85, cfg.Conflict.SemanticThreshold)
	require.Equal(t, 10, cfg.Conflict.MaxSemanticMatches)
	require.Equal(t, 15*time.Minute, cfg.Notify.Interval.Std())
	require.Equal(t, time.Hour, cfg.Notify.Cooldown.Std())
	require.Equal(t, 50*time.Second, cfg.Stream.Heartbeat.Std())
	require.Equal(t, time.Second, cfg.Stream.Poll.Std())
	require.Equal(t, 6*time.Hour, cfg.Stream.Retention.Std())
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
notify:
  cooldown: 30m
conflict:
  semantic_threshold: 0.9
`), 0o644))
	t.Setenv("PULSE_CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 30*time.Minute, cfg.Notify.Cooldown.Std())
	require.Equal(t, 0.9, cfg.Conflict.SemanticThreshold)

	// Untouched keys keep their defaults
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 15*time.Minute, cfg.Notify.Interval.Std())
}

func TestEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644))
	t.Setenv("PULSE_CONFIG_PATH", path)
	t.Setenv("PULSE_SERVER_PORT", "7070")
	t.Setenv("PULSE_NOTIFY_INTERVAL", "5m")
	t.Setenv("PULSE_AUTH_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 7070, cfg.Server.Port, "environment wins over the file")
	require.Equal(t, 5*time.Minute, cfg.Notify.Interval.Std())
	require.True(t, cfg.Auth.Enabled)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("notify:\n  cooldown: sometimes\n"), 0o644))
	t.Setenv("PULSE_CONFIG_PATH", path)

	_, err := Load()
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("PULSE_CONFIG_PATH", "/nonexistent/config.yaml")

	_, err := Load()
	require.Error(t, err)
}
