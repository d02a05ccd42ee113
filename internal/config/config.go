package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Duration decodes "15m"-style strings from both YAML and environment
// variables.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// Config defines server configuration. Precedence: built-in defaults, then
// the optional YAML file named by PULSE_CONFIG_PATH, then PULSE_* environment
// variables (PULSE_SERVER_PORT, PULSE_NOTIFY_COOLDOWN, ...).
type Config struct {
	Server    ServerConfig   `yaml:"server"`
	DB        DBConfig       `yaml:"db"`
	Log       LogConfig      `yaml:"log"`
	Auth      AuthConfig     `yaml:"auth"`
	Workspace string         `yaml:"workspace"`
	MCP       MCPConfig      `yaml:"mcp"`
	Activity  ActivityConfig `yaml:"activity"`
	Conflict  ConflictConfig `yaml:"conflict"`
	Notify    NotifyConfig   `yaml:"notify"`
	Stream    StreamConfig   `yaml:"stream"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type AuthConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MCPConfig selects the extension-agent surface: "off", "http" (mounted on
// the API server) or "stdio" (serves MCP only, for local editor agents).
type MCPConfig struct {
	Mode string `yaml:"mode"`
}

type ActivityConfig struct {
	// DupWindow is how close a repeat of the user's prior event must be to
	// lose its significance flag.
	DupWindow Duration `yaml:"dup_window" split_words:"true"`
}

// ConflictConfig holds detection tuning constants. None of them is
// load-bearing for correctness beyond "some threshold exists".
type ConflictConfig struct {
	FileWindow         Duration `yaml:"file_window" split_words:"true"`
	SemanticWindow     Duration `yaml:"semantic_window" split_words:"true"`
	SemanticThreshold  float64  `yaml:"semantic_threshold" split_words:"true"`
	MaxSemanticMatches int      `yaml:"max_semantic_matches" split_words:"true"`
}

type NotifyConfig struct {
	Interval Duration `yaml:"interval"`
	Cooldown Duration `yaml:"cooldown"`
}

type StreamConfig struct {
	Heartbeat Duration `yaml:"heartbeat"`
	Poll      Duration `yaml:"poll"`
	Retention Duration `yaml:"retention"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server:    ServerConfig{Host: "0.0.0.0", Port: 8080},
		DB:        DBConfig{Path: "pulseboard.db"},
		Log:       LogConfig{Level: "info"},
		Auth:      AuthConfig{Enabled: false},
		Workspace: "default",
		MCP:       MCPConfig{Mode: "http"},
		Activity:  ActivityConfig{DupWindow: Duration(2 * time.Minute)},
		Conflict: ConflictConfig{
			FileWindow:         Duration(24 * time.Hour),
			SemanticWindow:     Duration(7 * 24 * time.Hour),
			SemanticThreshold:  0.85,
			MaxSemanticMatches: 10,
		},
		Notify: NotifyConfig{
			Interval: Duration(15 * time.Minute),
			Cooldown: Duration(time.Hour),
		},
		Stream: StreamConfig{
			Heartbeat: Duration(50 * time.Second),
			Poll:      Duration(time.Second),
			Retention: Duration(6 * time.Hour),
		},
	}
}

// Load reads configuration from an optional YAML file and environment
// variables.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("PULSE_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := envconfig.Process("pulse", &cfg); err != nil {
		return Config{}, fmt.Errorf("applying env overrides: %w", err)
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
