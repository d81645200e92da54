// Package config loads the icmpong configuration file.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"icmpong/internal/netwrk"
	"icmpong/internal/protocol"
)

// Config is the complete configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Game    GameConfig    `yaml:"game"`
	Network NetworkConfig `yaml:"network"`
	Metrics MetricsConfig `yaml:"metrics"`
	Journal JournalConfig `yaml:"journal"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`

	// File receives the log instead of stderr, which the game draws on.
	File string `yaml:"file"`
}

// GameConfig controls the game loop.
type GameConfig struct {
	Name         string        `yaml:"name"`
	BallVelocity float32       `yaml:"ball_velocity"`
	Tick         time.Duration `yaml:"tick"`
	RedrawEvery  int           `yaml:"redraw_every"`
}

// NetworkConfig controls the ICMPv6 session.
type NetworkConfig struct {
	Peer             string        `yaml:"peer"`
	Bind             string        `yaml:"bind"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	DisconnectGrace  time.Duration `yaml:"disconnect_grace"`
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// JournalConfig controls the frame journal. An empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Game: GameConfig{
			BallVelocity: 0.6,
			Tick:         15 * time.Millisecond,
			RedrawEvery:  2,
		},
		Network: NetworkConfig{
			Bind:             "::",
			HandshakeTimeout: 60 * time.Second,
			DisconnectGrace:  500 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1:9464",
		},
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Default()

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envVarRegex matches ${VAR} or $VAR patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces environment variable references with their values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}

		// ${VAR:-default}
		if idx := strings.Index(name, ":-"); idx != -1 {
			if val, ok := os.LookupEnv(name[:idx]); ok {
				return val
			}
			return name[idx+2:]
		}

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// Validate checks the configuration. All problems are reported together.
func (c *Config) Validate() error {
	var errs []string

	if !isValidLogLevel(c.Log.Level) {
		errs = append(errs, fmt.Sprintf("invalid log.level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}
	if !isValidLogFormat(c.Log.Format) {
		errs = append(errs, fmt.Sprintf("invalid log.format: %s (must be text or json)", c.Log.Format))
	}

	if err := protocol.ValidateName(c.Game.Name); err != nil {
		errs = append(errs, fmt.Sprintf("game.name: %v", err))
	}
	if c.Game.BallVelocity <= 0 {
		errs = append(errs, "game.ball_velocity must be positive")
	}
	if c.Game.Tick <= 0 {
		errs = append(errs, "game.tick must be positive")
	}
	if c.Game.RedrawEvery < 1 {
		errs = append(errs, "game.redraw_every must be at least 1")
	}

	if c.Network.Peer != "" {
		if _, err := netwrk.ParsePeer(c.Network.Peer); err != nil {
			errs = append(errs, fmt.Sprintf("network.peer: %v", err))
		}
	}
	if c.Network.Bind == "" {
		errs = append(errs, "network.bind is required")
	}
	if c.Network.HandshakeTimeout < 0 {
		errs = append(errs, "network.handshake_timeout must not be negative")
	}
	if c.Network.DisconnectGrace < 0 {
		errs = append(errs, "network.disconnect_grace must not be negative")
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		errs = append(errs, "metrics.address is required when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidLogFormat(format string) bool {
	switch format {
	case "text", "json":
		return true
	default:
		return false
	}
}
