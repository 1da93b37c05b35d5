// Package config provides YAML-based configuration loading for sockd.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/legamerdc/sockio/socket"
	"github.com/spf13/viper"
)

// Config is the root daemon configuration.
type Config struct {
	// Listen is where the echo service accepts connections
	Listen ListenConfig `mapstructure:"listen"`

	// Resolver selects the address resolution backend
	Resolver ResolverConfig `mapstructure:"resolver"`

	// Dispatch sizes the reactor
	Dispatch DispatchConfig `mapstructure:"dispatch"`

	// Echo controls what the service does with received bytes
	Echo EchoConfig `mapstructure:"echo"`

	// Log holds logging configuration
	Log LogConfig `mapstructure:"log"`
}

type ListenConfig struct {
	// Node empty means the dual-stack wildcard
	Node    string `mapstructure:"node"`
	Service string `mapstructure:"service"`
	Backlog int    `mapstructure:"backlog"`
	// Options are extra socket options by name, e.g. ["nodelay"]
	Options []string `mapstructure:"options"`
}

type ResolverConfig struct {
	// Kind: system or dns
	Kind string `mapstructure:"kind"`
	// Server is the nameserver for kind=dns, host[:port]
	Server string `mapstructure:"server"`
}

type DispatchConfig struct {
	// Workers <= 0 means max(2, NumCPU)
	Workers int `mapstructure:"workers"`
}

type EchoConfig struct {
	// Mode: raw or framed
	Mode       string `mapstructure:"mode"`
	Compress   bool   `mapstructure:"compress"`
	MaxPayload int    `mapstructure:"max_payload"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool `mapstructure:"enable"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Listen:   ListenConfig{Service: "7000", Backlog: 128},
		Resolver: ResolverConfig{Kind: "system"},
		Echo:     EchoConfig{Mode: "raw", MaxPayload: 16 << 20},
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// Load reads configuration from path (if non-empty), otherwise searches common
// locations. Environment variables use the prefix SOCKD and `.`/`-` become `_`.
// Example: SOCKD_LISTEN_SERVICE=9000
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SOCKD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults so env-only configs work
	v.SetDefault("listen.node", cfg.Listen.Node)
	v.SetDefault("listen.service", cfg.Listen.Service)
	v.SetDefault("listen.backlog", cfg.Listen.Backlog)
	v.SetDefault("listen.options", cfg.Listen.Options)
	v.SetDefault("resolver.kind", cfg.Resolver.Kind)
	v.SetDefault("resolver.server", cfg.Resolver.Server)
	v.SetDefault("dispatch.workers", cfg.Dispatch.Workers)
	v.SetDefault("echo.mode", cfg.Echo.Mode)
	v.SetDefault("echo.compress", cfg.Echo.Compress)
	v.SetDefault("echo.max_payload", cfg.Echo.MaxPayload)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	if path == "" {
		path = os.Getenv("SOCKD_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sockd")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".sockd"))
		}
	}

	// Read config file if present; if not found, continue with defaults/env
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}

	if strings.TrimSpace(c.Listen.Service) == "" {
		return errors.New("listen.service is required")
	}
	if _, err := c.ListenOptions(); err != nil {
		return fmt.Errorf("listen.options: %w", err)
	}

	c.Resolver.Kind = strings.ToLower(strings.TrimSpace(c.Resolver.Kind))
	switch c.Resolver.Kind {
	case "", "system":
		c.Resolver.Kind = "system"
	case "dns":
		if strings.TrimSpace(c.Resolver.Server) == "" {
			return errors.New("resolver.server is required when resolver.kind=dns")
		}
	default:
		return fmt.Errorf("invalid resolver.kind: %q", c.Resolver.Kind)
	}

	c.Echo.Mode = strings.ToLower(strings.TrimSpace(c.Echo.Mode))
	switch c.Echo.Mode {
	case "raw", "framed":
	default:
		return fmt.Errorf("invalid echo.mode: %q", c.Echo.Mode)
	}
	if c.Echo.MaxPayload < 0 {
		return fmt.Errorf("invalid echo.max_payload: %d", c.Echo.MaxPayload)
	}
	return nil
}

// ListenOptions parses Listen.Options into a socket option mask.
func (c *Config) ListenOptions() (socket.Options, error) {
	return socket.ParseOptions(c.Listen.Options)
}

// LookupBackend returns the resolver backend Resolver selects.
func (c *Config) LookupBackend() socket.LookupBackend {
	if c.Resolver.Kind == "dns" {
		return socket.NewDNSBackend(c.Resolver.Server)
	}
	return socket.NewSystemBackend()
}
