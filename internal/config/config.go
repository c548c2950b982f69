// Package config loads the demo binary configuration: a TOML file, then
// PLAYERSTATE_* environment overrides, then validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PLAYERSTATE_"

// Config is the full configuration.
type Config struct {
	Net     NetConfig     `toml:"net" envPrefix:"NET_"`
	Tick    TickConfig    `toml:"tick" envPrefix:"TICK_"`
	Content ContentConfig `toml:"content" envPrefix:"CONTENT_"`
	Save    SaveConfig    `toml:"save" envPrefix:"SAVE_"`
	Log     LogConfig     `toml:"log" envPrefix:"LOG_"`
}

// NetConfig configures the session and its transport.
type NetConfig struct {
	Role           string        `toml:"role" env:"ROLE"`           // server, client or none
	Transport      string        `toml:"transport" env:"TRANSPORT"` // tcp or ws
	Address        string        `toml:"address" env:"ADDRESS"`
	Path           string        `toml:"path" env:"PATH"`
	Name           string        `toml:"name" env:"NAME"`
	MaxPeers       int           `toml:"max_peers" env:"MAX_PEERS"`
	MaxPending     int           `toml:"max_pending" env:"MAX_PENDING"`
	ConnectTimeout time.Duration `toml:"connect_timeout" env:"CONNECT_TIMEOUT"`
	WriteTimeout   time.Duration `toml:"write_timeout" env:"WRITE_TIMEOUT"`
}

// TickConfig configures the fixed-rate loop.
type TickConfig struct {
	Rate time.Duration `toml:"rate" env:"RATE"`
}

// ContentConfig points at the state graph manifest.
type ContentConfig struct {
	Manifest string `toml:"manifest" env:"MANIFEST"`
}

// SaveConfig selects the save backend.
type SaveConfig struct {
	Backend string `toml:"backend" env:"BACKEND"` // none, json, yaml or sqlite
	Path    string `toml:"path" env:"PATH"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `toml:"level" env:"LEVEL"`
	Format string `toml:"format" env:"FORMAT"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Net: NetConfig{
			Role:           "none",
			Transport:      "tcp",
			Address:        ":7777",
			Path:           "/sync",
			Name:           "player",
			MaxPeers:       16,
			MaxPending:     64,
			ConnectTimeout: 5 * time.Second,
			WriteTimeout:   5 * time.Second,
		},
		Tick: TickConfig{Rate: 16667 * time.Microsecond},
		Save: SaveConfig{Backend: "none", Path: "saves"},
		Log:  LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (if non-empty), applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	switch c.Net.Role {
	case "none", "server", "client":
	default:
		errs = append(errs, fmt.Errorf("net.role: unknown role %q", c.Net.Role))
	}
	switch c.Net.Transport {
	case "tcp", "ws":
	default:
		errs = append(errs, fmt.Errorf("net.transport: unknown transport %q", c.Net.Transport))
	}
	if c.Net.Role != "none" && c.Net.Address == "" {
		errs = append(errs, errors.New("net.address: required when networking is enabled"))
	}
	if c.Net.MaxPeers < 1 {
		errs = append(errs, fmt.Errorf("net.max_peers: must be at least 1, got %d", c.Net.MaxPeers))
	}
	if c.Tick.Rate <= 0 {
		errs = append(errs, fmt.Errorf("tick.rate: must be positive, got %s", c.Tick.Rate))
	}
	switch c.Save.Backend {
	case "none":
	case "json", "yaml", "sqlite":
		if c.Save.Path == "" {
			errs = append(errs, fmt.Errorf("save.path: required for backend %q", c.Save.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("save.backend: unknown backend %q", c.Save.Backend))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
