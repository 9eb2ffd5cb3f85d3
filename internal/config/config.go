// Package config loads the eventcore server configuration from YAML
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/nainya/eventcore/pkg/index/memory"
)

// Config is the root of the server configuration
type Config struct {
	Logger LoggerConfig `yaml:"logger"`
	Server ServerConfig `yaml:"server"`
	Time   TimeConfig   `yaml:"time"`
	Index  IndexConfig  `yaml:"index"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
	Caller bool   `yaml:"caller"`
}

type ServerConfig struct {
	GrpcPort int `yaml:"grpc_port"`
	HTTPPort int `yaml:"http_port"`
}

// TimeConfig selects the physical time sources of the clock. RefreshInterval
// is a Go duration string.
type TimeConfig struct {
	RefreshInterval string   `yaml:"refresh_interval"`
	Sources         []string `yaml:"sources"`
}

type IndexConfig struct {
	Engine string `yaml:"engine"`
}

// Default returns a baseline development config.
func Default() Config {
	return Config{
		Logger: LoggerConfig{
			Level:  "info",
			Pretty: true,
		},
		Server: ServerConfig{
			GrpcPort: 50051,
			HTTPPort: 9090,
		},
		Time: TimeConfig{
			RefreshInterval: "30m",
			Sources:         []string{"system"},
		},
		Index: IndexConfig{
			Engine: memory.EngineName,
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file yields
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// RefreshInterval returns the parsed time refresh interval.
func (c Config) RefreshInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Time.RefreshInterval)
	if err != nil {
		return 0, fmt.Errorf("config: time.refresh_interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: time.refresh_interval must be positive, got %s", d)
	}
	return d, nil
}

// Validate checks value ranges and names.
func (c Config) Validate() error {
	switch c.Logger.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logger.level %q is not one of debug, info, warn, error", c.Logger.Level)
	}
	if err := validPort("server.grpc_port", c.Server.GrpcPort); err != nil {
		return err
	}
	if err := validPort("server.http_port", c.Server.HTTPPort); err != nil {
		return err
	}
	if c.Server.GrpcPort == c.Server.HTTPPort {
		return fmt.Errorf("config: server ports must differ, both are %d", c.Server.GrpcPort)
	}
	if _, err := c.RefreshInterval(); err != nil {
		return err
	}
	if len(c.Time.Sources) == 0 {
		return errors.New("config: time.sources must name at least one source")
	}
	for _, s := range c.Time.Sources {
		if s != "system" {
			return fmt.Errorf("config: unknown time source %q", s)
		}
	}
	if c.Index.Engine != memory.EngineName {
		return fmt.Errorf("config: unknown index engine %q", c.Index.Engine)
	}
	return nil
}

func validPort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("config: %s %d out of range", name, port)
	}
	return nil
}
