package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Sync    SyncConfig    `yaml:"sync"`
	Monitor MonitorConfig `yaml:"monitor"`
	Demo    DemoConfig    `yaml:"demo"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type SyncConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	MaxConnections int           `yaml:"max_connections"`
	EgressLimit    int           `yaml:"egress_limit"`
	FrameRate      float64       `yaml:"frame_rate"`
	FrameBurst     int           `yaml:"frame_burst"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	ReadLimit      int64         `yaml:"read_limit"`
}

type MonitorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

type DemoConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 15234,
			Host: "127.0.0.1",
		},
		Sync: SyncConfig{
			PollInterval: 50 * time.Millisecond,
			EgressLimit:  1024,
			FrameBurst:   32,
			WriteTimeout: 10 * time.Second,
			PingInterval: 30 * time.Second,
			ReadLimit:    1 << 20,
		},
		Monitor: MonitorConfig{
			Interval: 2 * time.Second,
		},
		Demo: DemoConfig{
			Interval: time.Second,
		},
	}
}

// Load reads path over the defaults. JSON files may carry comments and
// trailing commas.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Sync.PollInterval <= 0 {
		return fmt.Errorf("sync.poll_interval must be positive")
	}
	if c.Sync.MaxConnections < 0 {
		return fmt.Errorf("sync.max_connections must not be negative")
	}
	if c.Sync.EgressLimit < 0 {
		return fmt.Errorf("sync.egress_limit must not be negative")
	}
	if c.Sync.FrameRate < 0 || c.Sync.FrameBurst < 0 {
		return fmt.Errorf("sync.frame_rate and sync.frame_burst must not be negative")
	}
	if c.Sync.ReadLimit < 0 {
		return fmt.Errorf("sync.read_limit must not be negative")
	}
	if c.Monitor.Enabled && c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive")
	}
	if c.Demo.Enabled && c.Demo.Interval <= 0 {
		return fmt.Errorf("demo.interval must be positive")
	}
	return nil
}

// Addr returns host:port for net.Listen.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
