package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zono819/tickpulse/internal/domain/entity"
)

// Feed sources
const (
	FeedSimulator = "simulator"
	FeedRemote    = "remote"
)

// Config represents application configuration
type Config struct {
	App        AppConfig        `yaml:"app"`
	Engine     EngineConfig     `yaml:"engine"`
	Feed       FeedConfig       `yaml:"feed"`
	Simulator  SimulatorConfig  `yaml:"simulator"`
	Server     ServerConfig     `yaml:"server"`
	FeedServer FeedServerConfig `yaml:"feed_server"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// AppConfig represents application settings
type AppConfig struct {
	Name        string        `yaml:"name"`
	Environment string        `yaml:"environment"`
	Debug       bool          `yaml:"debug"`
	GracePeriod time.Duration `yaml:"grace_period"`
}

// EngineConfig represents aggregation engine settings
type EngineConfig struct {
	Timeframe      string        `yaml:"timeframe"`
	History1m      int           `yaml:"history_1m"`
	History1h      int           `yaml:"history_1h"`
	SparklineSize  int           `yaml:"sparkline_size"`
	SparklineEvery int           `yaml:"sparkline_every"`
	MaxCandles     int           `yaml:"max_candles"`
	FlushInterval  time.Duration `yaml:"flush_interval"`
	Throttle       time.Duration `yaml:"throttle"`
	DropStaleTicks bool          `yaml:"drop_stale_ticks"`
	CommandBuffer  int           `yaml:"command_buffer"`
}

// FeedConfig represents tick feed settings
type FeedConfig struct {
	Source       string        `yaml:"source"`
	WSURL        string        `yaml:"ws_url"`
	BaseURL      string        `yaml:"base_url"`
	ReconnectMin time.Duration `yaml:"reconnect_min"`
	ReconnectMax time.Duration `yaml:"reconnect_max"`
	Timeout      time.Duration `yaml:"timeout"`
}

// SimulatorConfig represents synthetic price feed settings
type SimulatorConfig struct {
	TickInterval time.Duration         `yaml:"tick_interval"`
	Seed         int64                 `yaml:"seed"`
	Symbols      []entity.SymbolConfig `yaml:"symbols"`
}

// ServerConfig represents dashboard stream server settings
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	Path         string        `yaml:"path"`
	Codec        string        `yaml:"codec"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
	ReadLimit    int64         `yaml:"read_limit"`
	SendBuffer   int           `yaml:"send_buffer"`
}

// FeedServerConfig represents the feed simulator server settings
type FeedServerConfig struct {
	Addr   string `yaml:"addr"`
	WSPath string `yaml:"ws_path"`
}

// MetricsConfig represents metrics settings
type MetricsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Path          string        `yaml:"path"`
	Namespace     string        `yaml:"namespace"`
	AverageWindow int           `yaml:"average_window"`
	StatsInterval time.Duration `yaml:"stats_interval"`
}

// LogConfig represents logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns configuration with every default filled in
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:        "tickpulse",
			Environment: "development",
			GracePeriod: 5 * time.Second,
		},
		Engine: EngineConfig{
			Timeframe:      string(entity.Timeframe1m),
			History1m:      600,
			History1h:      36_000,
			SparklineSize:  60,
			SparklineEvery: 10,
			MaxCandles:     200,
			FlushInterval:  16 * time.Millisecond,
			Throttle:       16 * time.Millisecond,
			CommandBuffer:  256,
		},
		Feed: FeedConfig{
			Source:       FeedSimulator,
			ReconnectMin: 500 * time.Millisecond,
			ReconnectMax: 30 * time.Second,
			Timeout:      10 * time.Second,
		},
		Simulator: SimulatorConfig{
			TickInterval: 100 * time.Millisecond,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			Path:         "/stream",
			Codec:        "json",
			WriteTimeout: 10 * time.Second,
			PingInterval: 30 * time.Second,
			ReadLimit:    64 * 1024,
			SendBuffer:   64,
		},
		FeedServer: FeedServerConfig{
			Addr:   ":8081",
			WSPath: "/market",
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			Path:          "/metrics",
			Namespace:     "tickpulse",
			AverageWindow: 120,
			StatsInterval: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Load loads configuration from YAML file with env overrides
func Load(path string) (*Config, error) {
	cfg := Default()

	// Load from YAML file
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Override with environment variables
	cfg.loadEnvOverrides()

	// Validate
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadEnvOverrides overrides config with environment variables
func (c *Config) loadEnvOverrides() {
	// App settings
	if v := os.Getenv("APP_ENVIRONMENT"); v != "" {
		c.App.Environment = v
	}
	if v := os.Getenv("APP_DEBUG"); v != "" {
		c.App.Debug = parseBool(v)
	}

	// Engine settings
	if v := os.Getenv("ENGINE_TIMEFRAME"); v != "" {
		c.Engine.Timeframe = v
	}
	if v := os.Getenv("ENGINE_DROP_STALE_TICKS"); v != "" {
		c.Engine.DropStaleTicks = parseBool(v)
	}

	// Feed settings
	if v := os.Getenv("FEED_SOURCE"); v != "" {
		c.Feed.Source = v
	}
	if v := os.Getenv("FEED_WS_URL"); v != "" {
		c.Feed.WSURL = v
	}
	if v := os.Getenv("FEED_BASE_URL"); v != "" {
		c.Feed.BaseURL = v
	}

	// Simulator settings
	if v := os.Getenv("SIMULATOR_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Simulator.Seed = n
		}
	}
	if v := os.Getenv("SIMULATOR_TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Simulator.TickInterval = d
		}
	}

	// Server settings
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SERVER_CODEC"); v != "" {
		c.Server.Codec = v
	}
	if v := os.Getenv("FEED_SERVER_ADDR"); v != "" {
		c.FeedServer.Addr = v
	}

	// Metrics settings
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		c.Metrics.Enabled = parseBool(v)
	}

	// Log settings
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}

// validate validates configuration
func (c *Config) validate() error {
	if _, err := entity.ParseTimeframe(c.Engine.Timeframe); err != nil {
		return fmt.Errorf("engine.timeframe: %w", err)
	}
	if c.Engine.History1m <= 0 || c.Engine.History1h < c.Engine.History1m {
		return fmt.Errorf("engine.history_1h (%d) must be >= engine.history_1m (%d) > 0",
			c.Engine.History1h, c.Engine.History1m)
	}
	if c.Engine.FlushInterval <= 0 {
		return fmt.Errorf("engine.flush_interval must be positive")
	}

	switch c.Feed.Source {
	case FeedSimulator:
	case FeedRemote:
		if c.Feed.WSURL == "" {
			return fmt.Errorf("feed.ws_url is required for remote feed")
		}
	default:
		return fmt.Errorf("feed.source must be %q or %q, got %q", FeedSimulator, FeedRemote, c.Feed.Source)
	}
	if c.Feed.ReconnectMax < c.Feed.ReconnectMin {
		c.Feed.ReconnectMax = c.Feed.ReconnectMin
	}

	if c.Simulator.TickInterval <= 0 {
		return fmt.Errorf("simulator.tick_interval must be positive")
	}

	switch strings.ToLower(c.Server.Codec) {
	case "json", "msgpack":
	default:
		return fmt.Errorf("server.codec must be json or msgpack, got %q", c.Server.Codec)
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		return fmt.Errorf("server.path must start with /")
	}

	if c.Metrics.Enabled && c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics" // default
	}
	return nil
}
