package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration of ptz-server.
// Values come from defaults, then the YAML file, then PTZ_* environment variables.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Engine  EngineConfig  `yaml:"engine"`
	Device  DeviceConfig  `yaml:"device"`
	Summary SummaryConfig `yaml:"summary"`
	Events  EventsConfig  `yaml:"events"`
	Redis   RedisConfig   `yaml:"redis"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
}

type ServerConfig struct {
	Addr                  string   `yaml:"addr"`
	Env                   string   `yaml:"env"` // dev | prod
	MaxConcurrentRequests int      `yaml:"max_concurrent_requests"`
	CORSOrigins           []string `yaml:"cors_origins"`
	TrustedProxies        []string `yaml:"trusted_proxies"`
}

type LoggingConfig struct {
	Level string        `yaml:"level"` // debug | info | warn | error
	File  LogFileConfig `yaml:"file"`  // optional JSON log file, rotated
}

// LogFileConfig enables a rotated JSON log file next to console output.
// An empty Path disables it.
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// EngineConfig tunes tour execution.
type EngineConfig struct {
	SettleTime   time.Duration `yaml:"settle_time"`    // how long a tour move reports "moving"
	IdleBackoff  time.Duration `yaml:"idle_backoff"`   // wait after a pass that dwelled nowhere
	EventLogSize int           `yaml:"event_log_size"` // per-tour event history
}

// DeviceConfig holds the static identity reported by every simulated device.
type DeviceConfig struct {
	Manufacturer    string `yaml:"manufacturer"`
	Model           string `yaml:"model"`
	FirmwareVersion string `yaml:"firmware_version"`
}

type SummaryConfig struct {
	TTL               time.Duration `yaml:"ttl"`
	RefreshTimeout    time.Duration `yaml:"refresh_timeout"`
	AllowStaleOnError bool          `yaml:"allow_stale_on_error"`
}

type EventsConfig struct {
	QueueSize int `yaml:"queue_size"`
}

type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	DB        int           `yaml:"db"`
	StatusTTL time.Duration `yaml:"status_ttl"`
	Channel   string        `yaml:"channel"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// Load reads the config at path. A missing file is not an error: defaults and
// environment overrides still apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// defaults only
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:                  ":8080",
			Env:                   "prod",
			MaxConcurrentRequests: 256,
			CORSOrigins:           []string{"http://localhost:5173", "http://localhost:3000"},
			TrustedProxies:        []string{"127.0.0.1"},
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  LogFileConfig{MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 7, Compress: true},
		},
		Engine: EngineConfig{
			SettleTime:   200 * time.Millisecond,
			IdleBackoff:  time.Second,
			EventLogSize: 500,
		},
		Device: DeviceConfig{
			Manufacturer:    "Dummy ONVIF Camera",
			Model:           "Mock PTZ Camera V2",
			FirmwareVersion: "2.0.0",
		},
		Summary: SummaryConfig{
			TTL:               250 * time.Millisecond,
			RefreshTimeout:    300 * time.Millisecond,
			AllowStaleOnError: true,
		},
		Events: EventsConfig{QueueSize: 1024},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			StatusTTL: 24 * time.Hour,
			Channel:   "ptz:events",
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "ptz-server",
			TopicPrefix: "ptz",
			QoS:         1,
		},
	}
}

func applyEnvOverrides(cfg *Config) error {
	// ENV=dev|prod is the historic switch; PTZ_ENV wins when both are set.
	if v := os.Getenv("ENV"); v != "" {
		cfg.Server.Env = v
	}
	if v := os.Getenv("PTZ_ENV"); v != "" {
		cfg.Server.Env = v
	}
	if v := os.Getenv("PTZ_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("PTZ_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PTZ_LOG_FILE"); v != "" {
		cfg.Logging.File.Path = v
	}

	// Redis
	if v := os.Getenv("PTZ_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PTZ_REDIS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PTZ_REDIS_ENABLED: %w", err)
		}
		cfg.Redis.Enabled = b
	}

	// MQTT
	if v := os.Getenv("PTZ_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("PTZ_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("PTZ_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("PTZ_MQTT_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PTZ_MQTT_ENABLED: %w", err)
		}
		cfg.MQTT.Enabled = b
	}
	return nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	switch c.Server.Env {
	case "dev", "prod":
	default:
		errs = append(errs, fmt.Errorf("server.env must be dev or prod, got %q", c.Server.Env))
	}
	if c.Server.MaxConcurrentRequests < 1 {
		errs = append(errs, errors.New("server.max_concurrent_requests must be positive"))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level))
	}

	if f := c.Logging.File; f.Path != "" && (f.MaxSizeMB < 1 || f.MaxBackups < 0 || f.MaxAgeDays < 0) {
		errs = append(errs, errors.New("logging.file: max_size_mb must be positive, backups and age not negative"))
	}

	if c.Engine.SettleTime < 0 || c.Engine.IdleBackoff < 0 {
		errs = append(errs, errors.New("engine durations must not be negative"))
	}
	if c.Engine.EventLogSize < 1 || c.Engine.EventLogSize > 500 {
		errs = append(errs, fmt.Errorf("engine.event_log_size must be in [1, 500], got %d", c.Engine.EventLogSize))
	}
	if c.Summary.TTL < 0 || c.Summary.RefreshTimeout < 0 {
		errs = append(errs, errors.New("summary durations must not be negative"))
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
	}

	return errors.Join(errs...)
}

func (c *Config) IsDev() bool { return c.Server.Env == "dev" }
