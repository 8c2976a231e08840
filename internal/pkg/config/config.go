package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

// MonitorConfig tunes the proximity pipeline. The safety band thresholds
// themselves are fixed in code; these knobs cover cadence and filtering.
type MonitorConfig struct {
	TickIntervalMs     int     `mapstructure:"tick_interval_ms"`
	PositionCapacity   int     `mapstructure:"position_capacity"`
	AccuracyThresholdM float64 `mapstructure:"accuracy_threshold_m"`
	MaxSpeedMps        float64 `mapstructure:"max_speed_mps"`
	HeadingCapacity    int     `mapstructure:"heading_capacity"`
	CooldownMs         int64   `mapstructure:"cooldown_ms"`
	SessionTTLMinutes  int     `mapstructure:"session_ttl_minutes"`
	CriticalStreak     int     `mapstructure:"critical_streak"`
}

func (m MonitorConfig) TickInterval() time.Duration {
	return time.Duration(m.TickIntervalMs) * time.Millisecond
}

func (m MonitorConfig) SessionTTL() time.Duration {
	return time.Duration(m.SessionTTLMinutes) * time.Minute
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "digsentry")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "digsentry")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("monitor.tick_interval_ms", 2500)
	v.SetDefault("monitor.position_capacity", 8)
	v.SetDefault("monitor.accuracy_threshold_m", 15.0)
	v.SetDefault("monitor.max_speed_mps", 30.0)
	v.SetDefault("monitor.heading_capacity", 10)
	v.SetDefault("monitor.cooldown_ms", 300000)
	v.SetDefault("monitor.session_ttl_minutes", 10)
	v.SetDefault("monitor.critical_streak", 3)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "escalation-queue")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: DIGSENTRY_DATABASE_HOST → database.host
	v.SetEnvPrefix("DIGSENTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Monitor.TickIntervalMs < 500 {
		errs = append(errs, fmt.Sprintf("monitor.tick_interval_ms must be at least 500, got %d", c.Monitor.TickIntervalMs))
	}
	if c.Monitor.PositionCapacity < 3 {
		errs = append(errs, fmt.Sprintf("monitor.position_capacity must be at least 3, got %d", c.Monitor.PositionCapacity))
	}
	if c.Monitor.CriticalStreak <= 0 {
		errs = append(errs, fmt.Sprintf("monitor.critical_streak must be positive, got %d", c.Monitor.CriticalStreak))
	}
	if c.Temporal.HostPort == "" {
		errs = append(errs, "temporal.host_port is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
