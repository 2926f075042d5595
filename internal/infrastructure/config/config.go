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

// Config is the root configuration structure for nativehost.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
	Process   ProcessConfig   `yaml:"process"`
	Java      JavaConfig      `yaml:"java"`
	Dialog    DialogConfig    `yaml:"dialog"`
	Release   ReleaseConfig   `yaml:"release"`
	History   HistoryConfig   `yaml:"history"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Security  SecurityConfig  `yaml:"security"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
// The desktop shell's webview origin must be listed here in production.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
	SendBuffer     int `yaml:"send_buffer"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ProcessConfig controls the build-process supervisor.
type ProcessConfig struct {
	// KillGrace is how long a killed build may take to exit after SIGTERM
	// before it is sent SIGKILL. Zero disables escalation.
	KillGrace time.Duration `yaml:"kill_grace"`

	// EventBuffer is the per-process queue between pipe readers and the relay.
	EventBuffer int `yaml:"event_buffer"`

	// MaxProcesses limits concurrently registered builds. 0 means unlimited.
	MaxProcesses int `yaml:"max_processes"`

	// ShutdownTimeout bounds how long shutdown waits for builds to exit.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// JavaConfig controls JVM discovery for getJavas.
type JavaConfig struct {
	// SearchPaths are extra directories scanned for JVM installations,
	// in addition to the platform defaults.
	SearchPaths []string `yaml:"search_paths"`

	// VersionFilter keeps only JVMs whose version starts with this prefix.
	// Empty keeps everything.
	VersionFilter string `yaml:"version_filter"`

	// CacheTTL is how long discovery results are reused.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// DialogConfig controls native dialogs.
type DialogConfig struct {
	// Backend is "auto" (system dialogs) or "none" (dialog operations fail).
	Backend string `yaml:"backend"`
}

// ReleaseConfig controls the getServerVersion lookup.
type ReleaseConfig struct {
	// URLTemplate receives the episode argument via a single %s verb.
	URLTemplate string        `yaml:"url_template"`
	Timeout     time.Duration `yaml:"timeout"`
}

// HistoryConfig contains the SQLite run-history settings.
type HistoryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Path        string        `yaml:"path"`
	WALMode     bool          `yaml:"wal_mode"`
	BusyTimeout int           `yaml:"busy_timeout"`
	Retention   time.Duration `yaml:"retention"`
}

// MQTTConfig contains MQTT broker connection settings for mirroring process events.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	// QueueSize is the outbound event queue; events are dropped when it is full.
	QueueSize int `yaml:"queue_size"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings for run metrics.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// SecurityConfig contains local API authentication settings.
type SecurityConfig struct {
	// TokenSecret signs the bearer token handed to the desktop shell.
	// Empty disables authentication (loopback development only).
	TokenSecret string `yaml:"token_secret"`

	// TokenTTL is the lifetime of the issued token in minutes.
	TokenTTL int `yaml:"token_ttl"`

	// TokenFile is where the issued token is written for the shell to read.
	TokenFile string `yaml:"token_file"`
}

// minTokenSecretLength is the shortest accepted HS256 secret.
const minTokenSecretLength = 32

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// If allowMissing is true, a missing file is not an error and defaults are used.
// Environment variables follow the pattern: NATIVEHOST_SECTION_KEY
func Load(path string, allowMissing bool) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case allowMissing && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// The API binds to loopback only: the desktop shell is the sole client.
func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 7878,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  120,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 1 << 20,
			PingInterval:   30,
			PongTimeout:    10,
			SendBuffer:     1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Process: ProcessConfig{
			KillGrace:       10 * time.Second,
			EventBuffer:     256,
			ShutdownTimeout: 15 * time.Second,
		},
		Java: JavaConfig{
			CacheTTL: 5 * time.Minute,
		},
		Dialog: DialogConfig{
			Backend: "auto",
		},
		Release: ReleaseConfig{
			URLTemplate: "https://api.battlecode.org/api/episode/e/bc%s/?format=json",
			Timeout:     10 * time.Second,
		},
		History: HistoryConfig{
			Enabled:     true,
			Path:        "./data/nativehost.db",
			WALMode:     true,
			BusyTimeout: 5,
			Retention:   30 * 24 * time.Hour,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "nativehost",
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			QueueSize: 1024,
		},
		Security: SecurityConfig{
			TokenTTL: 24 * 60,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: NATIVEHOST_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// API
	if v := os.Getenv("NATIVEHOST_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("NATIVEHOST_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Logging
	if v := os.Getenv("NATIVEHOST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// History
	if v := os.Getenv("NATIVEHOST_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}

	// MQTT
	if v := os.Getenv("NATIVEHOST_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("NATIVEHOST_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("NATIVEHOST_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("NATIVEHOST_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - token secret should never live in the config file
	if v := os.Getenv("NATIVEHOST_TOKEN_SECRET"); v != "" {
		cfg.Security.TokenSecret = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Process.EventBuffer < 1 {
		errs = append(errs, "process.event_buffer must be at least 1")
	}
	if c.Process.KillGrace < 0 {
		errs = append(errs, "process.kill_grace must not be negative")
	}
	if c.Process.MaxProcesses < 0 {
		errs = append(errs, "process.max_processes must not be negative")
	}

	switch c.Dialog.Backend {
	case "", "auto", "none":
	default:
		errs = append(errs, fmt.Sprintf("dialog.backend %q is not supported", c.Dialog.Backend))
	}

	if c.Release.URLTemplate != "" && strings.Count(c.Release.URLTemplate, "%s") != 1 {
		errs = append(errs, "release.url_template must contain exactly one %s")
	}

	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, "history.path is required when history is enabled")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Security.TokenSecret != "" && len(c.Security.TokenSecret) < minTokenSecretLength {
		errs = append(errs, "security.token_secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
