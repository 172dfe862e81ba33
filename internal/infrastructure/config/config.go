package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Skybridge Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Core      CoreConfig      `yaml:"core"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Database  DatabaseConfig  `yaml:"database"`
	History   HistoryConfig   `yaml:"history"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	TSDB      TSDBConfig      `yaml:"tsdb"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CoreConfig contains settings for the telescope control core itself.
type CoreConfig struct {
	// DataDir is the directory holding the persisted documents
	// (telescopes.json, connections.json, device_models.json) and
	// per-slot server logs.
	DataDir string `yaml:"data_dir"`

	// ServersDir is the directory holding telescope server executables.
	// Empty means executables are resolved through PATH.
	ServersDir string `yaml:"servers_dir"`

	// TickInterval is the communication loop period in milliseconds.
	// Each tick drains inbound messages and flushes queued goto commands
	// for every active slot.
	TickInterval int `yaml:"tick_interval"`

	// ServerLogs enables capturing spawned server process output to
	// per-slot log files under DataDir/logs.
	ServerLogs bool `yaml:"server_logs"`

	// ReadinessTimeout is how long to wait (seconds) for a spawned server
	// to start accepting TCP connections before the start is rolled back.
	ReadinessTimeout int `yaml:"readiness_timeout"`

	// StopGracePeriod is how long to wait (seconds) for a spawned server
	// to exit after SIGTERM before escalating to SIGKILL.
	StopGracePeriod int `yaml:"stop_grace_period"`
}

// CatalogConfig contains device catalog source locations.
type CatalogConfig struct {
	// DeviceModels is the path to the JSON device model catalog.
	// Empty means DataDir/device_models.json.
	DeviceModels string `yaml:"device_models"`

	// INDIDrivers is the path to an INDI drivers XML catalog to merge in.
	// Empty disables INDI models.
	INDIDrivers string `yaml:"indi_drivers"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// HistoryConfig contains event history retention settings.
type HistoryConfig struct {
	// RetentionDays is how long connection and goto events are kept.
	RetentionDays int `yaml:"retention_days"`

	// PruneInterval is how often (hours) expired events are deleted.
	PruneInterval int `yaml:"prune_interval"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	AuthToken string           `yaml:"auth_token"`
	TLS       TLSConfig        `yaml:"tls"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	CORS      CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// TSDBConfig contains VictoriaMetrics connection settings.
// TSDB and InfluxDB are alternative telemetry sinks; enabling both is valid
// but unusual (samples are written to each).
type TSDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// TelemetryConfig controls position telemetry sampling.
type TelemetryConfig struct {
	// SampleInterval is the minimum gap in milliseconds between position
	// samples written per slot. Zero disables sampling entirely.
	SampleInterval int `yaml:"sample_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SKYBRIDGE_SECTION_KEY
// For example: SKYBRIDGE_DATABASE_PATH, SKYBRIDGE_API_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Core: CoreConfig{
			DataDir:          "./data",
			TickInterval:     100,
			ServerLogs:       false,
			ReadinessTimeout: 10,
			StopGracePeriod:  5,
		},
		Database: DatabaseConfig{
			Path:        "./data/skybridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		History: HistoryConfig{
			RetentionDays: 30,
			PruneInterval: 24,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "skybridge-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8780,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/v1/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Telemetry: TelemetryConfig{
			SampleInterval: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SKYBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Core
	if v := os.Getenv("SKYBRIDGE_DATA_DIR"); v != "" {
		cfg.Core.DataDir = v
	}
	if v := os.Getenv("SKYBRIDGE_SERVERS_DIR"); v != "" {
		cfg.Core.ServersDir = v
	}

	// Database
	if v := os.Getenv("SKYBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("SKYBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SKYBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SKYBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("SKYBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SKYBRIDGE_API_TOKEN"); v != "" {
		cfg.API.AuthToken = v
	}

	// InfluxDB
	if v := os.Getenv("SKYBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Core validation
	if c.Core.DataDir == "" {
		errs = append(errs, "core.data_dir is required")
	}
	if c.Core.TickInterval < minTickIntervalMs || c.Core.TickInterval > maxTickIntervalMs {
		errs = append(errs, fmt.Sprintf("core.tick_interval must be between %d and %d milliseconds",
			minTickIntervalMs, maxTickIntervalMs))
	}
	if c.Core.ReadinessTimeout < 1 {
		errs = append(errs, "core.readiness_timeout must be at least 1 second")
	}
	if c.Core.StopGracePeriod < 1 {
		errs = append(errs, "core.stop_grace_period must be at least 1 second")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// History validation
	if c.History.RetentionDays < 1 {
		errs = append(errs, "history.retention_days must be at least 1")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	// The token is optional (LAN deployments behind a trusted boundary run
	// open), but a short token is worse than none: it invites reuse.
	if c.API.AuthToken != "" && len(c.API.AuthToken) < minAuthTokenLength {
		errs = append(errs, fmt.Sprintf("api.auth_token must be at least %d characters", minAuthTokenLength))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Validation bounds.
const (
	minTickIntervalMs  = 10
	maxTickIntervalMs  = 5000
	minAuthTokenLength = 16
)

// TickInterval returns the communication loop period as a Duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Core.TickInterval) * time.Millisecond
}

// ReadinessTimeout returns the server readiness wait as a Duration.
func (c *Config) ReadinessTimeout() time.Duration {
	return time.Duration(c.Core.ReadinessTimeout) * time.Second
}

// StopGracePeriod returns the server termination grace period as a Duration.
func (c *Config) StopGracePeriod() time.Duration {
	return time.Duration(c.Core.StopGracePeriod) * time.Second
}

// SampleInterval returns the telemetry sampling gap as a Duration.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.Telemetry.SampleInterval) * time.Millisecond
}

// TelescopesPath returns the location of the persisted slot descriptions.
func (c *Config) TelescopesPath() string {
	return filepath.Join(c.Core.DataDir, "telescopes.json")
}

// ConnectionsPath returns the location of the companion connection document.
func (c *Config) ConnectionsPath() string {
	return filepath.Join(c.Core.DataDir, "connections.json")
}

// DeviceModelsPath returns the location of the device model catalog.
func (c *Config) DeviceModelsPath() string {
	if c.Catalog.DeviceModels != "" {
		return c.Catalog.DeviceModels
	}
	return filepath.Join(c.Core.DataDir, "device_models.json")
}

// ServerLogDir returns the directory for per-slot server log files.
func (c *Config) ServerLogDir() string {
	return filepath.Join(c.Core.DataDir, "logs")
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
