package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for tiond.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Operator OperatorConfig `yaml:"operator"`
	API      APIConfig      `yaml:"api"`
}

// SiteConfig contains site-specific information.
// Timezone is used to evaluate time-window triggers.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
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

// GatewayConfig contains settings for the BLE gateway reached over MQTT.
type GatewayConfig struct {
	// RequestTimeout bounds a single gateway round trip (seconds).
	RequestTimeout int `yaml:"request_timeout"`
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

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// OperatorConfig contains device supervision and automation settings.
// Intervals and timeouts are in seconds.
type OperatorConfig struct {
	PollInterval     int           `yaml:"poll_interval"`
	ScenarioInterval int           `yaml:"scenario_interval"`
	ConnectRetries   int           `yaml:"connect_retries"`
	BackoffUnit      int           `yaml:"backoff_unit"`
	IOTimeout        int           `yaml:"io_timeout"`
	ConnectRate      float64       `yaml:"connect_rate"` // connect attempts per second, 0 = unlimited
	Breaker          BreakerConfig `yaml:"breaker"`
}

// BreakerConfig contains per-device write circuit breaker settings.
type BreakerConfig struct {
	Failures    int `yaml:"failures"`
	OpenTimeout int `yaml:"open_timeout"`
	Interval    int `yaml:"interval"`
}

// APIConfig contains the ops HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: TION_SECTION_KEY
// For example: TION_DATABASE_PATH, TION_POLL_INTERVAL
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "home",
			Name:     "Tion",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/tion.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "tiond",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Gateway: GatewayConfig{
			RequestTimeout: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Operator: OperatorConfig{
			PollInterval:     10,
			ScenarioInterval: 60,
			ConnectRetries:   3,
			BackoffUnit:      1,
			IOTimeout:        15,
			ConnectRate:      1,
			Breaker: BreakerConfig{
				Failures:    5,
				OpenTimeout: 60,
				Interval:    0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 30,
				Idle:  60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: TION_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TION_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("TION_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("TION_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("TION_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("TION_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("TION_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Malformed numbers are ignored so the file value stands.
	if n, ok := envInt("TION_POLL_INTERVAL"); ok {
		cfg.Operator.PollInterval = n
	}
	if n, ok := envInt("TION_SCENARIO_INTERVAL"); ok {
		cfg.Operator.ScenarioInterval = n
	}
	if n, ok := envInt("TION_CONNECT_RETRIES"); ok {
		cfg.Operator.ConnectRetries = n
	}
	if n, ok := envInt("TION_API_PORT"); ok {
		cfg.API.Port = n
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if c.Site.Timezone != "" {
		if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("site.timezone %q is not a known zone", c.Site.Timezone))
		}
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Gateway.RequestTimeout < 1 {
		errs = append(errs, "gateway.request_timeout must be at least 1 second")
	}

	op := c.Operator
	if op.PollInterval < 1 {
		errs = append(errs, "operator.poll_interval must be at least 1 second")
	}
	if op.ScenarioInterval < 1 {
		errs = append(errs, "operator.scenario_interval must be at least 1 second")
	}
	if op.ConnectRetries < 1 {
		errs = append(errs, "operator.connect_retries must be at least 1")
	}
	if op.BackoffUnit < 0 {
		errs = append(errs, "operator.backoff_unit must not be negative")
	}
	if op.IOTimeout < 1 {
		errs = append(errs, "operator.io_timeout must be at least 1 second")
	}
	if op.ConnectRate < 0 {
		errs = append(errs, "operator.connect_rate must not be negative")
	}
	if op.Breaker.Failures < 1 {
		errs = append(errs, "operator.breaker.failures must be at least 1")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Location returns the site time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c.Site.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PollPeriod returns the status polling period.
func (o OperatorConfig) PollPeriod() time.Duration {
	return time.Duration(o.PollInterval) * time.Second
}

// ScenarioPeriod returns the rule evaluation period.
func (o OperatorConfig) ScenarioPeriod() time.Duration {
	return time.Duration(o.ScenarioInterval) * time.Second
}

// BackoffUnitDuration returns the base unit for connect backoff.
func (o OperatorConfig) BackoffUnitDuration() time.Duration {
	return time.Duration(o.BackoffUnit) * time.Second
}

// IOTimeoutDuration returns the bound on a single device call.
func (o OperatorConfig) IOTimeoutDuration() time.Duration {
	return time.Duration(o.IOTimeout) * time.Second
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
