package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Known Bestway (Gizwits) API endpoints per region.
const (
	APIRootEU = "https://euapi.gizwits.com"
	APIRootUS = "https://usapi.gizwits.com"
)

// Config is the root configuration structure for the Bestway bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Vendor    VendorConfig    `yaml:"vendor"`
	Polling   PollingConfig   `yaml:"polling"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// VendorConfig contains Bestway cloud account and endpoint settings.
type VendorConfig struct {
	// Region selects a known API endpoint: "eu" or "us".
	// Ignored when APIRoot is set explicitly.
	Region  string `yaml:"region"`
	APIRoot string `yaml:"api_root"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Timeout is the per-call HTTP timeout in seconds.
	Timeout int `yaml:"timeout"`

	// TokenExpiryMargin is how long before token expiry a re-login is
	// triggered, in seconds.
	TokenExpiryMargin int `yaml:"token_expiry_margin"`
}

// PollingConfig contains polling cadence and backoff settings.
//
// The vendor API is aggressively rate-limited, so the defaults are
// deliberately conservative: device status every 30s, the device list
// (bindings) every 10 minutes.
type PollingConfig struct {
	StatusInterval   int           `yaml:"status_interval"`
	BindingsInterval int           `yaml:"bindings_interval"`
	Backoff          BackoffConfig `yaml:"backoff"`
}

// BackoffConfig contains retry backoff settings for failed poll cycles.
type BackoffConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
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
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
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
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket state stream settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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
// Environment variables follow the pattern: BESTWAY_SECTION_KEY
// For example: BESTWAY_VENDOR_USERNAME, BESTWAY_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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
		Vendor: VendorConfig{
			Region:            "eu",
			Timeout:           10,
			TokenExpiryMargin: 3600,
		},
		Polling: PollingConfig{
			StatusInterval:   30,
			BindingsInterval: 600,
			Backoff: BackoffConfig{
				InitialDelay: 5,
				MaxDelay:     300,
			},
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "bestway-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BESTWAY_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Vendor account - credentials are the values most often kept out of
	// the config file.
	if v := os.Getenv("BESTWAY_VENDOR_USERNAME"); v != "" {
		cfg.Vendor.Username = v
	}
	if v := os.Getenv("BESTWAY_VENDOR_PASSWORD"); v != "" {
		cfg.Vendor.Password = v
	}
	if v := os.Getenv("BESTWAY_VENDOR_API_ROOT"); v != "" {
		cfg.Vendor.APIRoot = v
	}
	if v := os.Getenv("BESTWAY_VENDOR_REGION"); v != "" {
		cfg.Vendor.Region = v
	}

	// Polling
	if v := os.Getenv("BESTWAY_POLLING_STATUS_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Polling.StatusInterval = n
		}
	}

	// MQTT
	if v := os.Getenv("BESTWAY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BESTWAY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BESTWAY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("BESTWAY_API_HOST"); v != "" {
		cfg.API.Host = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Vendor.Username == "" {
		errs = append(errs, "vendor.username is required (set BESTWAY_VENDOR_USERNAME environment variable)")
	}
	if c.Vendor.Password == "" {
		errs = append(errs, "vendor.password is required (set BESTWAY_VENDOR_PASSWORD environment variable)")
	}
	if c.Vendor.APIRoot == "" {
		switch strings.ToLower(c.Vendor.Region) {
		case "eu", "us":
		default:
			errs = append(errs, `vendor.region must be "eu" or "us" when vendor.api_root is not set`)
		}
	}
	if c.Vendor.Timeout < 1 {
		errs = append(errs, "vendor.timeout must be at least 1 second")
	}

	if c.Polling.StatusInterval < 1 {
		errs = append(errs, "polling.status_interval must be at least 1 second")
	}
	if c.Polling.BindingsInterval < c.Polling.StatusInterval {
		errs = append(errs, "polling.bindings_interval must not be shorter than polling.status_interval")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ResolvedAPIRoot returns the vendor API root, resolving the region
// shorthand when no explicit root is configured.
func (c *Config) ResolvedAPIRoot() string {
	if c.Vendor.APIRoot != "" {
		return c.Vendor.APIRoot
	}
	if strings.EqualFold(c.Vendor.Region, "us") {
		return APIRootUS
	}
	return APIRootEU
}

// GetVendorTimeout returns the per-call vendor HTTP timeout as a Duration.
func (c *Config) GetVendorTimeout() time.Duration {
	return time.Duration(c.Vendor.Timeout) * time.Second
}

// GetTokenExpiryMargin returns the token refresh safety margin as a Duration.
func (c *Config) GetTokenExpiryMargin() time.Duration {
	return time.Duration(c.Vendor.TokenExpiryMargin) * time.Second
}

// GetStatusInterval returns the status polling interval as a Duration.
func (c *Config) GetStatusInterval() time.Duration {
	return time.Duration(c.Polling.StatusInterval) * time.Second
}

// GetBindingsInterval returns the bindings refresh interval as a Duration.
func (c *Config) GetBindingsInterval() time.Duration {
	return time.Duration(c.Polling.BindingsInterval) * time.Second
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
