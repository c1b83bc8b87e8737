// Package config provides configuration management for the charger
// gateway. It supports environment variables, config files (YAML/JSON),
// and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the charger gateway.
type Config struct {
	// Environment is the deployment environment (development, staging, production)
	Environment string `mapstructure:"environment"`

	// RegistersConfigPath is an optional path to a YAML register catalog
	// that overrides the built-in one
	RegistersConfigPath string `mapstructure:"registers_config_path"`

	// Gateway is the Modbus-TCP gateway connection configuration
	Gateway GatewayConfig `mapstructure:"gateway"`

	// Polling configuration
	Polling PollingConfig `mapstructure:"polling"`

	// MQTT configuration
	MQTT MQTTConfig `mapstructure:"mqtt"`

	// HTTP server configuration
	HTTP HTTPConfig `mapstructure:"http"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// GatewayConfig holds the Modbus-TCP gateway connection configuration.
type GatewayConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// UnitID is the Modbus unit identifier of the gateway itself, used
	// for device identification requests
	UnitID int `mapstructure:"unit_id"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`

	// ValidateOnStart probes the gateway connection before the polling
	// loop starts
	ValidateOnStart bool `mapstructure:"validate_on_start"`
}

// PollingConfig holds polling service configuration.
type PollingConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	RediscoverEvery int           `mapstructure:"rediscover_every"`
	MaxPages        int           `mapstructure:"max_pages"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// MQTTConfig holds MQTT client configuration.
type MQTTConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BrokerURL      string        `mapstructure:"broker_url"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	TopicPrefix    string        `mapstructure:"topic_prefix"`
	QoS            byte          `mapstructure:"qos"`
	Retain         bool          `mapstructure:"retain"`
	KeepAlive      time.Duration `mapstructure:"keep_alive"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or console
	Output     string `mapstructure:"output"` // stdout, stderr, or file path
	TimeFormat string `mapstructure:"time_format"`
}

// Load loads configuration from files and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file search paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/charger-gateway")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, will use defaults and env vars
	}

	// Environment variable binding
	v.SetEnvPrefix("CHARGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific environment variables
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Environment
	v.SetDefault("environment", "development")
	v.SetDefault("registers_config_path", "")

	// Gateway
	v.SetDefault("gateway.host", "")
	v.SetDefault("gateway.port", 502)
	v.SetDefault("gateway.unit_id", 82)
	v.SetDefault("gateway.connect_timeout", 5*time.Second)
	v.SetDefault("gateway.idle_timeout", 60*time.Second)
	v.SetDefault("gateway.validate_on_start", true)

	// Polling
	v.SetDefault("polling.interval", 30*time.Second)
	v.SetDefault("polling.read_timeout", 5*time.Second)
	v.SetDefault("polling.rediscover_every", 10)
	v.SetDefault("polling.max_pages", 32)
	v.SetDefault("polling.shutdown_timeout", 30*time.Second)

	// MQTT
	v.SetDefault("mqtt.enabled", true)
	v.SetDefault("mqtt.broker_url", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "charger-gateway")
	v.SetDefault("mqtt.topic_prefix", "charger")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.retain", false)
	v.SetDefault("mqtt.keep_alive", 30*time.Second)
	v.SetDefault("mqtt.connect_timeout", 10*time.Second)
	v.SetDefault("mqtt.publish_timeout", 5*time.Second)
	v.SetDefault("mqtt.reconnect_delay", 5*time.Second)

	// HTTP
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)
}

// bindEnvVars binds environment variables to config keys.
func bindEnvVars(v *viper.Viper) {
	// Gateway environment variables
	_ = v.BindEnv("gateway.host", "GATEWAY_HOST")
	_ = v.BindEnv("gateway.port", "GATEWAY_PORT")
	_ = v.BindEnv("gateway.unit_id", "GATEWAY_UNIT_ID")

	// MQTT environment variables
	_ = v.BindEnv("mqtt.broker_url", "MQTT_BROKER_URL")
	_ = v.BindEnv("mqtt.username", "MQTT_USERNAME")
	_ = v.BindEnv("mqtt.password", "MQTT_PASSWORD")
	_ = v.BindEnv("mqtt.client_id", "MQTT_CLIENT_ID")

	// General environment variables
	_ = v.BindEnv("environment", "ENVIRONMENT")
	_ = v.BindEnv("registers_config_path", "REGISTERS_CONFIG_PATH")

	// HTTP
	_ = v.BindEnv("http.port", "HTTP_PORT")

	// Logging
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
	_ = v.BindEnv("logging.format", "LOG_FORMAT")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Gateway.Host == "" {
		return fmt.Errorf("gateway host is required")
	}
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("invalid gateway port: %d", c.Gateway.Port)
	}
	if c.Gateway.UnitID < 0 || c.Gateway.UnitID > 255 {
		return fmt.Errorf("invalid gateway unit ID: %d", c.Gateway.UnitID)
	}
	if c.Polling.Interval <= 0 {
		return fmt.Errorf("polling interval must be positive")
	}
	if c.Polling.RediscoverEvery <= 0 {
		return fmt.Errorf("polling rediscover_every must be positive")
	}
	if c.Polling.MaxPages <= 0 {
		return fmt.Errorf("polling max_pages must be positive")
	}
	if c.MQTT.Enabled && c.MQTT.BrokerURL == "" {
		return fmt.Errorf("MQTT broker URL is required when MQTT is enabled")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	return nil
}
