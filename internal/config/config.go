// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	Engine      EngineConfig      `yaml:"engine"`
	System      SystemConfig      `yaml:"system"`
	Storage     StorageConfig     `yaml:"storage"`
	LiveServer  LiveServerConfig  `yaml:"live_server"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Alerting    AlertingConfig    `yaml:"alerting"`
}

// EngineConfig contains auction engine settings
type EngineConfig struct {
	Owner         string `yaml:"owner"`
	FeePercentage string `yaml:"fee_percentage"` // decimal string, e.g. "0.001"
	FeeRecipient  string `yaml:"fee_recipient"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel string `yaml:"log_level" validate:"required,oneof=DEBUG INFO WARN ERROR FATAL"`
}

// StorageConfig selects the rebalance store backend
type StorageConfig struct {
	Backend    string `yaml:"backend" validate:"oneof=memory sqlite"`
	SQLitePath string `yaml:"sqlite_path"`
}

// LiveServerConfig contains websocket event feed settings
type LiveServerConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddr    string `yaml:"listen_addr"`
	RateLimitRPS  int    `yaml:"rate_limit_rps"`
	RateLimitBurst int   `yaml:"rate_limit_burst"`
}

// ConcurrencyConfig contains worker pool settings
type ConcurrencyConfig struct {
	BroadcastPoolSize   int `yaml:"broadcast_pool_size" validate:"min=1,max=100"`
	BroadcastPoolBuffer int `yaml:"broadcast_pool_buffer" validate:"min=1,max=10000"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// AlertingConfig contains operator notification settings
type AlertingConfig struct {
	Enabled           bool   `yaml:"enabled"`
	SlackWebhookURL   string `yaml:"slack_webhook_url"`
	TelegramBotToken  string `yaml:"telegram_bot_token"`
	TelegramChatID    string `yaml:"telegram_chat_id"`
	LargeBidThreshold string `yaml:"large_bid_threshold"` // quote notional, decimal string
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string

	if err := c.validateEngineConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateSystemConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateStorageConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateLiveServerConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateAlertingConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

func (c *Config) validateEngineConfig() error {
	if c.Engine.Owner == "" {
		return ValidationError{
			Field:   "engine.owner",
			Message: "engine owner is required",
		}
	}

	fee, err := c.FeePercentage()
	if err != nil {
		return ValidationError{
			Field:   "engine.fee_percentage",
			Value:   c.Engine.FeePercentage,
			Message: "must be a decimal number",
		}
	}
	if fee.IsNegative() || fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return ValidationError{
			Field:   "engine.fee_percentage",
			Value:   c.Engine.FeePercentage,
			Message: "must be in [0, 1)",
		}
	}
	if fee.IsPositive() && c.Engine.FeeRecipient == "" {
		return ValidationError{
			Field:   "engine.fee_recipient",
			Message: "fee recipient is required when fee percentage is nonzero",
		}
	}

	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

func (c *Config) validateStorageConfig() error {
	switch c.Storage.Backend {
	case "", "memory":
		return nil
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return ValidationError{
				Field:   "storage.sqlite_path",
				Message: "sqlite path is required for the sqlite backend",
			}
		}
		return nil
	default:
		return ValidationError{
			Field:   "storage.backend",
			Value:   c.Storage.Backend,
			Message: "must be one of: memory, sqlite",
		}
	}
}

func (c *Config) validateLiveServerConfig() error {
	if !c.LiveServer.Enabled {
		return nil
	}
	if c.LiveServer.ListenAddr == "" {
		return ValidationError{
			Field:   "live_server.listen_addr",
			Message: "listen address is required when the live server is enabled",
		}
	}
	return nil
}

func (c *Config) validateAlertingConfig() error {
	if !c.Alerting.Enabled {
		return nil
	}
	if c.Alerting.SlackWebhookURL == "" && c.Alerting.TelegramBotToken == "" {
		return ValidationError{
			Field:   "alerting",
			Message: "at least one channel is required when alerting is enabled",
		}
	}
	if _, err := c.LargeBidThreshold(); err != nil {
		return ValidationError{
			Field:   "alerting.large_bid_threshold",
			Value:   c.Alerting.LargeBidThreshold,
			Message: "must be a decimal number",
		}
	}
	return nil
}

// LargeBidThreshold parses the bid alert threshold. Empty means disabled.
func (c *Config) LargeBidThreshold() (decimal.Decimal, error) {
	if c.Alerting.LargeBidThreshold == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(c.Alerting.LargeBidThreshold)
}

// FeePercentage parses the configured protocol fee. Empty means zero.
func (c *Config) FeePercentage() (decimal.Decimal, error) {
	if c.Engine.FeePercentage == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(c.Engine.FeePercentage)
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// DefaultConfig returns a default configuration for testing
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Owner:         "owner",
			FeePercentage: "0",
		},
		System: SystemConfig{
			LogLevel: "INFO",
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		LiveServer: LiveServerConfig{
			Enabled:        false,
			ListenAddr:     ":8089",
			RateLimitRPS:   10,
			RateLimitBurst: 20,
		},
		Concurrency: ConcurrencyConfig{
			BroadcastPoolSize:   4,
			BroadcastPoolBuffer: 256,
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9090,
			EnableMetrics: true,
		},
	}
}
