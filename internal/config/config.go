package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds everything the salon service reads from the environment.
type Config struct {
	Port     int    `mapstructure:"port" validate:"gt=0,lte=65535"`
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	Env      string `mapstructure:"env" validate:"oneof=development staging production"`

	// Database
	DBHost     string `mapstructure:"db_host" validate:"required"`
	DBPort     int    `mapstructure:"db_port" validate:"gt=0"`
	DBUser     string `mapstructure:"db_user" validate:"required"`
	DBPassword string `mapstructure:"db_password"`
	DBName     string `mapstructure:"db_name" validate:"required"`
	DBSSLMode  string `mapstructure:"db_sslmode"`

	// Redis (idempotency + rate limiting; the service degrades without it)
	RedisHost     string `mapstructure:"redis_host"`
	RedisPort     int    `mapstructure:"redis_port"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	// AWS providers
	AWSRegion    string `mapstructure:"aws_region" validate:"required"`
	SESFromEmail string `mapstructure:"ses_from_email" validate:"required,email"`
	SNSRegion    string `mapstructure:"sns_region"`
	SQSRegion    string `mapstructure:"sqs_region"`
	SQSQueueURL  string `mapstructure:"sqs_queue_url"`

	// UseMockProviders swaps SES/SNS for logging mocks. Forced on outside
	// production unless explicitly overridden.
	UseMockProviders bool `mapstructure:"use_mock_providers"`

	// Notification retry engine
	RetryMaxRetries   int     `mapstructure:"retry_max_retries" validate:"gte=1"`
	RetryBaseDelaySec int     `mapstructure:"retry_base_delay_sec" validate:"gte=1"`
	RetryMaxDelaySec  int     `mapstructure:"retry_max_delay_sec" validate:"gte=1"`
	RetryJitter       float64 `mapstructure:"retry_jitter" validate:"gte=0,lte=1"`
	RetryIntervalSec  int     `mapstructure:"retry_interval_sec" validate:"gte=1"`

	// Availability policy
	SlotIntervalMinutes int `mapstructure:"slot_interval_minutes" validate:"gte=5,lte=240"`
	LeadTimeMinutes     int `mapstructure:"lead_time_minutes" validate:"gte=0"`

	// Booking hours cache
	HoursCacheTTLSec int `mapstructure:"hours_cache_ttl_sec" validate:"gte=0"`
}

// Load reads configuration from environment variables with sensible
// defaults for local development.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("env", "development")

	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "groomly")
	v.SetDefault("db_password", "")
	v.SetDefault("db_name", "groomly")
	v.SetDefault("db_sslmode", "disable")

	v.SetDefault("redis_host", "localhost")
	v.SetDefault("redis_port", 6379)
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("ses_from_email", "noreply@groomly.local")
	v.SetDefault("sns_region", "")
	v.SetDefault("sqs_region", "")
	v.SetDefault("sqs_queue_url", "")
	v.SetDefault("use_mock_providers", false)

	v.SetDefault("retry_max_retries", 2)
	v.SetDefault("retry_base_delay_sec", 30)
	v.SetDefault("retry_max_delay_sec", 300)
	v.SetDefault("retry_jitter", 0.3)
	v.SetDefault("retry_interval_sec", 60)

	v.SetDefault("slot_interval_minutes", 30)
	v.SetDefault("lead_time_minutes", 30)
	v.SetDefault("hours_cache_ttl_sec", 300)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// SNS and SQS fall back to the main AWS region.
	if cfg.SNSRegion == "" {
		cfg.SNSRegion = cfg.AWSRegion
	}
	if cfg.SQSRegion == "" {
		cfg.SQSRegion = cfg.AWSRegion
	}

	// Never talk to real providers from a dev laptop by accident.
	if cfg.Env != "production" && !v.IsSet("use_mock_providers") {
		cfg.UseMockProviders = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks the struct tags. Load calls this; callers building a
// Config by hand (tests) can call it directly.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// RetryBaseDelay returns the configured base backoff as a duration.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelaySec) * time.Second
}

// RetryMaxDelay returns the configured backoff cap as a duration.
func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelaySec) * time.Second
}

// RetryInterval returns how often the retry worker wakes up.
func (c *Config) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalSec) * time.Second
}

// SlotInterval returns the booking grid cadence.
func (c *Config) SlotInterval() time.Duration {
	return time.Duration(c.SlotIntervalMinutes) * time.Minute
}

// LeadTime returns the minimum notice required for same-day bookings.
func (c *Config) LeadTime() time.Duration {
	return time.Duration(c.LeadTimeMinutes) * time.Minute
}

// HoursCacheTTL returns how long business hours are served from memory.
func (c *Config) HoursCacheTTL() time.Duration {
	return time.Duration(c.HoursCacheTTLSec) * time.Second
}
