package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig          `yaml:"app"`
	Database      DatabaseConfig     `yaml:"database"`
	Redis         RedisConfig        `yaml:"redis"`
	Backup        BackupConfig       `yaml:"backup"`
	Monitoring    MonitoringConfig   `yaml:"monitoring"`
	Logging       LoggingConfig      `yaml:"logging"`
	API           APIConfig          `yaml:"api"`
	Booking       BookingConfig      `yaml:"booking"`
	Notifications NotificationConfig `yaml:"notifications"`
	SeedPath      string             `yaml:"seed_path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type BookingConfig struct {
	CreateTxTimeout   time.Duration `yaml:"create_tx_timeout"`
	BatchTxTimeout    time.Duration `yaml:"batch_tx_timeout"`
	MaxRangeDays      int           `yaml:"max_range_days"`
	NumberWidth       int           `yaml:"number_width"`
	NumberRetry       int           `yaml:"number_retry"`
	OccupancyCacheTTL time.Duration `yaml:"occupancy_cache_ttl"`
}

type NotificationConfig struct {
	Enabled        bool          `yaml:"enabled"`
	WebhookURL     string        `yaml:"webhook_url"`
	AMQPURL        string        `yaml:"amqp_url"`
	AMQPExchange   string        `yaml:"amqp_exchange"`
	AMQPRoutingKey string        `yaml:"amqp_routing_key"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool `yaml:"enabled"`
	Port       int  `yaml:"port"`
	Reflection bool `yaml:"reflection"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type DatabaseConfig struct {
	Path          string `yaml:"path"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
	StoragePath   string        `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Booking.NumberWidth < 1 || c.Booking.NumberWidth > 18 {
		return fmt.Errorf("booking.number_width must be between 1 and 18, got %d", c.Booking.NumberWidth)
	}
	if c.Booking.MaxRangeDays < 1 {
		return fmt.Errorf("booking.max_range_days must be positive, got %d", c.Booking.MaxRangeDays)
	}
	if c.Notifications.Enabled && c.Notifications.WebhookURL == "" && c.Notifications.AMQPURL == "" {
		return errors.New("notifications enabled but neither webhook_url nor amqp_url is set")
	}
	if c.Backup.Enabled && c.Backup.StoragePath == "" {
		return errors.New("backup enabled but storage_path is empty")
	}
	return ValidateAPIKeys(c.API.Auth.APIKeys)
}

// ValidateAPIKeys rejects empty and duplicate keys.
func ValidateAPIKeys(keys []APIClientKey) error {
	seen := make(map[string]bool)
	for _, k := range keys {
		if k.Key == "" {
			return fmt.Errorf("api key for client '%s' is empty", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for client '%s'", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.Database.BusyTimeoutMS == 0 {
		c.Database.BusyTimeoutMS = 5000
	}

	if c.Booking.CreateTxTimeout == 0 {
		c.Booking.CreateTxTimeout = 30 * time.Second
	}
	if c.Booking.BatchTxTimeout == 0 {
		c.Booking.BatchTxTimeout = 120 * time.Second
	}
	if c.Booking.MaxRangeDays == 0 {
		c.Booking.MaxRangeDays = 365
	}
	if c.Booking.NumberWidth == 0 {
		c.Booking.NumberWidth = 7
	}
	if c.Booking.NumberRetry == 0 {
		c.Booking.NumberRetry = 5
	}
	if c.Booking.OccupancyCacheTTL == 0 {
		c.Booking.OccupancyCacheTTL = 5 * time.Minute
	}

	if c.Notifications.PollInterval == 0 {
		c.Notifications.PollInterval = 5 * time.Second
	}
	if c.Notifications.MaxRetries == 0 {
		c.Notifications.MaxRetries = 5
	}
	if c.Notifications.RetryBaseDelay == 0 {
		c.Notifications.RetryBaseDelay = 2 * time.Second
	}
	if c.Notifications.RetryMaxDelay == 0 {
		c.Notifications.RetryMaxDelay = time.Minute
	}
	if c.Notifications.AMQPExchange == "" {
		c.Notifications.AMQPExchange = "roombook.events"
	}

	if c.Backup.Interval == 0 {
		c.Backup.Interval = 24 * time.Hour
	}
	if c.Backup.RetentionDays == 0 {
		c.Backup.RetentionDays = 7
	}
}
