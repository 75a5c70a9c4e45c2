package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the restaurant order service
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Redis    RedisConfig    `yaml:"redis"`
	Engine   EngineConfig   `yaml:"engine"`
	Payment  PaymentConfig  `yaml:"payment"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// RabbitMQConfig holds RabbitMQ connection configuration
type RabbitMQConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// RedisConfig configures the optional menu lookup cache backend
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// EngineConfig tunes the order engine and its deferred transitions
type EngineConfig struct {
	AutoAdvanceDelay time.Duration `yaml:"auto_advance_delay"`
	SchedulerWorkers int           `yaml:"scheduler_workers"`
	TaskTimeout      time.Duration `yaml:"task_timeout"`
	AddedItemPrefix  string        `yaml:"added_item_prefix"`
	MenuCacheTTL     time.Duration `yaml:"menu_cache_ttl"`
}

// PaymentConfig configures receipt numbering
type PaymentConfig struct {
	ReceiptPrefix string `yaml:"receipt_prefix"`
}

// Default returns the configuration used when a key is absent
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "restaurant_user",
			Database: "restaurant_db",
		},
		RabbitMQ: RabbitMQConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    5672,
			User:    "guest",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Engine: EngineConfig{
			AutoAdvanceDelay: 20 * time.Second,
			SchedulerWorkers: 5,
			TaskTimeout:      10 * time.Second,
			AddedItemPrefix:  "ADDED - ",
			MenuCacheTTL:     30 * time.Second,
		},
		Payment: PaymentConfig{
			ReceiptPrefix: "PMT",
		},
	}
}

// Load reads configuration from a YAML file, then applies .env and
// environment overrides. A missing file is not an error.
func Load(filename string) (*Config, error) {
	cfg := Default()

	content, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Database, "DB_NAME")
	setString(&c.RabbitMQ.Host, "RABBITMQ_HOST")
	setString(&c.RabbitMQ.User, "RABBITMQ_USER")
	setString(&c.RabbitMQ.Password, "RABBITMQ_PASSWORD")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Engine.AddedItemPrefix, "ORDER_ADDED_ITEM_PREFIX")
	setString(&c.Payment.ReceiptPrefix, "PAYMENT_RECEIPT_PREFIX")

	for _, ov := range []struct {
		key string
		dst *int
	}{
		{"SERVER_PORT", &c.Server.Port},
		{"DB_PORT", &c.Database.Port},
		{"RABBITMQ_PORT", &c.RabbitMQ.Port},
		{"REDIS_DB", &c.Redis.DB},
		{"ORDER_SCHEDULER_WORKERS", &c.Engine.SchedulerWorkers},
	} {
		if err := setInt(ov.dst, ov.key); err != nil {
			return err
		}
	}

	for _, ov := range []struct {
		key string
		dst *bool
	}{
		{"RABBITMQ_ENABLED", &c.RabbitMQ.Enabled},
		{"REDIS_ENABLED", &c.Redis.Enabled},
	} {
		if err := setBool(ov.dst, ov.key); err != nil {
			return err
		}
	}

	for _, ov := range []struct {
		key string
		dst *time.Duration
	}{
		{"ORDER_AUTO_ADVANCE_DELAY", &c.Engine.AutoAdvanceDelay},
		{"ORDER_TASK_TIMEOUT", &c.Engine.TaskTimeout},
		{"MENU_CACHE_TTL", &c.Engine.MenuCacheTTL},
	} {
		if err := setDuration(ov.dst, ov.key); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the values the services cannot run without
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Engine.AutoAdvanceDelay <= 0 {
		return fmt.Errorf("engine.auto_advance_delay must be positive")
	}
	if c.Engine.SchedulerWorkers <= 0 {
		return fmt.Errorf("engine.scheduler_workers must be positive")
	}
	if c.Engine.MenuCacheTTL < 0 {
		return fmt.Errorf("engine.menu_cache_ttl must not be negative")
	}
	if c.Payment.ReceiptPrefix == "" {
		return fmt.Errorf("payment.receipt_prefix is required")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	return nil
}

// DatabaseURL returns a PostgreSQL connection URL
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Database)
}

// RabbitMQURL returns an AMQP connection URL
func (c *Config) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s value: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s value: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s value: %w", key, err)
	}
	*dst = d
	return nil
}
