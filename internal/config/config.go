package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// CORS configuration
	CORS CORSConfig

	// Payment gateway configuration
	Payment PaymentConfig

	// Real-time channel registry (Redis)
	Redis RedisConfig

	// Domain event broker (RabbitMQ)
	Broker BrokerConfig

	// Background session status sweeps
	Sweeper SweeperConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration.
// Tokens are issued by the auth service; this service only validates them.
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// PaymentConfig holds Stripe configuration
type PaymentConfig struct {
	SecretKey       string // Stripe secret key (never exposed to clients)
	WebhookSecret   string // Signing secret of the webhook endpoint
	APIVersion      string // API version pinned on ephemeral keys for the mobile SDK
	DefaultCurrency string
	MaxWebhookBytes int64
}

// RedisConfig holds the presence registry connection settings
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	TLS            bool
	PresencePrefix string
	PushTimeout    time.Duration
}

// BrokerConfig holds RabbitMQ settings. An empty URL disables event publication.
type BrokerConfig struct {
	URL            string
	Exchange       string
	PublishTimeout time.Duration
}

// SweeperConfig holds the cron schedule for session status sweeps
type SweeperConfig struct {
	Enabled  bool
	Schedule string // cron format with seconds
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Payment: PaymentConfig{
			SecretKey:       getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:   getEnv("STRIPE_WEBHOOK_SECRET", ""),
			APIVersion:      getEnv("STRIPE_EPHEMERAL_KEY_API_VERSION", ""),
			DefaultCurrency: strings.ToLower(getEnv("PAYMENT_DEFAULT_CURRENCY", "usd")),
			MaxWebhookBytes: int64(getEnvAsInt("STRIPE_WEBHOOK_MAX_BYTES", 65536)),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", "localhost:6379"),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvAsInt("REDIS_DB", 0),
			TLS:            getEnvAsBool("REDIS_TLS", false),
			PresencePrefix: getEnv("REDIS_PRESENCE_PREFIX", "presence:user:"),
			PushTimeout:    time.Duration(getEnvAsInt("REDIS_PUSH_TIMEOUT_MS", 2000)) * time.Millisecond,
		},
		Broker: BrokerConfig{
			URL:            getEnv("BROKER_URL", ""),
			Exchange:       getEnv("BROKER_EXCHANGE", "marketplace.events"),
			PublishTimeout: time.Duration(getEnvAsInt("BROKER_PUBLISH_TIMEOUT_MS", 2000)) * time.Millisecond,
		},
		Sweeper: SweeperConfig{
			Enabled:  getEnvAsBool("SESSION_SWEEPER_ENABLED", true),
			Schedule: getEnv("SESSION_SWEEPER_SCHEDULE", "0 * * * * *"),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Payment.SecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required")
	}

	if c.Payment.WebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}

	if len(c.Payment.DefaultCurrency) != 3 {
		return fmt.Errorf("PAYMENT_DEFAULT_CURRENCY must be a 3-letter ISO code, got %q", c.Payment.DefaultCurrency)
	}

	if c.Payment.MaxWebhookBytes <= 0 {
		return fmt.Errorf("STRIPE_WEBHOOK_MAX_BYTES must be positive")
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
