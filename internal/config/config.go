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

	// Booking lifecycle configuration (TTLs, sweeper cadence)
	Booking BookingConfig

	// Trust score collaborator
	TrustScore TrustScoreConfig

	// Payment callback verification
	Payment PaymentConfig

	// Notification fan-out
	Notifications NotificationConfig

	// CORS configuration
	CORS CORSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string
	Environment     string // development, staging, production
	LogLevel        string // debug, info, warn, error
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	RunMigrations      bool
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret string
	Issuer string
}

// BookingConfig holds soft lock and order lifecycle settings
type BookingConfig struct {
	SoftLockTTL           time.Duration // validity of a preview quote
	PaymentTTL            time.Duration // payment deadline of a pending order
	SoftLockSweepInterval time.Duration
	OrderSweepInterval    time.Duration
	SweepBatchSize        int
	MaxRentalDuration     time.Duration
	CostTolerance         float64
}

// TrustScoreConfig holds trust score provider settings
type TrustScoreConfig struct {
	ServiceURL   string // empty = static provider
	DefaultScore int
	Timeout      time.Duration
}

// PaymentConfig holds payment callback verification settings
type PaymentConfig struct {
	SigningSecret string // HMAC-SHA512 secret shared with the payment collaborator
	Currency      string
}

// NotificationConfig holds notification fan-out settings
type NotificationConfig struct {
	RedisAddr        string // empty = single instance, in-process hub only
	RedisChannel     string
	KafkaBrokers     []string // empty = no lifecycle event stream
	KafkaTopic       string
	SessionBuffer    int
	HeartbeatSeconds int
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 20),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
			RunMigrations:      getEnvAsBool("DATABASE_RUN_MIGRATIONS", true),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			Issuer: getEnv("JWT_ISSUER", ""),
		},
		Booking: BookingConfig{
			SoftLockTTL:           getEnvAsDuration("SOFT_LOCK_TTL", 5*time.Minute),
			PaymentTTL:            getEnvAsDuration("PAYMENT_TTL", 5*time.Minute),
			SoftLockSweepInterval: getEnvAsDuration("SOFT_LOCK_SWEEP_INTERVAL", time.Minute),
			OrderSweepInterval:    getEnvAsDuration("ORDER_SWEEP_INTERVAL", 30*time.Second),
			SweepBatchSize:        getEnvAsInt("SWEEP_BATCH_SIZE", 200),
			MaxRentalDuration:     getEnvAsDuration("MAX_RENTAL_DURATION", 30*24*time.Hour),
			CostTolerance:         getEnvAsFloat("COST_TOLERANCE", 0.01),
		},
		TrustScore: TrustScoreConfig{
			ServiceURL:   getEnv("TRUST_SCORE_URL", ""),
			DefaultScore: getEnvAsInt("TRUST_SCORE_DEFAULT", 100),
			Timeout:      getEnvAsDuration("TRUST_SCORE_TIMEOUT", 3*time.Second),
		},
		Payment: PaymentConfig{
			SigningSecret: getEnv("PAYMENT_SIGNING_SECRET", ""),
			Currency:      getEnv("PAYMENT_CURRENCY", "VND"),
		},
		Notifications: NotificationConfig{
			RedisAddr:        getEnv("REDIS_ADDR", ""),
			RedisChannel:     getEnv("REDIS_NOTIFICATION_CHANNEL", "booking:notifications"),
			KafkaBrokers:     getEnvAsSlice("KAFKA_BROKERS", nil),
			KafkaTopic:       getEnv("KAFKA_LIFECYCLE_TOPIC", "booking.lifecycle"),
			SessionBuffer:    getEnvAsInt("NOTIFICATION_SESSION_BUFFER", 16),
			HeartbeatSeconds: getEnvAsInt("NOTIFICATION_HEARTBEAT_SECONDS", 25),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
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

	if c.Payment.SigningSecret == "" {
		return fmt.Errorf("PAYMENT_SIGNING_SECRET is required")
	}

	if c.Booking.SoftLockTTL <= 0 || c.Booking.PaymentTTL <= 0 {
		return fmt.Errorf("SOFT_LOCK_TTL and PAYMENT_TTL must be positive")
	}

	if c.Booking.SoftLockSweepInterval <= 0 || c.Booking.OrderSweepInterval <= 0 {
		return fmt.Errorf("sweep intervals must be positive")
	}

	if c.Booking.SweepBatchSize < 1 {
		return fmt.Errorf("SWEEP_BATCH_SIZE must be at least 1")
	}

	if c.TrustScore.DefaultScore < 0 || c.TrustScore.DefaultScore > 100 {
		return fmt.Errorf("TRUST_SCORE_DEFAULT must be between 0 and 100")
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid float value for %s, using default: %v", key, defaultValue)
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

// getEnvAsDuration accepts Go duration strings ("90s", "5m") or plain seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Printf("Invalid duration value for %s, using default: %s", key, defaultValue)
	return defaultValue
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
