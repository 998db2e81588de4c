// ============================================================================
// backend/internal/shared/config.go
// Configuration management and environment variable helpers
// ============================================================================

package shared

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ============================================================================
// Configuration Structs
// ============================================================================

// Config holds the full configuration of the class record server
type Config struct {
	ServiceName string
	Environment string // development, staging, production
	HTTPPort    string
	GRPCPort    string

	// Path to a YAML/JSON grading template file; empty uses the built-in templates
	TemplatesFile string

	Log     LogConfig
	Store   StoreConfig
	MongoDB MongoConfig
	Session SessionConfig
	Redis   RedisConfig
	CORS    CORSConfig
}

// LogConfig selects the zap level and encoder
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// StoreConfig selects and bounds the record store backend
type StoreConfig struct {
	Driver         string // mongo, memory
	Timeout        time.Duration
	HealthInterval time.Duration
}

// SessionConfig holds session handoff configuration
type SessionConfig struct {
	Driver string // redis, memory
	Secret string
	TTL    time.Duration

	// Lifetime of the idNumber pre-fill cookie
	PrefillTTL time.Duration
}

// RedisConfig holds Redis connection settings for the session cache
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int // in seconds
}

const (
	DefaultHTTPPort = "8080"
	DefaultGRPCPort = "50054"

	minSessionSecretLen = 16
)

// ============================================================================
// Configuration Loading Functions
// ============================================================================

// LoadEnv loads environment variables from .env file
func LoadEnv(envFile string) error {
	if envFile == "" {
		envFile = ".env"
	}

	if err := godotenv.Load(envFile); err != nil {
		return err
	}

	log.Printf("Successfully loaded environment from %s", envFile)
	return nil
}

// LoadConfig loads the server configuration from environment
func LoadConfig(serviceName string) (*Config, error) {
	config := &Config{
		ServiceName:   serviceName,
		Environment:   GetEnv("ENVIRONMENT", "development"),
		HTTPPort:      GetEnv("HTTP_PORT", DefaultHTTPPort),
		GRPCPort:      GetEnv("GRPC_PORT", DefaultGRPCPort),
		TemplatesFile: GetEnv("GRADING_TEMPLATES_FILE", ""),
	}

	config.Log = LogConfig{
		Level:  GetEnv("LOG_LEVEL", "info"),
		Format: GetEnv("LOG_FORMAT", "json"),
	}

	config.Store = StoreConfig{
		Driver:         strings.ToLower(GetEnv("STORE_DRIVER", "mongo")),
		Timeout:        GetDurationEnv("STORE_TIMEOUT", 10*time.Second),
		HealthInterval: GetDurationEnv("STORE_HEALTH_INTERVAL", 15*time.Second),
	}

	config.MongoDB = MongoConfig{
		URI:            GetEnv("MONGO_URI", ""),
		Database:       GetEnv("MONGO_DB_NAME", "ClassRecord"),
		ConnectTimeout: GetDurationEnv("MONGO_CONNECT_TIMEOUT", 20*time.Second),
		MaxPoolSize:    uint64(GetIntEnv("MONGO_MAX_POOL_SIZE", 50)),
		MinPoolSize:    uint64(GetIntEnv("MONGO_MIN_POOL_SIZE", 5)),
		MaxIdleTime:    GetDurationEnv("MONGO_MAX_IDLE_TIME", 30*time.Second),
	}

	config.Session = SessionConfig{
		Driver:     strings.ToLower(GetEnv("SESSION_DRIVER", "memory")),
		Secret:     GetEnv("SESSION_SECRET", ""),
		TTL:        GetDurationEnv("SESSION_TTL", 30*time.Minute),
		PrefillTTL: GetDurationEnv("PREFILL_COOKIE_TTL", 365*24*time.Hour),
	}

	config.Redis = RedisConfig{
		Addr:     GetEnv("REDIS_ADDR", "localhost:6379"),
		Password: GetEnv("REDIS_PASSWORD", ""),
		DB:       GetIntEnv("REDIS_DB", 0),
	}

	config.CORS = CORSConfig{
		AllowedOrigins:   GetStringSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		AllowedMethods:   GetStringSliceEnv("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}),
		AllowedHeaders:   GetStringSliceEnv("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type"}),
		AllowCredentials: GetBoolEnv("CORS_ALLOW_CREDENTIALS", true),
		MaxAge:           GetIntEnv("CORS_MAX_AGE", 300),
	}

	return config, nil
}

// ============================================================================
// Environment Variable Helper Functions
// ============================================================================

// GetEnv retrieves an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetIntEnv retrieves an integer environment variable or returns a default value
func GetIntEnv(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

// GetBoolEnv retrieves a boolean environment variable or returns a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean value for %s: %s, using default: %t", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

// GetDurationEnv retrieves a duration environment variable or returns a default value
// Supports format like "30s", "5m", "1h"
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration value for %s: %s, using default: %v", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

// GetStringSliceEnv retrieves a comma-separated string list or returns a default value
func GetStringSliceEnv(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var result []string
	for _, part := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}

// ============================================================================
// Configuration Validation
// ============================================================================

// Validate checks the combinations LoadConfig cannot default
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP port is required")
	}

	switch c.Store.Driver {
	case "mongo":
		if c.MongoDB.URI == "" {
			return fmt.Errorf("MONGO_URI environment variable is required for the mongo store")
		}
		if c.MongoDB.Database == "" {
			return fmt.Errorf("MongoDB database name is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}

	switch c.Session.Driver {
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis session cache")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported SESSION_DRIVER %q", c.Session.Driver)
	}

	if len(c.Session.Secret) < minSessionSecretLen {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters", minSessionSecretLen)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.Store.Timeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}

	return nil
}

// ============================================================================
// Configuration Display (for debugging)
// ============================================================================

// PrintConfig prints configuration (sanitized) for debugging
func PrintConfig(config *Config) {
	log.Println("=== Service Configuration ===")
	log.Printf("Service Name: %s", config.ServiceName)
	log.Printf("Environment: %s", config.Environment)
	log.Printf("HTTP Port: %s", config.HTTPPort)
	log.Printf("gRPC Port: %s", config.GRPCPort)
	log.Printf("Log Level: %s (%s)", config.Log.Level, config.Log.Format)
	log.Printf("Templates File: %q", config.TemplatesFile)
	log.Println("=== Store Configuration ===")
	log.Printf("Driver: %s", config.Store.Driver)
	log.Printf("Timeout: %v", config.Store.Timeout)
	if config.Store.Driver == "mongo" {
		log.Printf("Database: %s", config.MongoDB.Database)
		log.Printf("Max Pool Size: %d", config.MongoDB.MaxPoolSize)
		log.Printf("Min Pool Size: %d", config.MongoDB.MinPoolSize)
	}
	log.Println("=== Session Configuration ===")
	log.Printf("Driver: %s", config.Session.Driver)
	log.Printf("TTL: %v", config.Session.TTL)
	if config.Session.Driver == "redis" {
		log.Printf("Redis: %s (db %d)", config.Redis.Addr, config.Redis.DB)
	}
	log.Println("=== CORS Configuration ===")
	log.Printf("Allowed Origins: %v", config.CORS.AllowedOrigins)
	log.Printf("Allow Credentials: %t", config.CORS.AllowCredentials)
	log.Println("=============================")
}

// IsDevelopment checks if running in development environment
func IsDevelopment(config *Config) bool {
	return config.Environment == "development"
}
