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

// Config holds application configuration
type Config struct {
	Port        int
	Environment string
	CORSOrigin  string
	Storage     string // postgres or memory

	// Database configuration
	DatabaseURL string

	// Redis configuration
	RedisHost     string
	RedisPassword string
	RedisPort     string

	// Auth configuration
	Auth AuthConfig

	// Market data configuration
	Market MarketConfig

	// Price tracker configuration
	Tracker TrackerConfig

	// Rate limiting
	RateLimit RateLimitConfig

	UploadDir string
}

// AuthConfig holds token signing and cookie settings
type AuthConfig struct {
	JWTSecret     string
	JWTExpiresIn  time.Duration
	CookieName    string
	PurgeInterval time.Duration
}

// MarketConfig holds market data provider settings
type MarketConfig struct {
	BaseURL       string
	QuoteCacheTTL time.Duration
}

// TrackerConfig holds the reconciliation job schedule
type TrackerConfig struct {
	Schedule string
	LeaseTTL time.Duration
}

// RateLimitConfig holds fixed-window limits per client IP
type RateLimitConfig struct {
	APIMax     int
	APIWindow  time.Duration
	AuthMax    int
	AuthWindow time.Duration
}

// requiredKeys must be present or the process refuses to start
var requiredKeys = []string{
	"PORT",
	"APP_ENV",
	"DATABASE_URL",
	"JWT_SECRET",
	"CORS_ORIGIN",
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var missing []string
	for _, key := range requiredKeys {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil || port <= 0 {
		return nil, fmt.Errorf("invalid PORT %q", os.Getenv("PORT"))
	}

	return &Config{
		Port:        port,
		Environment: os.Getenv("APP_ENV"),
		CORSOrigin:  os.Getenv("CORS_ORIGIN"),
		Storage:     getEnvOrDefault("STORAGE", "postgres"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		// Redis configuration
		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),

		Auth: AuthConfig{
			JWTSecret:     os.Getenv("JWT_SECRET"),
			JWTExpiresIn:  getEnvDuration("JWT_EXPIRES_IN", 7*24*time.Hour),
			CookieName:    "auth-token",
			PurgeInterval: getEnvDuration("TOKEN_PURGE_INTERVAL", time.Hour),
		},

		Market: MarketConfig{
			BaseURL:       getEnvOrDefault("MARKET_DATA_URL", "https://query1.finance.yahoo.com"),
			QuoteCacheTTL: getEnvDuration("QUOTE_CACHE_TTL", time.Minute),
		},

		// Runs once every 24 hours at 2:00 AM
		Tracker: TrackerConfig{
			Schedule: getEnvOrDefault("PRICE_TRACKER_SCHEDULE", "0 2 * * *"),
			LeaseTTL: getEnvDuration("PRICE_TRACKER_LEASE_TTL", time.Hour),
		},

		RateLimit: RateLimitConfig{
			APIMax:     getEnvInt("RATE_LIMIT_API_MAX", 100),
			APIWindow:  getEnvDuration("RATE_LIMIT_API_WINDOW", 15*time.Minute),
			AuthMax:    getEnvInt("RATE_LIMIT_AUTH_MAX", 5),
			AuthWindow: getEnvDuration("RATE_LIMIT_AUTH_WINDOW", time.Hour),
		},

		UploadDir: getEnvOrDefault("UPLOAD_DIR", "uploads"),
	}, nil
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment reports whether the service runs with development settings
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// getEnvInt gets environment variable as int or returns default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvDuration gets environment variable as a duration or returns default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ParseDuration accepts Go durations plus a day suffix ("7d", "1d12h")
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty duration")
	}

	var days time.Duration
	if i := strings.Index(value, "d"); i > 0 {
		n, err := strconv.Atoi(value[:i])
		if err != nil {
			return 0, fmt.Errorf("invalid day count in %q: %w", value, err)
		}
		days = time.Duration(n) * 24 * time.Hour
		value = value[i+1:]
		if value == "" {
			return days, nil
		}
	}

	// Bare numbers are seconds
	if n, err := strconv.Atoi(value); err == nil {
		return days + time.Duration(n)*time.Second, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	return days + d, nil
}
