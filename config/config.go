package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every runtime setting the server reads from the environment.
type Config struct {
	Port        string
	Environment string
	Domain      string

	MongoURI  string
	MongoDB   string
	JWTSecret string

	RedisAddr     string
	RedisPassword string

	// Per-user issue creation throttle.
	IssueRateLimit  int
	IssueRateWindow time.Duration

	AllowedOrigins []string
}

// Load reads configuration from the environment. MONGODB_URI and JWT_SECRET
// are mandatory; everything else has a sensible default.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     getEnv("GO_ENV", "development"),
		Domain:          os.Getenv("DOMAIN"),
		MongoURI:        os.Getenv("MONGODB_URI"),
		MongoDB:         getEnv("MONGODB_DB", "civicpulse"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		RedisAddr:       os.Getenv("REDIS_ADDRESS"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		IssueRateLimit:  getEnvInt("ISSUE_RATE_LIMIT", 20),
		IssueRateWindow: 24 * time.Hour,
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = []string{origins}
	}

	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGODB_URI environment variable is not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	return cfg, nil
}

// IsProduction reports whether the server runs with production cookie rules.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
