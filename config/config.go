package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL string

	// HTTP configuration
	ListenAddr     string
	AllowedOrigins []string

	// Auth configuration
	JWTSecret string

	// Referral configuration
	RegistrationBonus decimal.Decimal // base amount the commission schedule applies to

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		ListenAddr:  os.Getenv("LISTEN_ADDR"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		Environment: os.Getenv("ENVIRONMENT"),

		RegistrationBonus: decimal.NewFromInt(100),
	}

	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}

	// Override defaults if environment variables are set
	if bonus := os.Getenv("REGISTRATION_BONUS"); bonus != "" {
		parsed, err := decimal.NewFromString(bonus)
		if err != nil || !parsed.IsPositive() {
			return nil, fmt.Errorf("REGISTRATION_BONUS must be a positive decimal, got %q", bonus)
		}
		config.RegistrationBonus = parsed
	}

	// Parse allowed CORS origins
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				config.AllowedOrigins = append(config.AllowedOrigins, origin)
			}
		}
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{"http://localhost:3000"}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.JWTSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET is required")
		}
	}

	return config, nil
}
