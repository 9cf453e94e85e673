package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"earnings/database"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// HTTP server configuration
	Port               int
	CORSAllowedOrigins []string

	// Auth provider configuration (Supabase GoTrue)
	SupabaseURL     string
	SupabaseAnonKey string

	// Shared secret for unauthenticated scheduled triggers
	CronSecret string

	// Discord notifications (optional)
	DiscordToken           string
	DiscordNotifyChannelID string

	// NATS event relay (optional)
	NATSURL           string
	NATSSubjectPrefix string

	// Feature flags
	AutosaveEnabled  bool
	SchedulerEnabled bool

	// Calculator configuration
	BusinessTimezone    string // Timezone that defines period buckets
	ConversionRulesPath string // Optional override of the embedded conversion rules

	// Logging
	LogLevel string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// load loads configuration from environment variables
func load() (*Config, error) {
	// A missing .env file is normal outside local development
	_ = godotenv.Load()

	config := &Config{
		// Database
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		// HTTP
		Port: 8080,

		// Auth
		SupabaseURL:     strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseAnonKey: os.Getenv("SUPABASE_ANON_KEY"),
		CronSecret:      os.Getenv("CRON_SECRET"),

		// Discord
		DiscordToken:           os.Getenv("DISCORD_TOKEN"),
		DiscordNotifyChannelID: os.Getenv("DISCORD_NOTIFY_CHANNEL_ID"),

		// NATS
		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: getEnvWithDefault("NATS_SUBJECT_PREFIX", "earnings"),

		// Feature flags
		AutosaveEnabled:  os.Getenv("AUTOSAVE_ENABLED") == "true",
		SchedulerEnabled: os.Getenv("SCHEDULER_ENABLED") != "false",

		// Calculator
		BusinessTimezone:    getEnvWithDefault("BUSINESS_TIMEZONE", "America/Bogota"),
		ConversionRulesPath: os.Getenv("CONVERSION_RULES_PATH"),

		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
		Environment: os.Getenv("ENVIRONMENT"),
	}

	if port := os.Getenv("PORT"); port != "" {
		if parsedPort, err := strconv.Atoi(port); err == nil {
			config.Port = parsedPort
		}
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				config.CORSAllowedOrigins = append(config.CORSAllowedOrigins, origin)
			}
		}
	} else {
		config.CORSAllowedOrigins = []string{"http://localhost:3000"}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
	}
	if config.IsProduction() && config.CronSecret == "" {
		return nil, fmt.Errorf("CRON_SECRET is required in production")
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:      "test",
		Port:             8080,
		CronSecret:       "test-cron-secret",
		SchedulerEnabled: false,
		BusinessTimezone: "America/Bogota",
		LogLevel:         "debug",
	}
}
