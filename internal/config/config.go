package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Host         string
	Port         string
	CORSOrigins  []string
	MaxBodyBytes int64

	// Database settings
	DatabaseDriver string
	DatabasePath   string
	DatabaseURL    string

	// Logging settings
	LogLevel  string
	LogFormat string

	// Cache settings
	CacheSize int
	CacheTTL  time.Duration

	// Admin access
	AdminEmail        string
	AdminSecretToken  string
	SessionTTL        time.Duration
	FirebaseProjectID string
	FirebaseCredsFile string

	// Gmail settings
	GmailClientID     string
	GmailClientSecret string
	GmailRefreshToken string
	GmailUser         string

	// Asset storage
	AssetBucketURL string
	AssetBaseURL   string

	// Mail sync settings
	SyncBatchSize   int
	WorkerPoolSize  int
	UpstreamTimeout time.Duration

	// API settings
	APIRateLimit  int
	APIRateWindow time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Not an error if .env doesn't exist
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Host:              getEnv("HOST", "0.0.0.0"),
		Port:              getEnv("PORT", "8080"),
		CORSOrigins:       splitList(getEnv("CORS_ORIGINS", "*")),
		DatabaseDriver:    strings.ToLower(getEnv("DATABASE_DRIVER", "sqlite")),
		DatabasePath:      getEnv("DATABASE_PATH", "./data/claimy.db"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		AdminEmail:        strings.ToLower(strings.TrimSpace(getEnv("ADMIN_EMAIL", ""))),
		AdminSecretToken:  getEnv("ADMIN_SECRET_TOKEN", ""),
		FirebaseProjectID: getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		GmailClientID:     firstEnv("GMAIL_CLIENT_ID", "GOOGLE_CLIENT_ID"),
		GmailClientSecret: firstEnv("GMAIL_CLIENT_SECRET", "GOOGLE_CLIENT_SECRET"),
		GmailRefreshToken: firstEnv("GMAIL_REFRESH_TOKEN", "GMAIL_OAUTH_REFRESH_TOKEN"),
		GmailUser:         firstEnv("GMAIL_USER", "MAIL_FROM"),
		AssetBucketURL:    getEnv("ASSET_BUCKET_URL", "file:///var/lib/claimy/assets"),
		AssetBaseURL:      getEnv("ASSET_BASE_URL", ""),
	}

	// Parse integer values
	var err error
	cfg.CacheSize, err = strconv.Atoi(getEnv("CACHE_SIZE", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_SIZE: %w", err)
	}

	cacheTTL, err := strconv.Atoi(getEnv("CACHE_TTL", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	cfg.CacheTTL = time.Duration(cacheTTL) * time.Minute

	sessionTTL, err := strconv.Atoi(getEnv("SESSION_TTL", "3600"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	cfg.SessionTTL = time.Duration(sessionTTL) * time.Second

	cfg.SyncBatchSize, err = strconv.Atoi(getEnv("SYNC_BATCH_SIZE", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_BATCH_SIZE: %w", err)
	}

	cfg.WorkerPoolSize, err = strconv.Atoi(getEnv("WORKER_POOL_SIZE", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_POOL_SIZE: %w", err)
	}

	upstreamTimeout, err := strconv.Atoi(getEnv("UPSTREAM_TIMEOUT", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid UPSTREAM_TIMEOUT: %w", err)
	}
	cfg.UpstreamTimeout = time.Duration(upstreamTimeout) * time.Second

	cfg.MaxBodyBytes, err = strconv.ParseInt(getEnv("MAX_BODY_BYTES", "1048576"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_BODY_BYTES: %w", err)
	}

	cfg.APIRateLimit, err = strconv.Atoi(getEnv("API_RATE_LIMIT", "120"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_RATE_LIMIT: %w", err)
	}

	apiRateWindow, err := strconv.Atoi(getEnv("API_RATE_WINDOW", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_RATE_WINDOW: %w", err)
	}
	cfg.APIRateWindow = time.Duration(apiRateWindow) * time.Second

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.AdminEmail == "" {
		return fmt.Errorf("ADMIN_EMAIL is required")
	}
	if strings.TrimSpace(c.AdminSecretToken) == "" {
		return fmt.Errorf("ADMIN_SECRET_TOKEN is required")
	}
	if c.SyncBatchSize <= 0 || c.WorkerPoolSize <= 0 {
		return fmt.Errorf("SYNC_BATCH_SIZE and WORKER_POOL_SIZE must be positive")
	}
	return nil
}

// GmailConfigured reports whether every Gmail OAuth setting is present.
func (c *Config) GmailConfigured() bool {
	return c.GmailClientID != "" && c.GmailClientSecret != "" && c.GmailRefreshToken != "" && c.GmailUser != ""
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// firstEnv returns the first non-empty variable among keys.
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
