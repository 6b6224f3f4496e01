package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ErrConfigurationMissing is returned by Validate when a required key is unset.
// The server then stays in the configuration-error state instead of talking to
// an unconfigured backend.
var ErrConfigurationMissing = errors.New("configuration missing")

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Backend project
	APIKey            string
	AuthDomain        string
	ProjectID         string
	StorageBucket     string
	MessagingSenderID string
	AppID             string
	FunctionsRegion   string

	// Session tokens
	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	// Access
	SuperAdminEmail string

	// Server
	Port        string
	CORSOrigins string
	LogLevel    string
	Env         string
	SentryDSN   string

	LogRetention time.Duration
}

func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "mutamba_erp"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		APIKey:            getEnv("ERP_API_KEY", ""),
		AuthDomain:        getEnv("ERP_AUTH_DOMAIN", ""),
		ProjectID:         getEnv("ERP_PROJECT_ID", ""),
		StorageBucket:     getEnv("ERP_STORAGE_BUCKET", ""),
		MessagingSenderID: getEnv("ERP_MESSAGING_SENDER_ID", ""),
		AppID:             getEnv("ERP_APP_ID", ""),
		FunctionsRegion:   getEnv("FUNCTIONS_REGION", "southamerica-east1"),

		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTAccessExpiry:  parseDuration(getEnv("JWT_ACCESS_EXPIRY", "15m"), 15*time.Minute),
		JWTRefreshExpiry: parseDuration(getEnv("JWT_REFRESH_EXPIRY", "168h"), 168*time.Hour),

		SuperAdminEmail: NormalizeEmail(getEnv("SUPER_ADMIN_EMAIL", "")),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Env:         getEnv("APP_ENV", "dev"),
		SentryDSN:   getEnv("SENTRY_DSN", ""),

		LogRetention: parseDuration(getEnv("LOG_RETENTION", "720h"), 30*24*time.Hour),
	}
}

// Validate reports every missing required key in one error wrapping
// ErrConfigurationMissing.
func (c *Config) Validate() error {
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "ERP_API_KEY")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.DBPassword == "" {
		missing = append(missing, "DB_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigurationMissing, strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// NormalizeEmail matches the form identity emails are stored in, so the
// super-admin comparison stays exact.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
