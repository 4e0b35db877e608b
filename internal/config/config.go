package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// ProviderEnv holds one ERP provider's connection settings as read from
// the environment. Secret Manager values, when configured, overlay these
// at startup.
type ProviderEnv struct {
	Enabled      bool
	Endpoint     string
	TenantID     string
	InstanceID   string
	ClientID     string
	ClientSecret string
	Resource     string
}

// Config holds all configuration for the ERP connector service
type Config struct {
	// Server
	Port        string
	Environment string

	// Database
	DatabaseURL string

	// GCP
	GCPProjectID string

	// Providers
	Dynamics ProviderEnv
	Oracle   ProviderEnv

	// HTTP client
	HTTPTimeout time.Duration

	// Idempotency
	IdempotencyTTL time.Duration

	// Token refresh safety margin
	TokenSafetyMargin time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	// Build DATABASE_URL from components when not given whole
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL == "" {
		dbHost := getEnv("DB_HOST", "localhost")
		dbPort := getEnv("DB_PORT", "5432")
		dbUser := getEnv("DB_USER", "postgres")
		dbPassword := getEnv("DB_PASSWORD", "")
		dbName := getEnv("DB_NAME", "erp_connector")
		dbSSLMode := getEnv("DB_SSLMODE", "disable")

		databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			dbUser, dbPassword, dbHost, dbPort, dbName, dbSSLMode)
	}

	config := &Config{
		Port:        getEnv("PORT", "8087"),
		Environment: getEnv("ENVIRONMENT", "development"),
		DatabaseURL: databaseURL,

		// GCP
		GCPProjectID: getEnv("GCP_PROJECT_ID", ""),

		Dynamics: ProviderEnv{
			Enabled:      getEnvAsBool("DYNAMICS_ENABLED", false),
			Endpoint:     getEnv("DYNAMICS_ENDPOINT", ""),
			TenantID:     getEnv("DYNAMICS_TENANT_ID", ""),
			ClientID:     getEnv("DYNAMICS_CLIENT_ID", ""),
			ClientSecret: getEnv("DYNAMICS_CLIENT_SECRET", ""),
			Resource:     getEnv("DYNAMICS_RESOURCE", ""),
		},
		Oracle: ProviderEnv{
			Enabled:      getEnvAsBool("ORACLE_ENABLED", false),
			Endpoint:     getEnv("ORACLE_ENDPOINT", ""),
			InstanceID:   getEnv("ORACLE_INSTANCE_ID", ""),
			ClientID:     getEnv("ORACLE_CLIENT_ID", ""),
			ClientSecret: getEnv("ORACLE_CLIENT_SECRET", ""),
			Resource:     getEnv("ORACLE_SCOPE", ""),
		},

		HTTPTimeout:       getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),
		IdempotencyTTL:    getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		TokenSafetyMargin: getEnvAsDuration("TOKEN_SAFETY_MARGIN", 5*time.Minute),
	}

	// Validate required fields
	if config.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	if config.GCPProjectID == "" {
		log.Println("Warning: GCP_PROJECT_ID not set, secrets management will be disabled")
	}

	if !config.Dynamics.Enabled && !config.Oracle.Enabled {
		log.Println("Warning: no ERP provider enabled, sync endpoints will return 404")
	}

	return config
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}
