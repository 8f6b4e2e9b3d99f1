package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the CommSync backend, loaded
// from the environment (plus a .env file in development).
type Config struct {
	Environment         string
	EncryptionKeyBase64 string
	DBHost              string
	DBPort              string
	DBUsername          string
	DBPassword          string
	DBName              string
	DBSSLMode           string
	Port                string
	Timezone            string

	// Gmail OAuth application credentials, shared by all users' primary
	// Gmail connections.
	GoogleClientID     string
	GoogleClientSecret string

	// AllowedOrigin is the frontend origin allowed by CORS.
	AllowedOrigin string
}

func NewConfig() (*Config, error) {
	env := os.Getenv("COMMSYNC_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	config := &Config{
		Environment:         env,
		EncryptionKeyBase64: os.Getenv("COMMSYNC_ENCRYPTION_KEY_BASE64"),
		DBHost:              getEnvOrDefault("COMMSYNC_DB_HOST", "localhost"),
		DBPort:              getEnvOrDefault("COMMSYNC_DB_PORT", "5432"),
		DBUsername:          getEnvOrDefault("COMMSYNC_DB_USER", "commsync"),
		DBPassword:          os.Getenv("COMMSYNC_DB_PASSWORD"),
		DBName:              getEnvOrDefault("COMMSYNC_DB_NAME", "commsync"),
		DBSSLMode:           getEnvOrDefault("COMMSYNC_DB_SSLMODE", "disable"),
		Port:                getEnvOrDefault("PORT", "8080"),
		Timezone:            getEnvOrDefault("TZ", "UTC"),
		GoogleClientID:      os.Getenv("COMMSYNC_GOOGLE_CLIENT_ID"),
		GoogleClientSecret:  os.Getenv("COMMSYNC_GOOGLE_CLIENT_SECRET"),
		AllowedOrigin:       getEnvOrDefault("COMMSYNC_ALLOWED_ORIGIN", "http://localhost:3000"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.EncryptionKeyBase64 == "" {
		return fmt.Errorf("COMMSYNC_ENCRYPTION_KEY_BASE64 is required")
	}

	key, err := base64.StdEncoding.DecodeString(c.EncryptionKeyBase64)
	if err != nil {
		return fmt.Errorf("COMMSYNC_ENCRYPTION_KEY_BASE64 is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return fmt.Errorf("COMMSYNC_ENCRYPTION_KEY_BASE64 must decode to 32 bytes, got %d", len(key))
	}

	if c.DBPassword == "" {
		return fmt.Errorf("COMMSYNC_DB_PASSWORD is required")
	}

	if !isValidPort(c.DBPort) {
		return fmt.Errorf("COMMSYNC_DB_PORT is not a valid port number: %s", c.DBPort)
	}
	if !isValidPort(c.Port) {
		return fmt.Errorf("PORT is not a valid port number: %s", c.Port)
	}

	return nil
}

// GetDatabaseURL builds the Postgres connection URL. Username and password
// are URL-encoded so special characters survive.
func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		url.QueryEscape(c.DBUsername),
		url.QueryEscape(c.DBPassword),
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

func isValidPort(s string) bool {
	port, err := strconv.Atoi(s)
	return err == nil && port >= 1 && port <= 65535
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
