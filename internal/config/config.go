package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	NodeEnv   string
	Port      string
	JWTSecret string
	// ClientURL is the browser origin allowed to open websocket connections.
	ClientURL string
	LogLevel  string
}

// fileConfig mirrors the env vars for the optional YAML config file.
// Env values always win over file values.
type fileConfig struct {
	Port      string `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
	ClientURL string `yaml:"client_url"`
	LogLevel  string `yaml:"log_level"`
}

// Load loads configuration from environment variables, optionally
// merged over a YAML file named by RELAY_CONFIG.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	var fc fileConfig
	if path := os.Getenv("RELAY_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	}

	jwtSecret := firstOf(os.Getenv("JWT_SECRET"), fc.JWTSecret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return &Config{
		NodeEnv:   getEnv("NODE_ENV", "development"),
		Port:      firstOf(os.Getenv("PORT"), fc.Port, "4000"),
		JWTSecret: jwtSecret,
		ClientURL: firstOf(os.Getenv("CLIENT_URL"), fc.ClientURL, "http://localhost:3000"),
		LogLevel:  firstOf(os.Getenv("LOG_LEVEL"), fc.LogLevel, "info"),
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// firstOf returns the first non-empty value.
func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
