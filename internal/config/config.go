package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all runtime settings for the server. Values come from the
// environment; cmd/server loads a .env file first when one exists.
type Config struct {
	// HTTP server
	Port string

	// Storage
	DBPath string

	// Presentation
	TemplateDir string
	StaticDir   string

	// Set the Secure flag on session cookies (behind TLS or a terminating proxy).
	SecureCookie bool

	// Initial user, created at startup when the user table is empty.
	AdminUser     string
	AdminPassword string

	// Auth endpoint rate limiting
	LoginRequestsPerMinute int
}

// Load reads configuration from the environment, applying defaults.
func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		DBPath:       getEnv("DB_PATH", "finance.db"),
		TemplateDir:  getEnv("TEMPLATE_DIR", "web/templates"),
		StaticDir:    getEnv("STATIC_DIR", "web/static"),
		SecureCookie: getEnvBool("SECURE_COOKIE", false),

		AdminUser:     getEnv("ADMIN_USER", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		LoginRequestsPerMinute: getEnvInt("LOGIN_REQUESTS_PER_MINUTE", 20),
	}
}

// Validate checks the configuration and returns an error describing every
// problem found.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DBPath == "" {
		errs = append(errs, "database path cannot be empty")
	} else if dir := filepath.Dir(c.DBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				errs = append(errs, fmt.Sprintf("cannot create database directory '%s': %v", dir, err))
			}
		}
	}

	if c.TemplateDir == "" {
		errs = append(errs, "template directory cannot be empty")
	}

	if c.AdminUser != "" && c.AdminPassword == "" {
		errs = append(errs, "ADMIN_PASSWORD is required when ADMIN_USER is set")
	}

	if c.LoginRequestsPerMinute < 1 {
		errs = append(errs, fmt.Sprintf("invalid login rate limit %d: must be at least 1", c.LoginRequestsPerMinute))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
