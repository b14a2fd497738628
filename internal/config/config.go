// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Mail     MailConfig
	Log      LogConfig
	Redis    RedisConfig
	Session  SessionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig selects the store. Driver is "sqlite" (default) or "postgres".
type DatabaseConfig struct {
	Driver   string
	Path     string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Debug    bool
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev        bool
	Migrations bool
	Seed       bool
	PublicURL  string
	StaticDir  string
}

// MailConfig holds the outbound relay settings.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// LogConfig mirrors logger.LogConfig.
type LogConfig struct {
	Level       string
	Environment string
}

// RedisConfig enables the shared role cache when URL is set.
type RedisConfig struct {
	URL     string
	RoleTTL time.Duration
}

type SessionConfig struct {
	Secret string
}

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// IsPostgres reports whether the postgres driver is selected.
func (d DatabaseConfig) IsPostgres() bool {
	return d.Driver == "postgres" || d.Driver == "postgresql"
}

// Configured reports whether relay credentials are present.
func (m MailConfig) Configured() bool {
	return m.Host != "" && m.Username != "" && m.Password != ""
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	mailUser := getEnv("SMTP_USERNAME", "")
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			Path:     getEnv("DB_PATH", "metaverso.db"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "metaverso"),
			Password: getEnv("DB_PASSWORD", "metaverso"),
			DBName:   getEnv("DB_NAME", "metaverso"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Debug:    getEnvBool("DB_DEBUG", false),
		},
		App: AppConfig{
			Dev:        getEnvBool("DEV", false),
			Migrations: getEnvBool("MIGRATIONS", false),
			Seed:       getEnvBool("DB_SEED", true),
			PublicURL:  strings.TrimRight(getEnv("PUBLIC_URL", "http://127.0.0.1:8080"), "/"),
			StaticDir:  getEnv("STATIC_DIR", "static"),
		},
		Mail: MailConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: mailUser,
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("MAIL_FROM", mailUser),
			Timeout:  getEnvDuration("SMTP_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Redis: RedisConfig{
			URL:     getEnv("REDIS_URL", ""),
			RoleTTL: getEnvDuration("ROLE_CACHE_TTL", 5*time.Minute),
		},
		Session: SessionConfig{
			Secret: getEnv("SESSION_SECRET", ""),
		},
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

// getEnvDuration accepts Go durations ("5s") or plain seconds ("5").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if s, err := strconv.Atoi(value); err == nil {
		return time.Duration(s) * time.Second
	}
	return defaultValue
}
