package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DB      DBConfig
	Server  ServerConfig
	Archive ArchiveConfig
	Cleanup CleanupConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type ServerConfig struct {
	Port         string
	AllowOrigins string
}

// ArchiveConfig configures the optional audit trail export to object
// storage. With Enabled false the exporter never starts.
type ArchiveConfig struct {
	Enabled        bool
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
	ExportInterval time.Duration
}

// CleanupConfig drives the periodic sweep of dead tokens. InactiveDays is
// how long a token must have been both non-active and expired before it
// is deleted.
type CleanupConfig struct {
	Interval     time.Duration
	InactiveDays int
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "tokend"),
			Password: getEnv("DB_PASSWORD", "tokend_secret"),
			Name:     getEnv("DB_NAME", "tokend"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			AllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3001"),
		},
		Archive: ArchiveConfig{
			Enabled:        getEnvAsBool("ARCHIVE_ENABLED", false),
			Endpoint:       getEnv("ARCHIVE_ENDPOINT", "localhost:9000"),
			AccessKey:      getEnv("ARCHIVE_ACCESS_KEY", "tokend"),
			SecretKey:      getEnv("ARCHIVE_SECRET_KEY", "tokend_secret"),
			Bucket:         getEnv("ARCHIVE_BUCKET", "tokend-audit"),
			UseSSL:         getEnvAsBool("ARCHIVE_USE_SSL", false),
			ExportInterval: getEnvAsDuration("ARCHIVE_EXPORT_INTERVAL", 1*time.Hour),
		},
		Cleanup: CleanupConfig{
			Interval:     getEnvAsDuration("CLEANUP_INTERVAL", 24*time.Hour),
			InactiveDays: getEnvAsInt("CLEANUP_INACTIVE_DAYS", 30),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
