package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the process configuration, loaded from environment variables.
type Config struct {
	Env       string
	Port      string
	JWTSecret string

	// Store selects the persistence backend: "redis" or "memory".
	Store     string
	RedisAddr string
	RedisPass string
	RedisDB   int

	// Round engine tuning.
	TickInterval  time.Duration
	TickCap       int
	MaxMultiplier float64

	LogLevel  string
	LogFormat string
	LogFile   string
}

// Load reads configuration from the environment with sane defaults.
func Load() (*Config, error) {
	return &Config{
		Env:       getEnv("ENV", "development"),
		Port:      getEnv("PORT", "8080"),
		JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-me"),

		Store:     getEnv("STORE", "redis"),
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass: getEnv("REDIS_PASS", ""),
		RedisDB:   getEnvInt("REDIS_DB", 0),

		TickInterval:  time.Duration(getEnvInt("TICK_MS", 700)) * time.Millisecond,
		TickCap:       getEnvInt("TICK_CAP", 400),
		MaxMultiplier: getEnvFloat("MAX_MULTIPLIER", 500.0),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
		LogFile:   getEnv("LOG_FILE", ""),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}
