package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"posdash/internal/logger"
)

type Config struct {
	// Backend API Configuration
	APIURL     string
	APITimeout time.Duration

	// Session Configuration
	SessionFile string

	// Invoice composer product search debounce
	SearchDelay time.Duration

	// Google Sheets Configuration (sales export)
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	timeoutSecs, err := getEnvInt("POSDASH_API_TIMEOUT", 30)
	if err != nil {
		return nil, err
	}
	searchDelayMS, err := getEnvInt("POSDASH_SEARCH_DELAY_MS", 400)
	if err != nil {
		return nil, err
	}

	config := &Config{
		APIURL:               strings.TrimRight(getEnv("POSDASH_API_URL", ""), "/"),
		APITimeout:           time.Duration(timeoutSecs) * time.Second,
		SessionFile:          getEnv("POSDASH_SESSION_FILE", defaultSessionFile()),
		SearchDelay:          time.Duration(searchDelayMS) * time.Millisecond,
		GoogleSheetURL:       getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet: getEnv("GOOGLE_SHEET_WORKSHEET", "Sales"),
		LogLevel:             getEnv("LOG_LEVEL", "warn"),
		LogFormat:            getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:        getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:            getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("POSDASH_API_URL is required")
	}
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("POSDASH_API_URL must start with http:// or https://")
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("POSDASH_API_TIMEOUT must be positive")
	}
	if c.SearchDelay < 0 {
		return fmt.Errorf("POSDASH_SEARCH_DELAY_MS must not be negative")
	}
	if c.SessionFile == "" {
		return fmt.Errorf("POSDASH_SESSION_FILE is required")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".posdash", "session.db")
	}
	return filepath.Join(home, ".posdash", "session.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
