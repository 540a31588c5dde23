package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverSupabase = "supabase"
)

type Config struct {
	TelegramToken string

	StorageDriver string
	SQLitePath    string
	SupabaseURL   string
	SupabaseKey   string

	OpenAIKey         string
	OpenAIModel       string
	OpenAIBaseURL     string
	ExtractionTimeout time.Duration

	HistoryLimit       int
	MaxConcurrentTurns int64

	HTTPAddr    string
	WebhookPath string

	LogLevel  string
	LogFormat string
}

// LoadConfig читает .env (если он есть) и переменные окружения
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv собирает конфигурацию из функции чтения переменных
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		TelegramToken: getenv("TELEGRAM_TOKEN"),
		StorageDriver: withDefault(getenv("STORAGE_DRIVER"), DriverSQLite),
		SQLitePath:    withDefault(getenv("SQLITE_PATH"), "finchat.db"),
		SupabaseURL:   getenv("SUPABASE_URL"),
		SupabaseKey:   getenv("SUPABASE_KEY"),
		OpenAIKey:     getenv("OPENAI_API_KEY"),
		OpenAIModel:   withDefault(getenv("OPENAI_MODEL"), "gpt-4o-mini"),
		OpenAIBaseURL: getenv("OPENAI_BASE_URL"),
		HTTPAddr:      withDefault(getenv("HTTP_ADDR"), ":8080"),
		WebhookPath:   withDefault(getenv("WEBHOOK_PATH"), "/telegram/webhook"),
		LogLevel:      withDefault(getenv("LOG_LEVEL"), "info"),
		LogFormat:     withDefault(getenv("LOG_FORMAT"), "json"),
	}

	var err error
	if cfg.ExtractionTimeout, err = parseDuration(getenv, "EXTRACTION_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.HistoryLimit, err = parseInt(getenv, "HISTORY_LIMIT", 10); err != nil {
		return nil, err
	}
	turns, err := parseInt(getenv, "MAX_CONCURRENT_TURNS", 8)
	if err != nil {
		return nil, err
	}
	cfg.MaxConcurrentTurns = int64(turns)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
	case DriverSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_KEY are required for the supabase driver")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverSupabase, c.StorageDriver)
	}
	if c.ExtractionTimeout <= 0 {
		return fmt.Errorf("EXTRACTION_TIMEOUT must be positive")
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("HISTORY_LIMIT must not be negative")
	}
	if c.MaxConcurrentTurns < 1 {
		return fmt.Errorf("MAX_CONCURRENT_TURNS must be at least 1")
	}
	return nil
}

// RequireTelegram проверяет наличие токена бота
func (c *Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	return nil
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func parseDuration(getenv func(string) string, key string, fallback time.Duration) (time.Duration, error) {
	raw := getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func parseInt(getenv func(string) string, key string, fallback int) (int, error) {
	raw := getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
