// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Telegram settings
	TelegramToken  string
	TelegramChatID string

	// Google Sheets moderation (optional)
	SheetsCredentialsPath string
	SpreadsheetID         string
	ModerationEnabled     bool

	// Enrichment providers
	GeminiAPIKey string
	OpenAIAPIKey string

	// Feed settings
	FeedsConfigPath  string
	WindowPolicy     string // "today" | "hours"
	WindowHours      int
	FetchConcurrency int

	// Dedup settings
	DedupBackend  string // "file" | "postgres"
	DedupFilePath string
	DatabaseURL   string
	DedupCapacity int

	// Scraper settings
	ScrapeConcurrency int

	// Pipeline stage toggles
	ClassifyEnabled  bool
	TranslateEnabled bool
	SummarizeEnabled bool
	FormatEnabled    bool

	// Pacing and retries
	PostInterval  time.Duration
	AIMinInterval time.Duration
	AIDailyBudget int
	RetryAttempts int
	RetryDelay    time.Duration

	// App settings
	Debug bool
}

func Load() (*Config, error) {
	cfg := &Config{
		FeedsConfigPath:   "configs/feeds.yaml",
		WindowPolicy:      "today",
		WindowHours:       12,
		FetchConcurrency:  4,
		DedupBackend:      "file",
		DedupFilePath:     "seen_news.json",
		DedupCapacity:     1000,
		ScrapeConcurrency: 4,
		ClassifyEnabled:   true,
		TranslateEnabled:  true,
		SummarizeEnabled:  true,
		FormatEnabled:     true,
		PostInterval:      3 * time.Second,
		AIMinInterval:     2 * time.Second,
		AIDailyBudget:     200,
		RetryAttempts:     3,
		RetryDelay:        5 * time.Second,
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	cfg.TelegramChatID = os.Getenv("TELEGRAM_CHAT_ID")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")

	cfg.SheetsCredentialsPath = os.Getenv("GOOGLE_SHEETS_CREDENTIALS")
	cfg.SpreadsheetID = os.Getenv("SPREADSHEET_ID")
	cfg.ModerationEnabled = cfg.SheetsCredentialsPath != "" && cfg.SpreadsheetID != ""

	cfg.FeedsConfigPath = getEnvOrDefault("FEEDS_CONFIG_PATH", cfg.FeedsConfigPath)
	if policy := os.Getenv("WINDOW_POLICY"); policy != "" {
		cfg.WindowPolicy = policy
	}
	cfg.WindowHours = getEnvIntOrDefault("WINDOW_HOURS", cfg.WindowHours)
	cfg.FetchConcurrency = getEnvIntOrDefault("FETCH_CONCURRENCY", cfg.FetchConcurrency)

	if backend := os.Getenv("DEDUP_BACKEND"); backend != "" {
		cfg.DedupBackend = backend
	}
	cfg.DedupFilePath = getEnvOrDefault("DEDUP_FILE_PATH", cfg.DedupFilePath)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.DedupCapacity = getEnvIntOrDefault("DEDUP_CAPACITY", cfg.DedupCapacity)

	cfg.ScrapeConcurrency = getEnvIntOrDefault("SCRAPE_CONCURRENCY", cfg.ScrapeConcurrency)

	cfg.ClassifyEnabled = getEnvBoolOrDefault("STAGE_CLASSIFY", cfg.ClassifyEnabled)
	cfg.TranslateEnabled = getEnvBoolOrDefault("STAGE_TRANSLATE", cfg.TranslateEnabled)
	cfg.SummarizeEnabled = getEnvBoolOrDefault("STAGE_SUMMARIZE", cfg.SummarizeEnabled)
	cfg.FormatEnabled = getEnvBoolOrDefault("STAGE_FORMAT", cfg.FormatEnabled)

	if v := getEnvIntOrDefault("POST_INTERVAL_SECONDS", 0); v > 0 {
		cfg.PostInterval = time.Duration(v) * time.Second
	}
	if v := getEnvIntOrDefault("AI_MIN_INTERVAL_SECONDS", 0); v > 0 {
		cfg.AIMinInterval = time.Duration(v) * time.Second
	}
	cfg.AIDailyBudget = getEnvIntOrDefault("AI_DAILY_BUDGET", cfg.AIDailyBudget)

	cfg.RetryAttempts = getEnvIntOrDefault("RETRY_ATTEMPTS", cfg.RetryAttempts)
	if v := getEnvIntOrDefault("RETRY_DELAY_SECONDS", 0); v > 0 {
		cfg.RetryDelay = time.Duration(v) * time.Second
	}

	if os.Getenv("DEBUG") == "true" {
		cfg.Debug = true
	}

	return cfg, cfg.Validate()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	switch os.Getenv(key) {
	case "true", "1", "on":
		return true
	case "false", "0", "off":
		return false
	}
	return defaultValue
}

func (c *Config) Validate() error {
	if c.FeedsConfigPath == "" {
		return fmt.Errorf("FEEDS_CONFIG_PATH is required")
	}
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if c.TelegramChatID == "" {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required")
	}
	if c.WindowPolicy != "today" && c.WindowPolicy != "hours" {
		return fmt.Errorf("WINDOW_POLICY must be 'today' or 'hours'")
	}
	if c.WindowPolicy == "hours" && c.WindowHours <= 0 {
		return fmt.Errorf("WINDOW_HOURS must be positive")
	}
	if c.DedupBackend != "file" && c.DedupBackend != "postgres" {
		return fmt.Errorf("DEDUP_BACKEND must be 'file' or 'postgres'")
	}
	if c.DedupBackend == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres dedup backend")
	}
	if c.DedupCapacity <= 0 {
		return fmt.Errorf("DEDUP_CAPACITY must be positive")
	}
	return nil
}
