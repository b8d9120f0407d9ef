package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "@channel")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WindowPolicy != "today" {
		t.Errorf("WindowPolicy = %q", cfg.WindowPolicy)
	}
	if cfg.DedupBackend != "file" || cfg.DedupCapacity != 1000 {
		t.Errorf("dedup defaults wrong: %+v", cfg)
	}
	if !cfg.ClassifyEnabled || !cfg.TranslateEnabled {
		t.Errorf("stages not enabled by default")
	}
	if cfg.RetryAttempts != 3 || cfg.RetryDelay != 5*time.Second {
		t.Errorf("retry defaults wrong: %d %v", cfg.RetryAttempts, cfg.RetryDelay)
	}
	if cfg.ModerationEnabled {
		t.Errorf("moderation enabled without credentials")
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("WINDOW_POLICY", "hours")
	t.Setenv("WINDOW_HOURS", "6")
	t.Setenv("STAGE_SUMMARIZE", "false")
	t.Setenv("POST_INTERVAL_SECONDS", "10")
	t.Setenv("DEDUP_CAPACITY", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WindowPolicy != "hours" || cfg.WindowHours != 6 {
		t.Errorf("window overrides ignored: %+v", cfg)
	}
	if cfg.SummarizeEnabled {
		t.Errorf("STAGE_SUMMARIZE=false ignored")
	}
	if cfg.PostInterval != 10*time.Second {
		t.Errorf("PostInterval = %v", cfg.PostInterval)
	}
	if cfg.DedupCapacity != 50 {
		t.Errorf("DedupCapacity = %d", cfg.DedupCapacity)
	}
}

func TestLoad_ModerationRequiresBothSettings(t *testing.T) {
	setRequired(t)
	t.Setenv("GOOGLE_SHEETS_CREDENTIALS", "creds.json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ModerationEnabled {
		t.Errorf("moderation enabled without a spreadsheet id")
	}

	t.Setenv("SPREADSHEET_ID", "sheet-id")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.ModerationEnabled {
		t.Errorf("moderation disabled with full credentials")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*testing.T)
	}{
		{"missing token", func(t *testing.T) { t.Setenv("TELEGRAM_TOKEN", "") }},
		{"missing chat", func(t *testing.T) { t.Setenv("TELEGRAM_CHAT_ID", "") }},
		{"bad window policy", func(t *testing.T) { t.Setenv("WINDOW_POLICY", "weekly") }},
		{"hours without count", func(t *testing.T) {
			t.Setenv("WINDOW_POLICY", "hours")
			t.Setenv("WINDOW_HOURS", "0")
		}},
		{"bad dedup backend", func(t *testing.T) { t.Setenv("DEDUP_BACKEND", "redis") }},
		{"postgres without dsn", func(t *testing.T) { t.Setenv("DEDUP_BACKEND", "postgres") }},
		{"zero capacity", func(t *testing.T) { t.Setenv("DEDUP_CAPACITY", "-1") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			tc.mutate(t)
			if _, err := Load(); err == nil {
				t.Errorf("invalid config accepted")
			}
		})
	}
}
