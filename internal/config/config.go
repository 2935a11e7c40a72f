package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	HTTPAddr string

	DatabaseURL string
	RedisURL    string

	MailRelayURL   string
	MailRelayToken string
	MailFrom       string

	MessagesDir string

	ReminderCron           string
	AverageRefreshInterval time.Duration
	TaskQueueKey           string
	DefaultTopScores       int

	LogLevel   string
	LogFormat  string
	LogConsole bool
	LogFile    string
	LogCaller  bool
}

// Load reads the process environment, after applying an optional .env file.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds the config from a lookup function.
func FromEnv(getenv func(string) string) (*AppConfig, error) {
	get := func(k string) string { return strings.TrimSpace(getenv(k)) }

	cfg := &AppConfig{
		HTTPAddr:               ":8080",
		MailFrom:               "noreply@concentration.local",
		ReminderCron:           "0 9 * * *",
		AverageRefreshInterval: 10 * time.Minute,
		TaskQueueKey:           "tasks:concentration",
		DefaultTopScores:       10,
		LogLevel:               "info",
		LogFormat:              "legacy",
		LogConsole:             true,
	}

	if v := get("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.DatabaseURL = get("DATABASE_URL")
	cfg.RedisURL = get("REDIS_URL")

	cfg.MailRelayURL = get("MAIL_RELAY_URL")
	cfg.MailRelayToken = get("MAIL_RELAY_TOKEN")
	if v := get("MAIL_FROM"); v != "" {
		cfg.MailFrom = v
	}
	cfg.MessagesDir = get("MESSAGES_DIR")

	if v := get("REMINDER_CRON"); v != "" {
		cfg.ReminderCron = v
	}
	if v := get("AVERAGE_REFRESH_INTERVAL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AverageRefreshInterval = time.Duration(n) * time.Second
		}
	}
	if v := get("TASK_QUEUE_KEY"); v != "" {
		cfg.TaskQueueKey = v
	}
	if v := get("DEFAULT_TOP_SCORES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DefaultTopScores = n
		}
	}

	if v := get("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := get("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := get("LOG_TO_CONSOLE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LogConsole = b
		}
	}
	cfg.LogFile = get("LOG_FILE")
	if v := get("LOG_CALLER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LogCaller = b
		}
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	return cfg, nil
}
