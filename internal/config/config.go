package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends selectable through TASK_STORE.
const (
	StoreSQLite    = "sqlite"
	StoreDatastore = "datastore"
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken      string
	DatabaseURL        string
	TaskStore          string
	DatastoreProjectID string
	ReportInterval     time.Duration
	ReportTime         string
	Location           *time.Location
	LogLevel           string
	LogFormat          string
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is applied first when present;
// variables already set in the environment win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	cfg := Config{
		TelegramToken:      get("TELEGRAM_TOKEN"),
		DatabaseURL:        get("DATABASE_URL"),
		TaskStore:          strings.ToLower(get("TASK_STORE")),
		DatastoreProjectID: get("DATASTORE_PROJECT_ID"),
		ReportInterval:     parseInterval(get("REPORT_INTERVAL_HOURS")),
		ReportTime:         get("REPORT_TIME"),
		LogLevel:           get("LOG_LEVEL"),
		LogFormat:          get("LOG_FORMAT"),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "todo_planner.db"
	}
	if cfg.TaskStore == "" {
		cfg.TaskStore = StoreSQLite
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}

	// A fixed report time replaces the interval schedule.
	if cfg.ReportTime != "" {
		if _, _, err := ParseClock(cfg.ReportTime); err != nil {
			return cfg, fmt.Errorf("REPORT_TIME: %w", err)
		}
	} else if cfg.ReportInterval == 0 {
		cfg.ReportInterval = 5 * time.Hour
	}

	cfg.Location = time.Local
	if tz := get("TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return cfg, fmt.Errorf("TIMEZONE: %w", err)
		}
		cfg.Location = loc
	}

	switch cfg.TaskStore {
	case StoreSQLite:
	case StoreDatastore:
		if cfg.DatastoreProjectID == "" {
			return cfg, fmt.Errorf("DATASTORE_PROJECT_ID is required when TASK_STORE=datastore")
		}
	default:
		return cfg, fmt.Errorf("TASK_STORE must be %q or %q, got %q", StoreSQLite, StoreDatastore, cfg.TaskStore)
	}

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}

// ParseClock parses an HH:MM wall-clock time.
func ParseClock(raw string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", raw)
	}
	return t.Hour(), t.Minute(), nil
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}
