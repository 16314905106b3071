package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{"TELEGRAM_TOKEN": " token "}))
	require.NoError(t, err)

	assert.Equal(t, "token", cfg.TelegramToken)
	assert.Equal(t, "todo_planner.db", cfg.DatabaseURL)
	assert.Equal(t, StoreSQLite, cfg.TaskStore)
	assert.Equal(t, 5*time.Hour, cfg.ReportInterval)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, time.Local, cfg.Location)
}

func TestFromEnvRequiresToken(t *testing.T) {
	_, err := FromEnv(envMap(nil))
	assert.EqualError(t, err, "TELEGRAM_TOKEN is required")
}

func TestFromEnvReportTimeReplacesInterval(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"TELEGRAM_TOKEN": "t",
		"REPORT_TIME":    "08:30",
		"TIMEZONE":       "UTC",
	}))
	require.NoError(t, err)
	assert.Zero(t, cfg.ReportInterval)
	assert.Equal(t, "08:30", cfg.ReportTime)
	assert.Equal(t, "UTC", cfg.Location.String())

	_, err = FromEnv(envMap(map[string]string{"TELEGRAM_TOKEN": "t", "REPORT_TIME": "8h"}))
	assert.Error(t, err)
}

func TestFromEnvStoreSelection(t *testing.T) {
	_, err := FromEnv(envMap(map[string]string{"TELEGRAM_TOKEN": "t", "TASK_STORE": "datastore"}))
	assert.ErrorContains(t, err, "DATASTORE_PROJECT_ID")

	cfg, err := FromEnv(envMap(map[string]string{
		"TELEGRAM_TOKEN":       "t",
		"TASK_STORE":           "Datastore",
		"DATASTORE_PROJECT_ID": "demo",
	}))
	require.NoError(t, err)
	assert.Equal(t, StoreDatastore, cfg.TaskStore)

	_, err = FromEnv(envMap(map[string]string{"TELEGRAM_TOKEN": "t", "TASK_STORE": "mongo"}))
	assert.Error(t, err)
}

func TestParseInterval(t *testing.T) {
	assert.Equal(t, 3*time.Hour, parseInterval("3"))
	assert.Equal(t, 90*time.Minute, parseInterval("1.5"))
	assert.Zero(t, parseInterval("-2"))
	assert.Zero(t, parseInterval("soon"))
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("21:05")
	require.NoError(t, err)
	assert.Equal(t, 21, h)
	assert.Equal(t, 5, m)

	_, _, err = ParseClock("25:00")
	assert.Error(t, err)
}
