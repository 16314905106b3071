package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, "warn", "json")
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	log.Info().Msg("hidden")
	store := Component("store")
	store.Warn().Str("id", "t1").Msg("slow write")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "store", entry["component"])
	assert.Equal(t, "t1", entry["id"])
	assert.Equal(t, "slow write", entry["message"])
}

func TestSetupFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, "chatty", "console")

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	log.Info().Msg("started")
	assert.Contains(t, buf.String(), "started")
}

func TestCtxFallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, "info", "json")

	Ctx(context.Background()).Info().Msg("global")
	assert.Contains(t, buf.String(), "global")

	var scoped bytes.Buffer
	l := zerolog.New(&scoped)
	Ctx(l.WithContext(context.Background())).Info().Msg("scoped")
	assert.Contains(t, scoped.String(), "scoped")
}
