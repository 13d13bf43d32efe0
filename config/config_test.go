package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"PORT", "DATABASE_URL", "DATA_DIR", "VERSION", "LOG_LEVEL", "LOG_PRETTY",
	"WHATSAPP_DB_PATH", "DEVICE_PLATFORM", "TICK_INTERVAL", "NUDGE_AFTER",
	"NO_RESPONSE_AFTER", "DEDUP_WINDOW", "AI_BASE_URL", "AI_MODEL", "AI_TIMEOUT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "data/whatsapp.db", cfg.WhatsAppDBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.PrettyLogs)
	assert.Equal(t, 60*time.Second, cfg.TickInterval)
	assert.Equal(t, 24*time.Hour, cfg.NudgeAfter)
	assert.Equal(t, 48*time.Hour, cfg.NoResponseAfter)
	assert.Equal(t, 5*time.Second, cfg.DedupWindow)
	assert.Equal(t, "gemini-2.5-flash", cfg.AIModel)
	assert.False(t, cfg.UseMySQL())
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "user:pass@tcp(localhost:3306)/followup?parseTime=true")
	t.Setenv("DATA_DIR", "/var/lib/followup")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("TICK_INTERVAL", "15s")
	t.Setenv("NUDGE_AFTER", "36h")
	t.Setenv("NO_RESPONSE_AFTER", "0")
	t.Setenv("DEDUP_WINDOW", "10")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.UseMySQL())
	assert.Equal(t, "/var/lib/followup/whatsapp.db", cfg.WhatsAppDBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.PrettyLogs)
	assert.Equal(t, 15*time.Second, cfg.TickInterval)
	assert.Equal(t, 36*time.Hour, cfg.NudgeAfter)
	assert.Equal(t, time.Duration(0), cfg.NoResponseAfter)
	assert.Equal(t, 10*time.Second, cfg.DedupWindow)
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected time.Duration
	}{
		{name: "go duration", value: "90s", expected: 90 * time.Second},
		{name: "bare seconds", value: "120", expected: 120 * time.Second},
		{name: "invalid uses default", value: "soon", expected: time.Minute},
		{name: "negative seconds uses default", value: "-5", expected: time.Minute},
		{name: "missing uses default", value: "", expected: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			assert.Equal(t, tt.expected, getEnvDuration("TEST_DURATION", time.Minute))
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		expected     bool
	}{
		{name: "true value", value: "true", defaultValue: false, expected: true},
		{name: "0 as false", value: "0", defaultValue: true, expected: false},
		{name: "invalid uses default", value: "talvez", defaultValue: true, expected: true},
		{name: "missing uses default", value: "", defaultValue: false, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.value)
			assert.Equal(t, tt.expected, getEnvBool("TEST_BOOL", tt.defaultValue))
		})
	}
}

func TestSetupLogger_Level(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
	}{
		{level: "debug", expected: zerolog.DebugLevel},
		{level: "WARN", expected: zerolog.WarnLevel},
		{level: "nonsense", expected: zerolog.InfoLevel},
		{level: "", expected: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.level, Version: "test"}
			logger := cfg.SetupLogger()
			assert.Equal(t, tt.expected, logger.GetLevel())
		})
	}
}

func TestNormalizeDSN(t *testing.T) {
	dsn, err := normalizeDSN("bot:secret@tcp(localhost:3306)/followup")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")

	_, err = normalizeDSN("not a dsn")
	assert.Error(t, err)
}

func TestConnectDatabase_EmptyDSN(t *testing.T) {
	db, err := ConnectDatabase("")
	assert.Error(t, err)
	assert.Nil(t, db)
}
