package config

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	Port        string
	DatabaseURL string // DSN do MySQL; vazio usa o armazenamento em arquivo
	DataDir     string
	Version     string
	LogLevel    string
	PrettyLogs  bool

	WhatsAppDBPath string
	DevicePlatform string

	TickInterval    time.Duration
	NudgeAfter      time.Duration
	NoResponseAfter time.Duration
	DedupWindow     time.Duration

	AIBaseURL string
	AIModel   string
	AITimeout time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	dataDir := getEnv("DATA_DIR", "data")

	return &Config{
		Port:        getEnv("PORT", "3001"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DataDir:     dataDir,
		Version:     getEnv("VERSION", "1.0.0"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		PrettyLogs:  getEnvBool("LOG_PRETTY", false),

		WhatsAppDBPath: getEnv("WHATSAPP_DB_PATH", filepath.Join(dataDir, "whatsapp.db")),
		DevicePlatform: getEnv("DEVICE_PLATFORM", "FollowUp"),

		TickInterval:    getEnvDuration("TICK_INTERVAL", 60*time.Second),
		NudgeAfter:      getEnvDuration("NUDGE_AFTER", 24*time.Hour),
		NoResponseAfter: getEnvDuration("NO_RESPONSE_AFTER", 48*time.Hour),
		DedupWindow:     getEnvDuration("DEDUP_WINDOW", 5*time.Second),

		// Endpoint compatível com OpenAI do Gemini
		AIBaseURL: getEnv("AI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
		AIModel:   getEnv("AI_MODEL", "gemini-2.5-flash"),
		AITimeout: getEnvDuration("AI_TIMEOUT", 20*time.Second),
	}
}

// UseMySQL reports whether contacts and settings live in MySQL instead of JSON files.
func (c *Config) UseMySQL() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s", "36h") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs := getEnvInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// SetupLogger configures zerolog with JSON output and the configured level
func (c *Config) SetupLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if c.PrettyLogs {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
	}

	logger := zerolog.New(out).With().
		Timestamp().
		Str("service", "followup-bot").
		Str("version", c.Version).
		Logger()

	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}
