// Package config loads daemon configuration from environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/toolworks/cycletimed/internal/platform"
)

// Config holds all runtime configuration for cycletimed.
type Config struct {
	Port    string
	WorkDir string
	DBPath  string

	// TaxonomyPath overrides the embedded tool taxonomy JSON when set.
	TaxonomyPath string

	// APIKey protects the HTTP API. Empty disables auth (local use).
	APIKey string

	TelegramToken  string
	TelegramChatID int64

	// BatchWorkers is the number of concurrent batch runners.
	BatchWorkers int

	// WebhookTimeoutSeconds bounds each outbound webhook delivery.
	WebhookTimeoutSeconds int
}

// Load reads environment variables and returns a Config.
// Uses sensible defaults for optional fields.
// Panics if required fields are empty.
func Load() *Config {
	workDir := getEnv("WORK_DIR", platform.DefaultWorkDir())

	dbPath := getEnv("DB_PATH", filepath.Join(workDir, "cycletimed.db"))
	if dbPath == "" {
		panic("config: DB_PATH is required")
	}

	chatID, _ := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)

	return &Config{
		Port:    getEnv("PORT", "8080"),
		WorkDir: workDir,
		DBPath:  dbPath,

		TaxonomyPath: os.Getenv("TAXONOMY_PATH"),

		APIKey: os.Getenv("API_KEY"),

		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID: chatID,

		BatchWorkers:          getEnvInt("BATCH_WORKERS", 2),
		WebhookTimeoutSeconds: getEnvInt("WEBHOOK_TIMEOUT_SECONDS", 10),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
