package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.NotEmpty(t, cfg.WorkDir)
	assert.NotEmpty(t, cfg.DBPath)
	assert.Equal(t, 2, cfg.BatchWorkers)
	assert.Equal(t, 10, cfg.WebhookTimeoutSeconds)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("WORK_DIR", "/tmp/ct-test")
	t.Setenv("BATCH_WORKERS", "5")
	t.Setenv("TELEGRAM_CHAT_ID", "12345")
	t.Setenv("API_KEY", "k")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "/tmp/ct-test", cfg.WorkDir)
	assert.Equal(t, "/tmp/ct-test/cycletimed.db", cfg.DBPath)
	assert.Equal(t, 5, cfg.BatchWorkers)
	assert.Equal(t, int64(12345), cfg.TelegramChatID)
	assert.Equal(t, "k", cfg.APIKey)
}

func TestGetEnvInt_BadValue(t *testing.T) {
	t.Setenv("BATCH_WORKERS", "lots")
	cfg := Load()
	assert.Equal(t, 2, cfg.BatchWorkers)
}
