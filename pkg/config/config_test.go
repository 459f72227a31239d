package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Completion.Timeout)
	assert.Equal(t, 0.8, cfg.Completion.Temperature)
	assert.Equal(t, 300, cfg.Completion.MaxTokens)
	assert.Equal(t, 10, cfg.Completion.HistoryLimit)
	assert.Equal(t, int64(10<<20), cfg.Uploads.MaxSize)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("COMPLETION_MODEL", "gpt-4o-mini")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("RATE_LIMIT", "2.5")
	t.Setenv("COMPLETION_TIMEOUT", "5s")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.Completion.Model)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, 2.5, cfg.Security.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.Completion.Timeout)
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.Uploads.MaxSize = 0
	cfg.Vault.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UPLOAD_MAX_SIZE")
	assert.Contains(t, err.Error(), "VAULT_ADDR")
}
