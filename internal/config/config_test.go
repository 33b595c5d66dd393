package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123456:test-token")
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test")
}

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		setCredentials(t)

		cfg, err := Load("", false)
		require.NoError(t, err)

		assert.Equal(t, int64(20), cfg.Limits.MaxFileSizeMB)
		assert.Equal(t, 50, cfg.Limits.MaxPDFPages)
		assert.Equal(t, 10000, cfg.Limits.MaxTextLength)
		assert.Equal(t, 20, cfg.Limits.MaxChatHistory)
		assert.Equal(t, 8000, cfg.Limits.ContextTokens)
		assert.Equal(t, 500, cfg.Limits.TokenReserve)
		assert.Equal(t, 5, cfg.Limits.EstimatorDivisor)
		assert.Equal(t, 4096, cfg.Limits.TransportChunk)
		assert.Equal(t, 50, cfg.Limits.CacheEntries)
		assert.Equal(t, "downloads", cfg.DownloadsDir)
		assert.Equal(t, 30*time.Second, cfg.DownloadTimeout)
		assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
		assert.Equal(t, time.Hour, cfg.StagingRetention)
		assert.Equal(t, 8443, cfg.Webhook.Port)
		assert.Empty(t, cfg.Webhook.URL, "polling should be the default mode")
	})

	t.Run("Missing_Telegram_Token_Fails", func(t *testing.T) {
		t.Setenv("TELEGRAM_BOT_TOKEN", "")
		t.Setenv("OPENROUTER_API_KEY", "sk-or-test")

		_, err := Load("", false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TELEGRAM_BOT_TOKEN")
	})

	t.Run("Missing_API_Key_Fails", func(t *testing.T) {
		t.Setenv("TELEGRAM_BOT_TOKEN", "123456:test-token")
		t.Setenv("OPENROUTER_API_KEY", "")

		_, err := Load("", false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OPENROUTER_API_KEY")
	})

	t.Run("Legacy_Env_Names_Work", func(t *testing.T) {
		setCredentials(t)
		t.Setenv("WEBHOOK_URL", "https://bot.example.com")
		t.Setenv("PORT", "9000")

		cfg, err := Load("", false)
		require.NoError(t, err)
		assert.Equal(t, "https://bot.example.com", cfg.Webhook.URL)
		assert.Equal(t, 9000, cfg.Webhook.Port)
	})

	t.Run("Config_File_Overrides", func(t *testing.T) {
		setCredentials(t)

		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
limits:
  max_chat_history: 40
  context_tokens: 16000
downloads_dir: /tmp/staging
`), 0o644))

		cfg, err := Load(path, false)
		require.NoError(t, err)
		assert.Equal(t, 40, cfg.Limits.MaxChatHistory)
		assert.Equal(t, 16000, cfg.Limits.ContextTokens)
		assert.Equal(t, "/tmp/staging", cfg.DownloadsDir)
	})

	t.Run("Bad_Config_File_Fails", func(t *testing.T) {
		setCredentials(t)
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), false)
		require.Error(t, err)
	})

	t.Run("Debug_Flag_Wins", func(t *testing.T) {
		setCredentials(t)
		cfg, err := Load("", true)
		require.NoError(t, err)
		assert.True(t, cfg.Debug)
	})
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			TelegramToken:    "t",
			OpenRouterAPIKey: "k",
			Limits: Limits{
				MaxChatHistory:   20,
				EstimatorDivisor: 5,
				TransportChunk:   4096,
			},
		}
	}

	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("Bad_History_Cap", func(t *testing.T) {
		cfg := base()
		cfg.Limits.MaxChatHistory = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("Bad_Divisor", func(t *testing.T) {
		cfg := base()
		cfg.Limits.EstimatorDivisor = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("Bad_Chunk", func(t *testing.T) {
		cfg := base()
		cfg.Limits.TransportChunk = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestMaxFileSizeBytes(t *testing.T) {
	cfg := &Config{Limits: Limits{MaxFileSizeMB: 20}}
	assert.Equal(t, int64(20*1024*1024), cfg.MaxFileSizeBytes())
}
