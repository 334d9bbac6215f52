package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("TELEGRAM_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///data/feedback_bot.db", cfg.DatabaseURL)
	assert.Equal(t, 10*time.Minute, cfg.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.Grace())
	assert.Equal(t, 30*time.Second, cfg.StartupDelay)
	assert.Equal(t, 168*time.Hour, cfg.DispatchRetention)
	assert.Equal(t, 4, cfg.SendConcurrency)
	assert.Equal(t, ModePolling, cfg.RunMode)
	assert.Equal(t, "Europe/Moscow", cfg.Location.String())
	assert.Zero(t, cfg.AdminChatID)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.env")
	require.NoError(t, os.WriteFile(path, []byte("ADMIN_CHAT_ID=-100500\nGRACE_WINDOW=15m\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Cleanup(func() {
		os.Unsetenv("ADMIN_CHAT_ID")
		os.Unsetenv("GRACE_WINDOW")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(-100500), cfg.AdminChatID)
	assert.Equal(t, 15*time.Minute, cfg.Grace())
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("TELEGRAM_TOKEN", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			TelegramToken:   "t",
			DatabaseURL:     "bot.db",
			Timezone:        "UTC",
			PollInterval:    time.Minute,
			SendConcurrency: 1,
			RunMode:         ModePolling,
			HTTPAddr:        ":8080",
			LogLevel:        "info",
		}
	}

	cfg := base()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.UTC, cfg.Location)

	cases := map[string]func(*Config){
		"webhook without url": func(c *Config) { c.RunMode = ModeWebhook },
		"bad run mode":        func(c *Config) { c.RunMode = "push" },
		"bad timezone":        func(c *Config) { c.Timezone = "Mars/Olympus" },
		"zero poll":           func(c *Config) { c.PollInterval = 0 },
		"negative grace":      func(c *Config) { c.GraceWindow = -time.Second },
		"bad log level":       func(c *Config) { c.LogLevel = "trace" },
		"no concurrency":      func(c *Config) { c.SendConcurrency = 0 },
	}
	for name, mutate := range cases {
		cfg := base()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}

	cfg = base()
	cfg.RunMode = ModeWebhook
	cfg.WebhookURL = "https://bot.example.com/telegram/webhook"
	assert.Error(t, cfg.Validate(), "webhook without secret")

	cfg.WebhookSecret = "not a token!"
	assert.Error(t, cfg.Validate(), "bad secret charset")

	cfg.WebhookSecret = "s3cret_Token-1"
	assert.NoError(t, cfg.Validate())
}
