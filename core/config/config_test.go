package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeExpandsReferences(t *testing.T) {
	t.Setenv("FORGE_TEST_TOKEN", "123:secret")
	t.Setenv("RATE_LIMIT_BURST", "9")

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
telegram:
  token: "${FORGE_TEST_TOKEN}"
  run_mode: polling
webhook:
  url: "${FORGE_UNSET_VAR}"
database_password: "pa$word"
rate_limit:
  interval_ms: 1500
  burst: 2
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	var cfg Config
	require.NoError(t, Decode(path, &cfg))
	require.Equal(t, "123:secret", cfg.Telegram.Token)
	require.Equal(t, "${FORGE_UNSET_VAR}", cfg.Webhook.URL)
	require.Equal(t, 9, cfg.RateLimit.Burst)

	require.NoError(t, Normalize(&cfg))
	require.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	require.Equal(t, "info", cfg.Logging.Level)

	require.ErrorContains(t, Decode(filepath.Join(t.TempDir(), "missing.yaml"), &cfg), "read config file")
}

func TestNormalizeValidatesSections(t *testing.T) {
	base := func() *Config {
		return &Config{Telegram: TelegramConfig{Token: "t"}}
	}

	require.ErrorContains(t, Normalize(&Config{}), "token")

	cfg := base()
	cfg.Telegram.RunMode = "webhook"
	cfg.Webhook = WebhookConfig{URL: "http://forge.example/hook", Listen: "0.0.0.0", Port: 8443}
	require.ErrorContains(t, Normalize(cfg), "https")

	cfg.Webhook.URL = "https://forge.example/hook"
	require.NoError(t, Normalize(cfg))
	require.Equal(t, RunModeWebhook, cfg.Telegram.RunMode)

	cfg.Webhook.Port = 70000
	require.ErrorContains(t, Normalize(cfg), "webhook.port")

	cfg = base()
	cfg.Telegram.RunMode = "carrier-pigeon"
	require.ErrorContains(t, Normalize(cfg), "run_mode")

	cfg = base()
	cfg.Logging.Level = "LOUD"
	require.ErrorContains(t, Normalize(cfg), "logging.level")

	cfg = base()
	cfg.RateLimit.ExcludeUpdates = []string{" Callback "}
	require.NoError(t, Normalize(cfg))
	require.Equal(t, []string{UpdateCallback}, cfg.RateLimit.ExcludeUpdates)
	require.Equal(t, DefaultRateLimitBurst, cfg.RateLimit.Burst)

	cfg.RateLimit.ExcludeUpdates = []string{"inline_query"}
	require.ErrorContains(t, Normalize(cfg), "exclude_updates")
}
