package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, 587, cfg.SMTP.Port)
		assert.False(t, cfg.SMTPEnabled())
	})

	t.Run("yaml file then env override", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		content := `
port: "9000"
log_level: debug
site_url: https://gulfquotes.example/
smtp:
  host: smtp.example.com
  port: 2525
  username: mailer
  password: secret
  from: noreply@gulfquotes.example
rate_limit:
  rps: 1
  burst: 2
trusted_proxies:
  - 10.0.0.0/8
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		t.Setenv("PORT", "9100")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "9100", cfg.Port)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "https://gulfquotes.example", cfg.SiteURL)
		assert.Equal(t, 2525, cfg.SMTP.Port)
		assert.Equal(t, 2, cfg.RateLimit.Burst)
		assert.True(t, cfg.SMTPEnabled())
		assert.Equal(t, []string{"10.0.0.0/8"}, cfg.TrustedProxies)
	})

	t.Run("trusted proxies from env", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Empty(t, cfg.TrustedProxies)

		t.Setenv("TRUSTED_PROXIES", "10.0.0.1, 192.168.0.0/16,")
		cfg, err = Load("")
		require.NoError(t, err)
		assert.Equal(t, []string{"10.0.0.1", "192.168.0.0/16"}, cfg.TrustedProxies)
	})

	t.Run("invalid smtp port", func(t *testing.T) {
		t.Setenv("SMTP_PORT", "abc")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
