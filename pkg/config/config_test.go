package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 5, cfg.Reports.IPLimit)
	assert.Equal(t, time.Hour, cfg.Reports.IPWindow)
	assert.Equal(t, 3, cfg.Reports.EmailLimit)
	assert.Equal(t, 24*time.Hour, cfg.Reports.EmailWindow)
	assert.Equal(t, 15*time.Minute, cfg.PasswordReset.TTL)
	assert.Equal(t, "log", cfg.Mail.Driver)
	assert.False(t, cfg.Sentry.Enabled(cfg.Env))
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ENV", EnvProduction)
	t.Setenv("PUBLIC_BASE_URL", "https://example.org/")
	t.Setenv("ADMIN_NOTIFICATION_EMAILS", "a@example.org, b@example.org ,")
	t.Setenv("TRANSPARENCY_CACHE_TTL", "not-a-duration")
	t.Setenv("SENTRY_DSN", "https://key@sentry.example.org/1")
	t.Setenv("MAIL_DRIVER", "SMTP")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://example.org", cfg.PublicBaseURL)
	assert.Equal(t, []string{"a@example.org", "b@example.org"}, cfg.Mail.AdminRecipients)
	assert.Equal(t, 10*time.Minute, cfg.Transparency.CacheTTL)
	assert.Equal(t, "smtp", cfg.Mail.Driver)
	assert.True(t, cfg.Sentry.Enabled(cfg.Env))
}
