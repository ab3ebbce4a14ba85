package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_KEY", "")
	t.Setenv("SUPABASE_ANON_KEY", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.UsingPlaceholder)
	assert.Equal(t, PlaceholderSupabaseURL, cfg.SupabaseUrl)
	assert.Equal(t, PlaceholderSupabaseKey, cfg.SupabaseServiceKey, "service key falls back to anon key")
	assert.Equal(t, 60, cfg.OTPResendSeconds)
	assert.Equal(t, 5*time.Second, cfg.UpstreamTimeout)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co/")
	t.Setenv("SUPABASE_KEY", "anon")
	t.Setenv("OTP_PROVIDER", "LOCAL")
	t.Setenv("OTP_RESEND_SECONDS", "30")
	t.Setenv("UPSTREAM_TIMEOUT", "7")
	t.Setenv("UPSTREAM_MAX_TIMEOUT", "20s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, ,https://admin.example.com")
	t.Setenv("APP_ENV", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.False(t, cfg.UsingPlaceholder)
	assert.Equal(t, "https://abc.supabase.co", cfg.SupabaseUrl)
	assert.Equal(t, "local", cfg.OTPProvider)
	assert.Equal(t, 30, cfg.OTPResendSeconds)
	assert.Equal(t, 7*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, 20*time.Second, cfg.UpstreamMaxTimeout)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.IsProduction())
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "abc")
	assert.Equal(t, 3, getEnvInt("SOME_INT", 3))
}
