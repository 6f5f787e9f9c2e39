package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "@every 30m", cfg.SLA.Schedule)
	assert.Equal(t, 0.8, cfg.SLA.WarningRatio)
	assert.Equal(t, 5*time.Minute, cfg.TokenCache.TTL)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, int64(2<<20), cfg.Storage.MaxAvatarBytes)
	assert.Equal(t, "helpdesk", cfg.Metrics.Prefix)
	assert.False(t, cfg.Server.TrustProxy)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SLA_WARNING_RATIO", "0.5")
	t.Setenv("TOKEN_CACHE_TTL", "30s")
	t.Setenv("DB_LOG_LEVEL", "silent")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 0.5, cfg.SLA.WarningRatio)
	assert.Equal(t, 30*time.Second, cfg.TokenCache.TTL)
	assert.Equal(t, logger.Silent, cfg.DB.LogLevel)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Run("warning ratio", func(t *testing.T) {
		t.Setenv("SLA_WARNING_RATIO", "1.5")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("supabase without credentials", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "supabase")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("default signing key in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestGetDSN(t *testing.T) {
	c := DBConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "helpdesk", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=helpdesk sslmode=disable", c.GetDSN())
}
