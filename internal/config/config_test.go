package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"WAYFARER_HTTP_ADDR", "WAYFARER_DB_DSN", "WAYFARER_REDIS_ADDR", "AI_PRIMARY_PROVIDER",
		"AI_CALL_TIMEOUT_SECONDS", "AI_RETRY_TRANSPORT_ERRORS", "AI_MONTHLY_QUOTA", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Empty(t, cfg.DB.DSN)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, "gemini", cfg.AI.Primary)
	assert.Equal(t, 30*time.Second, cfg.AI.CallTimeout)
	assert.Equal(t, 15*time.Minute, cfg.AI.LocalCacheTTL)
	assert.Equal(t, 15*time.Minute, cfg.AI.RedisCacheTTL)
	assert.False(t, cfg.AI.RetryTransport)
	assert.Equal(t, 100, cfg.AI.MonthlyQuota)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AI_PRIMARY_PROVIDER", "OpenAI")
	t.Setenv("AI_CALL_TIMEOUT_SECONDS", "5")
	t.Setenv("AI_RETRY_TRANSPORT_ERRORS", "true")
	t.Setenv("AI_CACHE_REDIS_TTL_SECONDS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.AI.Primary)
	assert.Equal(t, 5*time.Second, cfg.AI.CallTimeout)
	assert.True(t, cfg.AI.RetryTransport)
	assert.Equal(t, 15*time.Minute, cfg.AI.RedisCacheTTL)
}
