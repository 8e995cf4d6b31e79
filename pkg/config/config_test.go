package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir changes the working directory for the test and restores it on
// cleanup (equivalent to testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(prev)) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "curriculum", cfg.Database.Name)
	assert.True(t, cfg.Mappings.RequireOverrideReason)
	assert.Equal(t, "curriculum.transitions", cfg.Signals.Channel)
	assert.Equal(t, 5*time.Minute, cfg.StatsCache.TTL)
	assert.Equal(t, 2, cfg.Audit.Workers)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("MAPPINGS_REQUIRE_OVERRIDE_REASON", "false")
	t.Setenv("STATS_CACHE_TTL", "bogus")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("OTEL_SAMPLER_RATIO", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.False(t, cfg.Mappings.RequireOverrideReason)
	assert.Equal(t, 5*time.Minute, cfg.StatsCache.TTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 0.1, cfg.Tracing.SampleRatio)
}
