package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "5200", cfg.Port)
	assert.Equal(t, int64(2000), cfg.MaxPowerDifference)
	assert.Equal(t, 60*time.Second, cfg.QueueTimeout())
	assert.Equal(t, 30*time.Second, cfg.QueueSweepInterval())
	assert.Equal(t, 30*time.Second, cfg.TurnTimeout())
	assert.Equal(t, 10*time.Second, cfg.HTTPClientTimeout())
	assert.Equal(t, "trust", cfg.AttackValidation)
	assert.False(t, cfg.R2.Enabled())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PVP_MAX_POWER_DIFFERENCE", "500")
	t.Setenv("PVP_ATTACK_VALIDATION", "bounded")
	t.Setenv("R2_BUCKET_NAME", "battle-reports")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("HTTP_CLIENT_TIMEOUT_SECOND", "3")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, int64(500), cfg.MaxPowerDifference)
	assert.Equal(t, "bounded", cfg.AttackValidation)
	assert.True(t, cfg.R2.Enabled())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Origins())
	assert.Equal(t, 3*time.Second, cfg.HTTPClientTimeout())
}

func TestFromEnvRejectsUnknownValidation(t *testing.T) {
	t.Setenv("PVP_ATTACK_VALIDATION", "paranoid")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnvRejectsZeroHTTPTimeout(t *testing.T) {
	t.Setenv("HTTP_CLIENT_TIMEOUT_SECOND", "0")

	_, err := FromEnv()
	assert.Error(t, err)
}
