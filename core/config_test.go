package core

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	os.Unsetenv("HMAC_SECRET")
	os.Unsetenv("ENABLE_REQUEST_SIGNING")

	cfg, err := NewConfig(WithRequestSigning(false))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 5, cfg.MaxDebateIterations)
	assert.Equal(t, 80, cfg.ConsensusThreshold)
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
}

func TestNewConfig_OptionsOverrideEnv(t *testing.T) {
	os.Setenv("MAX_RETRIES", "7")
	defer os.Unsetenv("MAX_RETRIES")

	cfg, err := NewConfig(WithRequestSigning(false), WithMaxRetries(2))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxRetries, "functional option must win over env var")
}

func TestNewConfig_EnvOverridesDefault(t *testing.T) {
	os.Setenv("CONSENSUS_THRESHOLD", "55")
	defer os.Unsetenv("CONSENSUS_THRESHOLD")

	cfg, err := NewConfig(WithRequestSigning(false))
	require.NoError(t, err)
	assert.Equal(t, 55, cfg.ConsensusThreshold)
}

func TestNewConfig_RequestSigningRequiresSecret(t *testing.T) {
	os.Unsetenv("HMAC_SECRET")
	_, err := NewConfig(WithRequestSigning(true))
	require.Error(t, err)
}

func TestNewConfig_InvalidThreshold(t *testing.T) {
	_, err := NewConfig(WithRequestSigning(false), WithConsensusThreshold(150))
	require.Error(t, err)
}

func TestWithRetryPacing(t *testing.T) {
	cfg, err := NewConfig(WithRequestSigning(false), WithRetryPacing(time.Second, time.Minute, 3.0))
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.InitialRetryDelay)
	assert.Equal(t, time.Minute, cfg.MaxRetryDelay)
	assert.Equal(t, 3.0, cfg.BackoffMultiplier)
}
