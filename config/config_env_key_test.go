package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeEnvKey_UsesExistingCamelCaseKeys(t *testing.T) {
	existing := map[string]any{
		"firebase": map[string]any{
			"apiKey":              "",
			"redirectCallbackUrl": "",
		},
		"secretKey": map[string]any{
			"flow": "",
		},
		"rateLimit": map[string]any{
			"requestsPerSecond": 1,
		},
		"challenge": map[string]any{
			"redis": map[string]any{
				"keyPrefix": "archer:",
			},
		},
	}

	tests := []struct {
		envKey string
		want   string
	}{
		{envKey: "FIREBASE_APIKEY", want: "firebase.apiKey"},
		{envKey: "FIREBASE_REDIRECTCALLBACKURL", want: "firebase.redirectCallbackUrl"},
		{envKey: "SECRETKEY_FLOW", want: "secretKey.flow"},
		{envKey: "RATELIMIT_REQUESTSPERSECOND", want: "rateLimit.requestsPerSecond"},
		{envKey: "CHALLENGE_REDIS_KEYPREFIX", want: "challenge.redis.keyPrefix"},
		{envKey: "NEW_FEATURE_FLAG", want: "new.feature.flag"},
	}

	for _, tt := range tests {
		t.Run(tt.envKey, func(t *testing.T) {
			assert.Equal(t, tt.want, canonicalizeEnvKey(tt.envKey, existing))
		})
	}
}

func TestLoadWithEnv_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("firebase:\n  projectId: archer-dev\n  apiKey: from-file\nflow:\n  ttl: 20m\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Chdir(dir)
	t.Setenv("FIREBASE_APIKEY", "from-env")

	cfg, err := LoadWithEnv[Config]("config")
	require.NoError(t, err)
	applyDefaults(cfg)

	require.NotNil(t, cfg.Firebase)
	assert.Equal(t, "archer-dev", cfg.Firebase.ProjectID)
	assert.Equal(t, "from-env", cfg.Firebase.APIKey)
	assert.Equal(t, 20*time.Minute, cfg.Flow.TTL)
	assert.Equal(t, defaultRedirectResultTTL, cfg.Flow.RedirectResultTTL)
	assert.Equal(t, "memory", cfg.Store.Provider)
	assert.Equal(t, "archer:", cfg.Challenge.Redis.KeyPrefix)
}

func TestLoadWithEnv_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := LoadWithEnv[Config]("missing")

	assert.ErrorContains(t, err, "missing.yaml not found")
}
