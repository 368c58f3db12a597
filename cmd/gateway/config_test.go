package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	_, cfg, err := loadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, 2, cfg.Sync.Concurrency)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
}

func TestLoadConfig_FileAndEnvOverride(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "configs"), 0o755))
	yaml := `
server:
  port: 8080
  public_url: "https://updates.example.com/"
github:
  token: from-file
rate_limit:
  rules:
    updates: { limit: 10, window: 1m }
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "configs", "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("AEGIS_GITHUB_TOKEN", "from-env")
	t.Setenv("AEGIS_AUTH_JWT_SECRET", "jwt")

	_, cfg, err := loadConfig(root)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://updates.example.com", cfg.Server.PublicURL)
	assert.Equal(t, "from-env", cfg.Github.Token)
	assert.Equal(t, "jwt", cfg.Auth.JWTSecret)

	rules := cfg.RateLimit.rules()
	require.Contains(t, rules, "updates")
	assert.Equal(t, 10, rules["updates"].Limit)
	assert.Equal(t, time.Minute, rules["updates"].Window)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("AEGIS_GITHUB_WEBHOOK_SECRET=dotenv-secret\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("AEGIS_GITHUB_WEBHOOK_SECRET") })

	_, cfg, err := loadConfig(root)
	require.NoError(t, err)
	assert.Equal(t, "dotenv-secret", cfg.Github.WebhookSecret)
}

func TestAbsPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/srv", "instance/x.db"), absPath("/srv", "instance/x.db"))
	assert.Equal(t, "/abs/x.db", absPath("/srv", "/abs/x.db"))
	assert.Equal(t, "", absPath("/srv", ""))
}
