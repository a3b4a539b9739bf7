package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"ENARGAS_URL", "REDIS_URL", "DATABASE_URL", "SECRET_KEY", "ENCRYPTION_KEY",
	"RPA_DEBUG_DIR", "LOG_LEVEL", "LOG_FILE", "RPA_HEADLESS", "RPA_DEBUG",
	"RPA_IDLE_SECONDS", "RPA_COOLDOWN_SECONDS", "RPA_LOGIN_TIMEOUT", "RPA_RESULT_TIMEOUT",
}

// clearEnv blanks every variable Load looks at so the host environment
// cannot leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPortalURL, cfg.Portal.URL)
	assert.Equal(t, 10*time.Second, cfg.Portal.LoginTimeout)
	assert.Equal(t, 15*time.Second, cfg.Portal.ResultTimeout)
	assert.Equal(t, 200*time.Millisecond, cfg.Portal.PollInterval)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, DefaultIdleSeconds, cfg.Browser.IdleSeconds)
	assert.Equal(t, DefaultCooldownSeconds, cfg.Browser.CooldownSeconds)
	assert.Equal(t, time.Hour, cfg.Redis.StatusTTL)
	assert.Equal(t, DefaultStatusKey, cfg.Redis.StatusKey)
	assert.False(t, cfg.Debug.Enabled)
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "rpa.yaml")
	content := `
portal:
  url: https://portal.example.test/login
  login_timeout: 5s
  settle_delay: 250ms
browser:
  headless: false
  idle_seconds: 0
  cooldown_seconds: 30
debug:
  enabled: true
  dir: /tmp/rpa-debug
locators:
  plate_input: "#patente"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://portal.example.test/login", cfg.Portal.URL)
	assert.Equal(t, 5*time.Second, cfg.Portal.LoginTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Portal.SettleDelay)
	assert.Equal(t, 15*time.Second, cfg.Portal.ResultTimeout, "unset fields keep defaults")
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 0, cfg.Browser.IdleSeconds)
	assert.Equal(t, time.Duration(0), cfg.Browser.IdleTimeout())
	assert.Equal(t, 30*time.Second, cfg.Browser.Cooldown())
	assert.True(t, cfg.Debug.Enabled)
	assert.Equal(t, "#patente", cfg.Locators.PlateInput)
	assert.Equal(t, DefaultLocators().PlateSubmit, cfg.Locators.PlateSubmit)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENARGAS_URL", "https://env.example.test/")
	t.Setenv("RPA_HEADLESS", "false")
	t.Setenv("RPA_IDLE_SECONDS", "45")
	t.Setenv("RPA_COOLDOWN_SECONDS", "0")
	t.Setenv("RPA_DEBUG", "1")
	t.Setenv("RPA_DEBUG_DIR", "/var/tmp/rpa")
	t.Setenv("RPA_LOGIN_TIMEOUT", "12")
	t.Setenv("RPA_RESULT_TIMEOUT", "20s")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.test/", cfg.Portal.URL)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 45, cfg.Browser.IdleSeconds)
	assert.Equal(t, time.Duration(0), cfg.Browser.Cooldown())
	assert.True(t, cfg.Debug.Enabled)
	assert.Equal(t, "/var/tmp/rpa", cfg.Debug.Dir)
	assert.Equal(t, 12*time.Second, cfg.Portal.LoginTimeout)
	assert.Equal(t, 20*time.Second, cfg.Portal.ResultTimeout)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
}

func TestLoadInvalidEnv(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "bad bool", key: "RPA_HEADLESS", val: "maybe"},
		{name: "bad int", key: "RPA_IDLE_SECONDS", val: "ten"},
		{name: "bad duration", key: "RPA_RESULT_TIMEOUT", val: "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:        "missing url",
			mutate:      func(c *Config) { c.Portal.URL = "" },
			expectError: "portal url is required",
		},
		{
			name:        "relative url",
			mutate:      func(c *Config) { c.Portal.URL = "/login" },
			expectError: "invalid portal url",
		},
		{
			name:        "zero login timeout",
			mutate:      func(c *Config) { c.Portal.LoginTimeout = 0 },
			expectError: "login_timeout must be positive",
		},
		{
			name:        "negative cooldown",
			mutate:      func(c *Config) { c.Browser.CooldownSeconds = -1 },
			expectError: "cooldown_seconds cannot be negative",
		},
		{
			name: "debug without dir",
			mutate: func(c *Config) {
				c.Debug.Enabled = true
				c.Debug.Dir = ""
			},
			expectError: "debug dir is required",
		},
		{
			name:        "missing locator",
			mutate:      func(c *Config) { c.Locators.PlateInput = "" },
			expectError: "locator plate_input is required",
		},
		{
			name:   "negative idle disables idle close",
			mutate: func(c *Config) { c.Browser.IdleSeconds = -5 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.expectError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}
