package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Dicklesworthstone/authdeck/internal/form"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, ProviderLocal, cfg.Provider)
	assert.True(t, cfg.Local.AllowSignup)
	assert.Equal(t, 5, cfg.Local.MaxFailedAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Local.LockoutWindow.Duration())
	assert.Equal(t, form.PolicyBlock, cfg.SubmitPolicy())
	assert.True(t, cfg.Runtime.FileWatching)
	assert.Equal(t, 15*time.Second, cfg.Runtime.RequestTimeout.Duration())
	assert.Equal(t, "info", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().Local, cfg.Local)
}

func TestLoadFrom_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider: firebase
locale: en
firebase:
  api_key: test-key
forms:
  submit_policy: submit-anyway
runtime:
  request_timeout: 3s
local:
  lockout_window: 1m
`), 0600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderFirebase, cfg.Provider)
	assert.Equal(t, "en", cfg.Locale)
	assert.Equal(t, "test-key", cfg.Firebase.APIKey)
	assert.Equal(t, form.PolicySubmitAnyway, cfg.SubmitPolicy())
	assert.Equal(t, 3*time.Second, cfg.Runtime.RequestTimeout.Duration())
	assert.Equal(t, time.Minute, cfg.Local.LockoutWindow.Duration())
	// Unset fields keep their defaults.
	assert.Equal(t, 5, cfg.Local.MaxFailedAttempts)
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: local\n"), 0600))

	t.Setenv("AUTHDECK_PROVIDER", "firebase")
	t.Setenv("AUTHDECK_FIREBASE_API_KEY", "from-env")
	t.Setenv("AUTHDECK_REQUEST_TIMEOUT", "2s")
	t.Setenv("AUTHDECK_LOCAL_ALLOW_SIGNUP", "false")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderFirebase, cfg.Provider)
	assert.Equal(t, "from-env", cfg.Firebase.APIKey)
	assert.Equal(t, 2*time.Second, cfg.Runtime.RequestTimeout.Duration())
	assert.False(t, cfg.Local.AllowSignup)
}

func TestLoadFrom_InvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("runtime:\n  request_timeout: soon\n"), 0600))

	_, err := LoadFrom(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Provider = "okta" }},
		{"firebase without key", func(c *Config) { c.Provider = ProviderFirebase }},
		{"unknown locale", func(c *Config) { c.Locale = "fr" }},
		{"unknown policy", func(c *Config) { c.Forms.SubmitPolicy = "sometimes" }},
		{"negative attempts", func(c *Config) { c.Local.MaxFailedAttempts = -1 }},
		{"lockout without window", func(c *Config) { c.Local.LockoutWindow = 0 }},
		{"zero token ttl", func(c *Config) { c.Local.TokenTTL = 0 }},
		{"zero timeout", func(c *Config) { c.Runtime.RequestTimeout = 0 }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Defaults()
	cfg.Local.MaxFailedAttempts = 0
	cfg.Local.LockoutWindow = 0
	assert.NoError(t, cfg.Validate(), "lockout disabled needs no window")
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Defaults()
	cfg.Locale = "en"
	cfg.Local.LockoutWindow = Duration(90 * time.Second)
	require.NoError(t, cfg.SaveTo(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "lockout_window: 1m30s")

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestDuration_YAML(t *testing.T) {
	var d Duration
	require.NoError(t, yaml.Unmarshal([]byte(`"10m"`), &d))
	assert.Equal(t, 10*time.Minute, d.Duration())
	assert.Error(t, yaml.Unmarshal([]byte(`"-1s"`), &d))
}

func TestPaths_FollowHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("AUTHDECK_HOME", home)

	cfg := Defaults()
	assert.Equal(t, filepath.Join(home, "config.yaml"), Path())
	assert.Equal(t, filepath.Join(home, "data", "authdeck.db"), cfg.DBPath())
	assert.Equal(t, filepath.Join(home, "authdeck.log"), cfg.LogPath())
	assert.Equal(t, filepath.Join(home, "session.json"), cfg.SessionPath())

	cfg.Log.Path = "/tmp/x.log"
	assert.Equal(t, "/tmp/x.log", cfg.LogPath())
}
