package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigPath(t *testing.T) {
	home := setupHome(t)

	out, _, err := run(t, "", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.yaml"), strings.TrimSpace(out))

	custom := filepath.Join(t.TempDir(), "other.yaml")
	out, _, err = run(t, "", "--config", custom, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, custom, strings.TrimSpace(out))
}

func TestConfigInit(t *testing.T) {
	home := setupHome(t)
	path := filepath.Join(home, "config.yaml")

	_, _, err := run(t, "", "config", "init")
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	_, _, err = run(t, "", "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = run(t, "", "config", "init", "--force")
	require.NoError(t, err)
}

func TestConfigShow(t *testing.T) {
	setupHome(t)

	out, _, err := run(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# Configuration file:")
	assert.Contains(t, out, "provider: local")
	assert.Contains(t, out, "submit_policy: block")
}

func TestConfigGetSet(t *testing.T) {
	setupHome(t)

	out, _, err := run(t, "", "config", "get", "forms.submit_policy")
	require.NoError(t, err)
	assert.Equal(t, "block", strings.TrimSpace(out))

	out, _, err = run(t, "", "config", "set", "forms.submit_policy", "submit-anyway")
	require.NoError(t, err)
	assert.Equal(t, "forms.submit_policy = submit-anyway", strings.TrimSpace(out))

	out, _, err = run(t, "", "config", "get", "forms.submit_policy")
	require.NoError(t, err)
	assert.Equal(t, "submit-anyway", strings.TrimSpace(out))

	out, _, err = run(t, "", "config", "set", "runtime.request_timeout", "30s")
	require.NoError(t, err)
	assert.Equal(t, "runtime.request_timeout = 30s", strings.TrimSpace(out))

	_, _, err = run(t, "", "config", "set", "local.allow_signup", "no")
	require.NoError(t, err)
	out, _, err = run(t, "", "config", "get", "local.allow_signup")
	require.NoError(t, err)
	assert.Equal(t, "false", strings.TrimSpace(out))
}

func TestConfigSetRejectsInvalid(t *testing.T) {
	setupHome(t)

	tests := []struct {
		key, value string
	}{
		{"forms.submit_policy", "sometimes"},
		{"runtime.request_timeout", "soon"},
		{"local.max_failed_attempts", "many"},
		{"local.allow_signup", "maybe"},
		{"provider", "okta"},
		{"version", "2"},
		{"no.such.key", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			_, _, err := run(t, "", "config", "set", tt.key, tt.value)
			assert.Error(t, err)
		})
	}
}

func TestConfigSetIgnoresEnvironment(t *testing.T) {
	home := setupHome(t)
	t.Setenv("AUTHDECK_LOG_LEVEL", "debug")

	_, _, err := run(t, "", "config", "set", "locale", "en")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(home, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "locale: en")
	assert.NotContains(t, string(data), "level: debug")
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"true", "YES", "1", "on"} {
		v, err := parseBool(s)
		require.NoError(t, err)
		assert.True(t, v, s)
	}
	for _, s := range []string{"false", "no", "0", "Off"} {
		v, err := parseBool(s)
		require.NoError(t, err)
		assert.False(t, v, s)
	}
	_, err := parseBool("maybe")
	assert.Error(t, err)
}
