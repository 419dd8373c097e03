package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("RELAY_CONFIG", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("RELAY_CONFIG", "")
	t.Setenv("PORT", "")
	t.Setenv("CLIENT_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "4000", cfg.Port)
	assert.Equal(t, "http://localhost:3000", cfg.ClientURL)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestEnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"9000\"\njwt_secret: from-file\nclient_url: http://file.example\n"), 0o644))

	t.Setenv("RELAY_CONFIG", path)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("PORT", "")
	t.Setenv("CLIENT_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWTSecret, "env must override the file")
	assert.Equal(t, "9000", cfg.Port, "file fills unset values")
	assert.Equal(t, "http://file.example", cfg.ClientURL)
}

func TestBadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\t- not yaml"), 0o644))

	t.Setenv("RELAY_CONFIG", path)
	t.Setenv("JWT_SECRET", "s3cret")

	_, err := Load()
	assert.Error(t, err)
}
