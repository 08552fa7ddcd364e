package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsetAll() {
	for suffix := range envKeys {
		os.Unsetenv(EnvPrefix + suffix)
	}
}

func TestLoadWithDefaults_Succeeds(t *testing.T) {
	// Ensure envs are clean to use defaults
	unsetAll()
	cfg, err := LoadWithDefaults()
	require.NoError(t, err)
	assert.Equal(t, ":50051", cfg.GRPC.Address)
	assert.Equal(t, DefaultPropertiesFile, cfg.Database.Properties)
	assert.NotEmpty(t, cfg.Auth.JWTSecret)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Zero(t, cfg.Database.QueryTimeout)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	unsetAll()
	t.Setenv("USERSTORE_GRPC_ADDRESS", ":1234")
	_, err := Load()
	require.Error(t, err, "expected error when USERSTORE_JWT_SECRET is not set")

	t.Setenv("USERSTORE_JWT_SECRET", "x")
	t.Setenv("USERSTORE_QUERY_TIMEOUT", "250ms")
	t.Setenv("USERSTORE_LOG_LEVEL", "DEBUG")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":1234", cfg.GRPC.Address)
	assert.Equal(t, 250*time.Millisecond, cfg.Database.QueryTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_RejectsUnknownLogFormat(t *testing.T) {
	unsetAll()
	t.Setenv("USERSTORE_JWT_SECRET", "x")
	t.Setenv("USERSTORE_LOG_FORMAT", "xml")
	_, err := Load()
	require.Error(t, err)
}

func TestConfigString_MasksSecret(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{JWTSecret: "top-secret"}, Database: DatabaseConfig{Properties: "app.properties", Root: "/etc/userstore"}}
	s := cfg.String()
	assert.NotContains(t, s, "top-secret")
	assert.Contains(t, s, "/etc/userstore/app.properties")
}

func TestLoad_DotEnvFile(t *testing.T) {
	unsetAll()
	dir := t.TempDir()
	dotenv := "# local overrides\n" +
		"USERSTORE_JWT_SECRET=from-dotenv\n" +
		"USERSTORE_GRPC_ADDRESS=:7000\n" +
		"OTHER_APP_SETTING=ignored\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, DotEnvFile), []byte(dotenv), 0o600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("USERSTORE_GRPC_ADDRESS", ":8000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Auth.JWTSecret)
	assert.Equal(t, ":8000", cfg.GRPC.Address, "process environment wins over .env")
	_, set := os.LookupEnv("USERSTORE_JWT_SECRET")
	assert.False(t, set)
}
