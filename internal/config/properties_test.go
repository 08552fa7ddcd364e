package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProperties = `# connection settings
postgres.driver=org.postgresql.Driver
postgres.url=jdbc:postgresql://localhost:5432/users
postgres.name: app
postgres.password=pa$$word
`

func writeProperties(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultPropertiesFile), []byte(content), 0o600))
	return dir
}

func TestReadProperties(t *testing.T) {
	os.Unsetenv("USERSTORE_POSTGRES_URL")
	dir := writeProperties(t, sampleProperties)

	p, err := ReadProperties(dir, DefaultPropertiesFile)
	require.NoError(t, err)
	assert.Equal(t, "org.postgresql.Driver", p.Get("postgres.driver"))
	assert.Equal(t, "jdbc:postgresql://localhost:5432/users", p.Get("postgres.url"))
	assert.Equal(t, "app", p.Get("postgres.name"))
	assert.Equal(t, "pa$$word", p.Get("postgres.password"))
	assert.Equal(t, "", p.Get("postgres.missing"))
	assert.Equal(t, []string{"postgres.driver", "postgres.name", "postgres.password", "postgres.url"}, p.Keys())
}

func TestReadProperties_JavaSyntax(t *testing.T) {
	t.Setenv("HOME", "/root")
	os.Unsetenv("USERSTORE_POSTGRES_URL")
	dir := writeProperties(t, `! bang comment
postgres.driver org.postgresql.Driver
postgres.url = jdbc:postgresql://localhost:5432/\
    users
postgres.name:app
postgres.password=se$HOMEcret\=${HOME}
`)

	p, err := ReadProperties(dir, DefaultPropertiesFile)
	require.NoError(t, err)
	assert.Equal(t, "org.postgresql.Driver", p.Get("postgres.driver"))
	assert.Equal(t, "jdbc:postgresql://localhost:5432/users", p.Get("postgres.url"))
	assert.Equal(t, "app", p.Get("postgres.name"))
	assert.Equal(t, "se$HOMEcret=${HOME}", p.Get("postgres.password"))
	assert.Equal(t, 4, p.Len())
}

func TestReadProperties_EnvOverride(t *testing.T) {
	dir := writeProperties(t, sampleProperties)
	t.Setenv("USERSTORE_POSTGRES_URL", "postgres://db:5432/other")
	t.Setenv("USERSTORE_GRPC_ADDRESS", ":9999")

	p, err := ReadProperties(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "postgres://db:5432/other", p.Get("postgres.url"))
	assert.False(t, p.Has("grpc.address"))
}

func TestReadProperties_Missing(t *testing.T) {
	_, err := ReadProperties(t.TempDir(), "nope.properties")
	require.Error(t, err)
}

func TestLoadProperties_MissingLogsAndReturnsEmpty(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	p := LoadProperties(t.TempDir(), "nope.properties", logger)
	require.NotNil(t, p)
	assert.Zero(t, p.Len())
	assert.Equal(t, "", p.Get("postgres.url"))
	assert.Contains(t, buf.String(), "failed to load application properties")
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestNewProperties(t *testing.T) {
	p := NewProperties(map[string]string{"postgres.driver": "sqlite3"})
	assert.True(t, p.Has("postgres.driver"))
	assert.Equal(t, "sqlite3", p.Get("postgres.driver"))

	var nilProps *Properties
	assert.Equal(t, "", nilProps.Get("postgres.driver"))
	assert.Zero(t, nilProps.Len())
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, DefaultPropertiesFile, ResolvePath("", ""))
	assert.Equal(t, filepath.Join("conf", "x.properties"), ResolvePath("conf", "x.properties"))
	assert.Equal(t, "/abs/x.properties", ResolvePath("conf", "/abs/x.properties"))
}
