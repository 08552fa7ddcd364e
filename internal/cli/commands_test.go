package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"userStore/models"
)

// newWorkspace writes an app.properties pointing at a SQLite file in a temp dir.
func newWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	props := "# test database\n" +
		"postgres.driver=org.sqlite.JDBC\n" +
		"postgres.url=jdbc:sqlite:" + filepath.Join(dir, "users.db") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.properties"), []byte(props), 0o600))
	return dir
}

func run(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--root", root, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestCommands_RoundTrip(t *testing.T) {
	root := newWorkspace(t)

	out, err := run(t, root, "init")
	require.NoError(t, err)
	assert.Equal(t, "schema ready", out)

	out, err = run(t, root, "create", "Ada", "Lovelace", "30")
	require.NoError(t, err)
	assert.Equal(t, "1", out)

	_, err = run(t, root, "create", "Grace", "Hopper", "45")
	require.NoError(t, err)

	out, err = run(t, root, "get", "1")
	require.NoError(t, err)
	var u models.User
	require.NoError(t, json.Unmarshal([]byte(out), &u))
	assert.Equal(t, models.User{ID: 1, FirstName: "Ada", LastName: "Lovelace", Age: 30}, u)

	out, err = run(t, root, "find", "Grace")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &u))
	assert.Equal(t, int64(2), u.ID)

	out, err = run(t, root, "update", "1", "Ada", "King", "36")
	require.NoError(t, err)
	assert.Equal(t, "1", out)

	out, err = run(t, root, "update", "99", "No", "One", "1")
	require.NoError(t, err)
	assert.Equal(t, "0", out)

	out, err = run(t, root, "list")
	require.NoError(t, err)
	var all []models.User
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	require.Len(t, all, 2)
	assert.Equal(t, "King", all[0].LastName)

	out, err = run(t, root, "list", "--page-size", "1", "--after", "1")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	require.Len(t, all, 1)
	assert.Equal(t, "Grace", all[0].FirstName)

	out, err = run(t, root, "delete", "1")
	require.NoError(t, err)
	assert.Equal(t, "1", out)

	_, err = run(t, root, "get", "1")
	assert.ErrorContains(t, err, "not found")
}

func TestCommands_Errors(t *testing.T) {
	root := newWorkspace(t)

	_, err := run(t, root, "create", "Ada", "Lovelace", "thirty")
	assert.ErrorContains(t, err, "invalid age")

	_, err = run(t, root, "get", "abc")
	assert.ErrorContains(t, err, "invalid id")

	_, err = run(t, root, "get")
	assert.Error(t, err)

	_, err = run(t, t.TempDir(), "list")
	assert.ErrorContains(t, err, "app.properties")
}
