package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablesync/internal/app"
	"github.com/roach88/tablesync/internal/client"
	"github.com/roach88/tablesync/internal/server"
	"github.com/roach88/tablesync/internal/testutil"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tablesync.db")

	out, err := execute(t, "", "migrate", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "is at schema version 1")

	out, err = execute(t, "", "--format", "json", "migrate", "--db", dbPath)
	require.NoError(t, err)
	var resp struct {
		Data struct {
			SchemaVersion int `json:"schema_version"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Data.SchemaVersion)
}

func TestMigrate_BadConfig(t *testing.T) {
	_, err := execute(t, "", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "migrate")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestUserAdd(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tablesync.db")

	out, err := execute(t, "secret\n", "user", "add", "ann", "--account", "acme", "--password-stdin", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Added user ann to account acme")

	_, err = execute(t, "", "user", "add", "ann", "--account", "acme", "--password", "other", "--db", dbPath)
	require.Error(t, err, "duplicate user")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, err = execute(t, "", "user", "add", "bob", "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "password is required")
}

func TestTables(t *testing.T) {
	out, err := execute(t, "", "tables")
	require.NoError(t, err)
	assert.Contains(t, out, "branch")
	assert.Contains(t, out, "name:mutable")
	assert.Contains(t, out, "idAccount:private")

	out, err = execute(t, "", "--format", "json", "tables")
	require.NoError(t, err)
	var resp struct {
		Data []map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 3)
	assert.Equal(t, "erase", resp.Data[0]["name"])
	assert.Equal(t, "deletion-log", resp.Data[0]["kind"])
	assert.Equal(t, "false", resp.Data[0]["writable"])
	assert.Equal(t, "branch", resp.Data[2]["name"])
	assert.Equal(t, "true", resp.Data[2]["writable"])
}

func startSyncServer(t *testing.T) string {
	t.Helper()
	s := testutil.NewStore(t)
	account, err := app.AddUser(context.Background(), s, "acme", "ann", "secret")
	require.NoError(t, err)
	testutil.SeedBranches(t, s, account, "north", "south", "east")

	sess, err := app.NewSession(s, app.Options{})
	require.NoError(t, err)
	srv := httptest.NewServer(server.New(sess, server.Config{}, nil).Handler())
	t.Cleanup(srv.Close)
	return srv.URL + server.PathSync
}

func TestSyncCommand(t *testing.T) {
	url := startSyncServer(t)

	out, err := execute(t, "", "--format", "json", "sync", url, "-u", "ann", "-p", "secret", "--codec", "msgpack",
		"--verb", "CREATE", "--table", "branch", "--payload", `{"name":"west"}`)
	require.NoError(t, err)

	var resp struct {
		Data SyncReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 2, resp.Data.Rounds)
	assert.Nil(t, resp.Data.ActionResult)
	assert.Equal(t, 4, resp.Data.Rows["branch"])
}

func TestSyncCommand_Text(t *testing.T) {
	url := startSyncServer(t)

	out, err := execute(t, "", "sync", url, "-u", "ann", "-p", "secret",
		"--verb", "DELETE", "--table", "modify", "--payload", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Synced in 2 round(s)")
	assert.Contains(t, out, "Action failed: FORBIDDEN")
	assert.Contains(t, out, "branch: 3 row(s)")
}

func TestSyncCommand_Errors(t *testing.T) {
	url := startSyncServer(t)

	_, err := execute(t, "", "sync", url, "-u", "ann", "-p", "wrong")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, client.IsUnauthorized(err))

	_, err = execute(t, "", "sync", url, "-u", "ann", "--codec", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "", "sync", url, "-u", "ann", "--verb", "CREATE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be given together")

	_, err = execute(t, "", "sync", url)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestParseActionFlags(t *testing.T) {
	action, err := parseActionFlags("", "", "")
	require.NoError(t, err)
	assert.Nil(t, action)

	action, err = parseActionFlags("put", "branch", `{"id":1,"name":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE", string(action.Verb))

	_, err = parseActionFlags("MERGE", "branch", "1")
	assert.Error(t, err)

	_, err = parseActionFlags("DELETE", "branch", "{")
	assert.Error(t, err)
}

func TestServe(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tablesync.db")
	_, err := execute(t, "", "user", "add", "ann", "--password", "secret", "--db", dbPath)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	out := &bytes.Buffer{}
	cmd := newServeCommand(&ServeOptions{RootOptions: &RootOptions{Format: "text"}, Listener: ln})
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", dbPath})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	base := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + server.PathHealth)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	c := client.New(base+server.PathSync, "ann", "secret")
	sum, err := c.Sync(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Rounds)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
	assert.Contains(t, out.String(), "Serving on "+ln.Addr().String())
}

func TestServe_InvalidFlags(t *testing.T) {
	cmd := NewServeCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--page-size", "500", "--db", filepath.Join(t.TempDir(), "x.db")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand(t *testing.T) {
	dir := t.TempDir()
	scenario := `
name: smoke
description: an empty account syncs in one round
users:
  - {name: ann, password: secret, account: acme}
steps:
  - name: sync
    user: ann
    request: {version: 1, tables: {}}
    expect: {eof: true}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "smoke.yaml"), []byte(scenario), 0o644))

	out, err := execute(t, "", "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "smoke (golden updated)")
	assert.FileExists(t, filepath.Join(dir, "golden", "smoke.golden"))

	out, err = execute(t, "", "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")

	out, err = execute(t, "", "--format", "json", "test", dir, "--filter", "nothing*")
	require.NoError(t, err)
	assert.Contains(t, out, `"total": 0`)
}

func TestTestCommand_Failures(t *testing.T) {
	dir := t.TempDir()
	scenario := `
name: wrong
description: expects a status the server never sends
users:
  - {name: ann, password: secret, account: acme}
steps:
  - name: sync
    user: ann
    request: {version: 1}
    expect: {status: 418}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(scenario), 0o644))

	out, err := execute(t, "", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `step "sync": status 200, want 418`)

	_, err = execute(t, "", "test", filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_RepositoryScenarios(t *testing.T) {
	out, err := execute(t, "", "test", filepath.Join("..", "..", "testdata", "scenarios"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "All scenarios passed")
}
