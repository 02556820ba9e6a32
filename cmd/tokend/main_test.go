package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupEnv points every file the CLI touches at a temp dir.
func setupEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AUTH_DATABASE_FILE", filepath.Join(dir, "tokend.db"))
	t.Setenv("AUTH_PEPPER_FILE", filepath.Join(dir, "pepper"))
	t.Setenv("AUTH_KEY_SOURCE", "persistent")
	t.Setenv("AUTH_MASTER_KEY", "cli-test-master-key")
	t.Setenv("AUTH_ALGORITHM", "ES256")
	t.Setenv("LOG_LEVEL", "error")
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "tokend "))
}

func TestCheck(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "", "check")
	require.NoError(t, err)
	require.Contains(t, out, "config")
	require.Contains(t, out, "signing key")
	require.Contains(t, out, "source=persistent")
	require.NotContains(t, out, "FAIL")
}

func TestCheck_ReportsFailure(t *testing.T) {
	setupEnv(t)
	t.Setenv("AUTH_TOKEN_LIFETIME_SECONDS", "5")

	out, err := run(t, "", "check")
	require.Error(t, err)
	require.Contains(t, out, "FAIL")
}

func TestUsersAdd(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "correct horse\n", "users", "add", "--username", "alice", "--password-stdin")
	require.NoError(t, err)
	require.Contains(t, out, "created user alice")

	_, err = run(t, "correct horse\n", "users", "add", "--username", "alice", "--password-stdin")
	require.Error(t, err)

	out, err = run(t, "battery staple", "users", "passwd", "--username", "alice", "--password-stdin")
	require.NoError(t, err)
	require.Contains(t, out, "updated password for alice")
}

func TestUsersAdd_RequiresStdin(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "", "users", "add", "--username", "alice")
	require.ErrorContains(t, err, "--password-stdin")

	_, err = run(t, "\n", "users", "add", "--username", "alice", "--password-stdin")
	require.ErrorContains(t, err, "empty password")
}

func TestKeys_ListAndRotate(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "", "keys", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[1], "ES256")
	require.Contains(t, lines[1], "active")

	out, err = run(t, "", "keys", "rotate")
	require.NoError(t, err)
	require.Contains(t, out, "active key")
	require.Contains(t, out, "retired key")

	out, err = run(t, "", "keys", "list")
	require.NoError(t, err)
	lines = strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[1], "active")
	require.Contains(t, lines[2], "retired")
}

func TestKeys_RotateEphemeral(t *testing.T) {
	setupEnv(t)
	t.Setenv("AUTH_KEY_SOURCE", "ephemeral")
	t.Setenv("AUTH_ALLOW_DEVELOPMENT_KEYS", "true")

	_, err := run(t, "", "keys", "rotate")
	require.ErrorContains(t, err, "persistent")
}
