package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmdShowsHelp(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	for _, sub := range []string{"serve", "crawl", "search", "reindex", "stats", "version"} {
		assert.Contains(t, output, sub)
	}
}

func TestRootCmdVersionFlag(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "webseek version")
}

func TestRootCmdUnknownCommand(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"frobnicate"})

	assert.Error(t, cmd.Execute())
}

// TestStatsCmdOffline wires the full stack against a throwaway database.
func TestStatsCmdOffline(t *testing.T) {
	t.Setenv("WEBSEEK_DATABASE_PATH", filepath.Join(t.TempDir(), "webseek.db"))
	t.Setenv("WEBSEEK_LOG_LEVEL", "error")

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"stats", "--offline", "--config", ""})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "documents:")
	assert.Contains(t, output, "0 indexed")
}
