package main

import (
	"bytes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadPassword_PipedLine(t *testing.T) {
	var stderr bytes.Buffer

	pw, err := readPassword(strings.NewReader("s3cret\r\nrest\n"), &stderr)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)
	assert.Empty(t, stderr.String())
}

func TestReadPassword_NoTrailingNewline(t *testing.T) {
	pw, err := readPassword(strings.NewReader("s3cret"), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)
}

func TestReadPassword_RegularFileIsNotATerminal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pw")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))

	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	pw, err := readPassword(f, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "from-file", pw)
}

func TestPasswordOrPrompt_Precedence(t *testing.T) {
	cmd := newCLI().root
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader("prompted\n"))

	t.Setenv("QUICKCOMMERCE_PASSWORD", "")
	pw, err := passwordOrPrompt(cmd, "flag")
	require.NoError(t, err)
	assert.Equal(t, "flag", pw)

	t.Setenv("QUICKCOMMERCE_PASSWORD", "env")
	pw, err = passwordOrPrompt(cmd, "")
	require.NoError(t, err)
	assert.Equal(t, "env", pw)

	t.Setenv("QUICKCOMMERCE_PASSWORD", "")
	pw, err = passwordOrPrompt(cmd, "")
	require.NoError(t, err)
	assert.Equal(t, "prompted", pw)
	assert.Equal(t, "Password: ", stderr.String())
}
