package xpath

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	p, err := Expand("~/.coencoder.yaml")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".coencoder.yaml"), p)

	p, err = Expand("/etc/x")
	require.NoError(t, err)
	require.Equal(t, "/etc/x", p)
}

func TestGetExecPath(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "tool")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0755))

	p, err := GetExecPath(exe)
	require.NoError(t, err)
	require.Equal(t, exe, p)

	t.Chdir(dir)
	p, err = GetExecPath("./tool")
	require.NoError(t, err)
	require.Equal(t, "tool", filepath.Base(p))

	_, err = GetExecPath(filepath.Join(dir, "missing"))
	require.Error(t, err)
}
