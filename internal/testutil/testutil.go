// Package testutil provides helpers for building sample library trees in
// tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteMediaFile creates a file of the given size under root, creating parent
// directories as needed, and returns its absolute path.
func WriteMediaFile(t *testing.T, root, relPath string, size int) string {
	t.Helper()
	path := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

// SampleLibrary creates a temp directory populated with the given filenames,
// each 1 KiB, and returns the directory path.
func SampleLibrary(t *testing.T, names ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range names {
		WriteMediaFile(t, root, name, 1024)
	}
	return root
}
