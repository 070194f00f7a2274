package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seriarr/seriarr/internal/config"
)

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func scanAll(t *testing.T, root string, cfg config.ScannerConfig) []string {
	t.Helper()
	q := NewBounded(64)
	s := New(root, cfg, q, nil)

	done := make(chan error, 1)
	go func() { done <- s.Run(t.Context()) }()

	items, err := q.Drain(t.Context(), time.Second)
	require.NoError(t, err)
	require.NoError(t, <-done)

	var paths []string
	for _, it := range items {
		rel, err := filepath.Rel(root, it.Path)
		require.NoError(t, err)
		paths = append(paths, rel)
	}
	sort.Strings(paths)
	return paths
}

func TestScannerExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "show.mkv", 10)
	writeFile(t, dir, "movie.MP4", 10) // uppercase extension must match
	writeFile(t, dir, "notes.txt", 10)
	writeFile(t, dir, "season1/episode.mkv", 10)
	writeFile(t, dir, "cover.jpg", 10)

	cfg := config.ScannerConfig{Extensions: []string{".mkv", ".mp4"}}
	got := scanAll(t, dir, cfg)

	assert.Equal(t, []string{"movie.MP4", filepath.Join("season1", "episode.mkv"), "show.mkv"}, got)
}

func TestScannerSkipsHiddenAndTempFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.mkv", 10)
	writeFile(t, dir, ".hidden.mkv", 10)
	writeFile(t, dir, "download.mkv.part", 10)
	writeFile(t, dir, ".stash/secret.mkv", 10)

	cfg := config.ScannerConfig{Extensions: []string{".mkv"}}
	got := scanAll(t, dir, cfg)

	assert.Equal(t, []string{"keep.mkv"}, got)
}

func TestScannerMinFileSize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "full.mkv", 2048)
	writeFile(t, dir, "sample.mkv", 16)

	cfg := config.ScannerConfig{Extensions: []string{".mkv"}, MinFileSize: config.ByteSize(1024)}
	got := scanAll(t, dir, cfg)

	assert.Equal(t, []string{"full.mkv"}, got)
}

func TestScannerMissingRoot(t *testing.T) {
	cfg := config.ScannerConfig{Extensions: []string{".mkv"}}
	got := scanAll(t, filepath.Join(t.TempDir(), "does-not-exist"), cfg)
	assert.Empty(t, got)
}

func TestScannerRootIsFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "lone.mkv", 10)

	cfg := config.ScannerConfig{Extensions: []string{".mkv"}}
	got := scanAll(t, path, cfg)
	assert.Empty(t, got)
}

func TestScannerCounters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.mkv", 10)
	writeFile(t, dir, "b.mkv", 10)
	writeFile(t, dir, "c.txt", 10)

	q := NewBounded(16)
	s := New(dir, config.ScannerConfig{Extensions: []string{".mkv"}}, q, nil)
	require.NoError(t, s.Run(t.Context()))

	files, dirs, matched, skipped := s.Counters.Snapshot()
	assert.Equal(t, int64(3), files)
	assert.GreaterOrEqual(t, dirs, int64(1))
	assert.Equal(t, int64(2), matched)
	assert.Equal(t, int64(1), skipped)

	items, err := q.Drain(t.Context(), time.Second)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestScannerStopIsCooperative(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 20; i++ {
		writeFile(t, dir, filepath.Join("d", "f"+string(rune('a'+i))+".mkv"), 10)
	}

	q := NewBounded(1)
	s := New(dir, config.ScannerConfig{Extensions: []string{".mkv"}}, q, nil)

	done := make(chan error, 1)
	go func() { done <- s.Run(t.Context()) }()

	// Let the producer block on the full queue, then request a stop.
	_, err := q.Pull(t.Context(), time.Second)
	require.NoError(t, err)
	s.Stop()

	_, err = q.Drain(t.Context(), time.Second)
	require.NoError(t, err)

	require.NoError(t, <-done)
	_, _, matched, _ := s.Counters.Snapshot()
	assert.Less(t, matched, int64(20))
}
