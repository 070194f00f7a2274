// Package scanner walks a media library tree and feeds matching files into a
// bounded queue, applying backpressure when consumers fall behind.
package scanner

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/seriarr/seriarr/internal/config"
	"github.com/seriarr/seriarr/internal/models"
)

// Counters holds shared scan statistics, safe under concurrent increment.
type Counters struct {
	Files   atomic.Int64 // regular files seen
	Dirs    atomic.Int64 // directories entered
	Matched atomic.Int64 // files pushed into the queue
	Skipped atomic.Int64 // filtered out or dropped
}

// Snapshot returns the current counter values.
func (c *Counters) Snapshot() (files, dirs, matched, skipped int64) {
	return c.Files.Load(), c.Dirs.Load(), c.Matched.Load(), c.Skipped.Load()
}

// Scanner produces media files from a directory tree into a bounded queue.
type Scanner struct {
	root        string
	extensions  map[string]bool
	minFileSize int64
	queue       *Bounded
	logger      *slog.Logger

	stop     atomic.Bool
	Counters Counters
}

// New creates a scanner for the given root. The extension allow-list is
// matched case-insensitively.
func New(root string, cfg config.ScannerConfig, queue *Bounded, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}

	exts := make(map[string]bool, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		exts[strings.ToLower(ext)] = true
	}

	return &Scanner{
		root:        root,
		extensions:  exts,
		minFileSize: cfg.MinFileSize.Bytes(),
		queue:       queue,
		logger:      logger,
	}
}

// Stop requests a cooperative stop. The scanner finishes the file in flight
// before honoring it.
func (s *Scanner) Stop() {
	s.stop.Store(true)
}

// Run walks the tree and pushes matching files into the queue, closing the
// queue when the walk ends. A missing or non-directory root is non-fatal and
// yields zero items. Per-item enqueue failures are logged and the item is
// dropped; scanning continues.
func (s *Scanner) Run(ctx context.Context) error {
	defer s.queue.Close()

	info, err := os.Stat(s.root)
	if err != nil || !info.IsDir() {
		s.logger.Warn("scan root missing or not a directory",
			slog.String("root", s.root))
		return nil
	}

	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("walk error, skipping entry",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}

		// Stop flag is polled between entries, never mid-file.
		if s.stop.Load() || ctx.Err() != nil {
			return fs.SkipAll
		}

		if d.IsDir() {
			s.Counters.Dirs.Add(1)
			if isHiddenName(d.Name()) && path != s.root {
				return fs.SkipDir
			}
			return nil
		}

		s.Counters.Files.Add(1)
		s.processFile(ctx, path, d)
		return nil
	})
	if err != nil {
		return err
	}

	files, dirs, matched, skipped := s.Counters.Snapshot()
	s.logger.Info("scan complete",
		slog.String("root", s.root),
		slog.Int64("files_seen", files),
		slog.Int64("dirs_seen", dirs),
		slog.Int64("matched", matched),
		slog.Int64("skipped", skipped))

	return nil
}

// processFile filters a single file and pushes it into the queue.
func (s *Scanner) processFile(ctx context.Context, path string, d fs.DirEntry) {
	if !s.matches(path, d.Name()) {
		s.Counters.Skipped.Add(1)
		return
	}

	info, err := d.Info()
	if err != nil {
		s.logger.Warn("stat failed, dropping file",
			slog.String("path", path),
			slog.String("error", err.Error()))
		s.Counters.Skipped.Add(1)
		return
	}

	if s.minFileSize > 0 && info.Size() < s.minFileSize {
		s.Counters.Skipped.Add(1)
		return
	}

	item := models.MediaFile{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}

	// Blocks when the queue is full: backpressure, not unbounded buffering.
	if err := s.queue.Push(ctx, item); err != nil {
		// Lossy-on-error policy: log and drop, no retry.
		s.logger.Warn("enqueue failed, dropping file",
			slog.String("path", path),
			slog.String("error", err.Error()))
		s.Counters.Skipped.Add(1)
		return
	}
	s.Counters.Matched.Add(1)
}

// matches applies the extension allow-list and temp-file filters.
func (s *Scanner) matches(path, name string) bool {
	if isHiddenName(name) || isTempName(name) {
		return false
	}
	return s.extensions[strings.ToLower(filepath.Ext(path))]
}

func isHiddenName(name string) bool {
	return strings.HasPrefix(name, ".")
}

// isTempName filters partial downloads and temp files left by download clients.
func isTempName(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range []string{".tmp", ".temp", ".part", ".partial", ".!qb"} {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
