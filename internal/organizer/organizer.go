// Package organizer moves grouped media files into the canonical library
// layout: "Series Title/Season NN/<original filename>".
package organizer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/seriarr/seriarr/internal/config"
	"github.com/seriarr/seriarr/internal/models"
)

// Actions recorded per file move.
const (
	ActionMoved   = "moved"
	ActionCopied  = "copied"
	ActionSkipped = "skipped"
	ActionDryRun  = "dry-run"
	ActionFailed  = "failed"
)

// FileMove records the outcome of organizing one file.
type FileMove struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
	Action string `yaml:"action"`
	Reason string `yaml:"reason,omitempty"`
}

// Organizer moves files under the target directory. A dry-run organizer only
// plans moves without touching the filesystem.
type Organizer struct {
	targetDir string
	dryRun    bool
	logger    *slog.Logger
}

// New creates an organizer from library configuration.
func New(cfg config.LibraryConfig, logger *slog.Logger) *Organizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Organizer{
		targetDir: cfg.TargetDir,
		dryRun:    cfg.DryRun,
		logger:    logger.With(slog.String("component", "organizer")),
	}
}

// DryRun reports whether the organizer is in planning-only mode.
func (o *Organizer) DryRun() bool { return o.dryRun }

// TargetPath computes the destination for one file of a group. Files of a
// group without a known season land directly under the series directory.
func (o *Organizer) TargetPath(g *models.FileGroup, f models.MediaFile) string {
	dir := filepath.Join(o.targetDir, sanitizeName(g.DisplayName()))
	if g.Season > 0 {
		dir = filepath.Join(dir, fmt.Sprintf("Season %02d", g.Season))
	}
	return filepath.Join(dir, f.Name())
}

// OrganizeGroup moves every file of a group into place and returns the
// per-file outcomes plus the number of files actually placed. Existing
// targets are skipped, never overwritten. Per-file failures are recorded and
// do not abort the rest of the group.
func (o *Organizer) OrganizeGroup(ctx context.Context, g *models.FileGroup) ([]FileMove, int, error) {
	moves := make([]FileMove, 0, len(g.Files))
	placed := 0

	for _, f := range g.Files {
		if err := ctx.Err(); err != nil {
			return moves, placed, err
		}

		target := o.TargetPath(g, f)
		move := FileMove{Source: f.Path, Target: target}

		switch {
		case o.dryRun:
			move.Action = ActionDryRun
		case targetExists(target):
			move.Action = ActionSkipped
			move.Reason = "target exists"
			o.logger.Info("skipping file, target exists",
				slog.String("source", f.Path),
				slog.String("target", target))
		default:
			action, err := o.place(f.Path, target)
			move.Action = action
			if err != nil {
				move.Action = ActionFailed
				move.Reason = err.Error()
				o.logger.Warn("failed to place file",
					slog.String("source", f.Path),
					slog.String("target", target),
					slog.String("error", err.Error()))
			} else {
				placed++
			}
		}
		moves = append(moves, move)
	}

	return moves, placed, nil
}

// FailedCount counts moves that ended in failure.
func FailedCount(moves []FileMove) int {
	n := 0
	for _, m := range moves {
		if m.Action == ActionFailed {
			n++
		}
	}
	return n
}

// place moves a file, falling back to copy-and-remove when rename fails,
// e.g. across filesystems.
func (o *Organizer) place(source, target string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return ActionFailed, fmt.Errorf("creating target directory: %w", err)
	}

	if err := os.Rename(source, target); err == nil {
		return ActionMoved, nil
	}

	if err := copyFile(source, target); err != nil {
		return ActionFailed, err
	}
	if err := os.Remove(source); err != nil {
		o.logger.Warn("copied but could not remove source",
			slog.String("source", source),
			slog.String("error", err.Error()))
	}
	return ActionCopied, nil
}

// copyFile copies source to target, removing a partial target on failure.
func copyFile(source, target string) error {
	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating target: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(target)
		return fmt.Errorf("copying data: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(target)
		return fmt.Errorf("closing target: %w", err)
	}
	return nil
}

func targetExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// pathUnsafe matches characters that are reserved on common filesystems.
var pathUnsafe = strings.NewReplacer(
	"/", " ", "\\", " ", ":", " ", "*", " ", "?", " ",
	"\"", " ", "<", " ", ">", " ", "|", " ",
)

// sanitizeName makes a series title safe to use as a directory name.
func sanitizeName(name string) string {
	clean := pathUnsafe.Replace(name)
	clean = strings.Join(strings.Fields(clean), " ")
	clean = strings.Trim(clean, ". ")
	if clean == "" {
		clean = "Unknown"
	}
	return clean
}
