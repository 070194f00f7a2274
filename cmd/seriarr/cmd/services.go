package cmd

import (
	"fmt"

	"github.com/seriarr/seriarr/internal/database"
	"github.com/seriarr/seriarr/internal/executor"
	"github.com/seriarr/seriarr/internal/library"
	"github.com/seriarr/seriarr/internal/metadata"
)

// newLibraryService wires the worker pools, metadata stack, and library
// service. The returned cleanup releases everything in reverse order.
func newLibraryService() (*library.Service, func(), error) {
	manager := executor.NewManager(cfg.Executor, logger)
	cleanups := []func(){manager.Shutdown}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var meta *metadata.Service
	if !cfg.Metadata.DisableLookups {
		db, err := database.Open(cfg.Database, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("opening metadata cache: %w", err)
		}
		cleanups = append(cleanups, func() {
			if err := database.Close(db); err != nil {
				logger.Warn("closing database", "error", err.Error())
			}
		})

		client := metadata.NewClient(cfg.Metadata, logger)
		meta = metadata.NewService(cfg.Metadata, client, db, logger)
	}

	return library.NewService(cfg, manager, meta, logger), cleanup, nil
}

// exportReport writes the run report when a path was requested.
func exportReport(report *library.Report, path string) error {
	if path == "" {
		return nil
	}
	if err := report.Export(path); err != nil {
		return fmt.Errorf("exporting report: %w", err)
	}
	logger.Info("report written", "path", path)
	return nil
}
